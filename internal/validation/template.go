package validation

import (
	"bytes"
	"encoding/json"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowlite/pkg/schema"
)

// TemplateValidator runs the two-stage template pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (keys, references, agent kinds, ordering)
// It is safe for concurrent use.
type TemplateValidator struct {
	schema *jsonschema.Schema
}

// NewTemplateValidator compiles the template schema.
func NewTemplateValidator() (*TemplateValidator, error) {
	s, err := compileTemplateSchema()
	if err != nil {
		return nil, err
	}
	return &TemplateValidator{schema: s}, nil
}

// Parse validates a raw template document and decodes it. The template is nil
// whenever the report carries errors.
func (v *TemplateValidator) Parse(raw []byte) (*schema.WorkflowTemplate, *schema.ValidationReport) {
	report := validateStructural(v.schema, raw)
	if !report.OK() {
		return nil, report
	}

	var t schema.WorkflowTemplate
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		report.Errorf("/", "decode template: %v", err)
		return nil, report
	}

	report.Merge(validateSemantic(&t))
	if !report.OK() {
		return nil, report
	}
	return &t, report
}

// Validate runs the pipeline over an in-memory template.
func (v *TemplateValidator) Validate(t *schema.WorkflowTemplate) *schema.ValidationReport {
	if t == nil {
		r := &schema.ValidationReport{}
		r.Errorf("/", "template is nil")
		return r
	}
	raw, err := toJSON(t)
	if err != nil {
		r := &schema.ValidationReport{}
		r.Errorf("/", "encode template: %v", err)
		return r
	}
	report := validateStructural(v.schema, raw)
	if !report.OK() {
		return report
	}
	report.Merge(validateSemantic(t))
	return report
}
