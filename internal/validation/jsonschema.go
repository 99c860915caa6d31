package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowlite/pkg/schema"
)

const templateSchemaURL = "https://flowlite.dev/schemas/template.json"

// templateSchemaJSON is the JSON Schema for workflow template documents.
const templateSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowlite.dev/schemas/template.json",
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": { "type": "string", "minLength": 1 },
    "goal": { "type": "string" },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/step" }
    },
    "documents": {
      "type": "array",
      "items": { "$ref": "#/$defs/document" }
    },
    "agents": {
      "type": "array",
      "items": { "$ref": "#/$defs/agent" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "key": {
      "type": "string",
      "pattern": "^[A-Za-z0-9_.-]+$"
    },
    "step": {
      "type": "object",
      "required": ["key", "name", "order"],
      "properties": {
        "key": { "$ref": "#/$defs/key" },
        "name": { "type": "string", "minLength": 1 },
        "order": { "type": "integer" },
        "description": { "type": "string" },
        "documents": {
          "type": "array",
          "items": { "$ref": "#/$defs/key" },
          "uniqueItems": true
        },
        "agents": {
          "type": "array",
          "items": { "$ref": "#/$defs/key" },
          "uniqueItems": true
        }
      },
      "additionalProperties": false
    },
    "document": {
      "type": "object",
      "required": ["key", "title"],
      "properties": {
        "key": { "$ref": "#/$defs/key" },
        "title": { "type": "string", "minLength": 1 },
        "url": { "type": "string", "format": "uri" },
        "tags": {
          "type": "array",
          "items": { "type": "string" },
          "uniqueItems": true
        }
      },
      "additionalProperties": false
    },
    "agent": {
      "type": "object",
      "required": ["key", "name", "kind"],
      "properties": {
        "key": { "$ref": "#/$defs/key" },
        "name": { "type": "string", "minLength": 1 },
        "kind": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    }
  }
}`

// compileTemplateSchema compiles the embedded template schema.
func compileTemplateSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(templateSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal template schema: %w", err)
	}
	if err := c.AddResource(templateSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add template schema resource: %w", err)
	}
	compiled, err := c.Compile(templateSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}
	return compiled, nil
}

// validateStructural checks a raw template document against the schema.
func validateStructural(s *jsonschema.Schema, raw []byte) *schema.ValidationReport {
	report := &schema.ValidationReport{}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		report.Errorf("/", "malformed JSON: %v", err)
		return report
	}
	if err := s.Validate(doc); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			report.Errorf("/", "%v", err)
			return report
		}
		report.Errors = append(report.Errors, collectViolations(verr)...)
	}
	return report
}

// collectViolations walks a ValidationError tree and returns its leaves,
// located by instance path.
func collectViolations(verr *jsonschema.ValidationError) []schema.Issue {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []schema.Issue{{Path: loc, Message: verr.Error()}}
	}

	var out []schema.Issue
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}

// toJSON marshals a template so Go callers go through the same structural checks.
func toJSON(t *schema.WorkflowTemplate) ([]byte, error) {
	return json.Marshal(t)
}
