package validation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlite/pkg/schema"
)

func newValidator(t *testing.T) *TemplateValidator {
	t.Helper()
	v, err := NewTemplateValidator()
	require.NoError(t, err)
	return v
}

func TestParse_Valid(t *testing.T) {
	raw := []byte(`{
		"name": "Onboarding",
		"steps": [
			{"key": "welcome", "name": "Welcome", "order": 1, "documents": ["handbook"]},
			{"key": "setup", "name": "Setup", "order": 2}
		],
		"documents": [{"key": "handbook", "title": "Handbook", "url": "https://example.com/h"}]
	}`)
	tpl, report := newValidator(t).Parse(raw)
	require.True(t, report.OK(), report.Errors)
	require.NotNil(t, tpl)
	assert.Equal(t, "Onboarding", tpl.Name)
	require.Len(t, tpl.Steps, 2)
	assert.Equal(t, []string{"handbook"}, tpl.Steps[0].Documents)
}

func TestParse_StructuralErrorsShortCircuit(t *testing.T) {
	raw := []byte(`{
		"name": "Broken",
		"steps": [{"key": "a", "name": "A", "order": "first", "documents": ["missing"]}],
		"extra": true
	}`)
	tpl, report := newValidator(t).Parse(raw)
	assert.Nil(t, tpl)
	require.False(t, report.OK())
	for _, is := range report.Errors {
		assert.NotContains(t, is.Message, "undeclared", "semantic stage must not run")
	}
	err := report.Err()
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestParse_ZeroSteps(t *testing.T) {
	_, report := newValidator(t).Parse([]byte(`{"name": "Empty", "steps": []}`))
	assert.False(t, report.OK())
}

func TestParse_MalformedJSON(t *testing.T) {
	_, report := newValidator(t).Parse([]byte(`{"name":`))
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Message, "malformed JSON")
}

func TestParse_BadURL(t *testing.T) {
	raw := []byte(`{
		"name": "Links",
		"steps": [{"key": "a", "name": "A", "order": 1}],
		"documents": [{"key": "d", "title": "D", "url": "://missing-scheme"}]
	}`)
	_, report := newValidator(t).Parse(raw)
	assert.False(t, report.OK())
}

func TestValidate_InMemory(t *testing.T) {
	v := newValidator(t)
	assert.True(t, v.Validate(onboarding()).OK())

	tpl := onboarding()
	tpl.Steps[0].Agents = []string{"nobody"}
	report := v.Validate(tpl)
	assert.False(t, report.OK())

	assert.False(t, v.Validate(nil).OK())
}

func TestValidate_Concurrent(t *testing.T) {
	v := newValidator(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, v.Validate(onboarding()).OK())
		}()
	}
	wg.Wait()
}
