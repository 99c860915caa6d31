package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlite/pkg/schema"
)

func onboarding() *schema.WorkflowTemplate {
	return &schema.WorkflowTemplate{
		Name: "Onboarding",
		Goal: "Get a new hire productive",
		Steps: []schema.StepTemplate{
			{Key: "welcome", Name: "Welcome", Order: 1, Documents: []string{"handbook"}, Agents: []string{"hr"}},
			{Key: "setup", Name: "Setup", Order: 2, Documents: []string{"it-guide"}, Agents: []string{"it-bot"}},
			{Key: "training", Name: "Training", Order: 3, Documents: []string{"training"}},
		},
		Documents: []schema.DocumentTemplate{
			{Key: "handbook", Title: "Employee Handbook"},
			{Key: "it-guide", Title: "IT Setup Guide", URL: "https://intranet.example.com/it"},
			{Key: "training", Title: "Training Plan", Tags: []string{"learning"}},
		},
		Agents: []schema.AgentTemplate{
			{Key: "hr", Name: "HR Partner", Kind: "human"},
			{Key: "it-bot", Name: "Provisioner", Kind: "AI"},
		},
	}
}

func TestSemantic_Valid(t *testing.T) {
	report := validateSemantic(onboarding())
	assert.True(t, report.OK())
	assert.Empty(t, report.Warnings)
}

func TestSemantic_DuplicateKeys(t *testing.T) {
	tpl := onboarding()
	tpl.Steps[2].Key = "welcome"
	tpl.Documents = append(tpl.Documents, schema.DocumentTemplate{Key: "handbook", Title: "Copy"})

	report := validateSemantic(tpl)
	require.Len(t, report.Errors, 2)
	paths := []string{report.Errors[0].Path, report.Errors[1].Path}
	assert.Contains(t, paths, "steps[2].key")
	assert.Contains(t, paths, "documents[3].key")
}

func TestSemantic_UndeclaredReferences(t *testing.T) {
	tpl := onboarding()
	tpl.Steps[0].Documents = append(tpl.Steps[0].Documents, "policy")
	tpl.Steps[1].Agents = []string{"ghost"}

	report := validateSemantic(tpl)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, "steps[0].documents[1]", report.Errors[0].Path)
	assert.Contains(t, report.Errors[0].Message, "policy")
	assert.Equal(t, "steps[1].agents[0]", report.Errors[1].Path)
}

func TestSemantic_UnknownAgentKind(t *testing.T) {
	tpl := onboarding()
	tpl.Agents[0].Kind = "robot"

	report := validateSemantic(tpl)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "agents[0].kind", report.Errors[0].Path)
}

func TestSemantic_UnusedEntitiesWarn(t *testing.T) {
	tpl := onboarding()
	tpl.Steps[1].Agents = nil

	report := validateSemantic(tpl)
	assert.True(t, report.OK())
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "agents[1]", report.Warnings[0].Path)
}

func TestSemantic_OrderingWarnings(t *testing.T) {
	tpl := onboarding()
	tpl.Steps[1].Order = 1
	tpl.Steps[2].Order = 5

	report := validateSemantic(tpl)
	assert.True(t, report.OK())
	require.Len(t, report.Warnings, 2)
	assert.Contains(t, report.Warnings[0].Message, "share order 1")
	assert.Contains(t, report.Warnings[1].Message, "gap between order 1 and 5")
}
