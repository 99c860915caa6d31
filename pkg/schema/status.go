package schema

import "strings"

// normalize lower-cases s and folds '-' and ' ' into '_' so that "IN_PROGRESS",
// "in-progress" and "in progress" compare equal.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// ParseStepStatus converts user input into a StepStatus.
func ParseStepStatus(s string) (StepStatus, error) {
	switch st := StepStatus(normalize(s)); st {
	case StepStatusTodo, StepStatusInProgress, StepStatusDone:
		return st, nil
	}
	return "", NewErrorf(ErrCodeValidation,
		"invalid step status %q: must be one of todo, in_progress, done", s)
}

// ParseRunStatus converts user input into a RunStatus.
func ParseRunStatus(s string) (RunStatus, error) {
	switch st := RunStatus(normalize(s)); st {
	case RunStatusRunning, RunStatusCompleted:
		return st, nil
	}
	return "", NewErrorf(ErrCodeValidation,
		"invalid run status %q: must be one of running, completed", s)
}

// ParseAgentKind converts user input into an AgentKind. "ai" is accepted as
// an alias of automated.
func ParseAgentKind(s string) (AgentKind, error) {
	switch k := AgentKind(normalize(s)); k {
	case AgentKindHuman, AgentKindAutomated, AgentKindService:
		return k, nil
	case "ai":
		return AgentKindAutomated, nil
	}
	return "", NewErrorf(ErrCodeValidation,
		"invalid agent kind %q: must be one of human, automated, service", s)
}

// Terminal reports whether the step status counts toward run completion.
func (s StepStatus) Terminal() bool {
	return s == StepStatusDone
}
