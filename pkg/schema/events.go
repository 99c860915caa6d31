package schema

// Event type constants published after a committed state change.
const (
	EventRunStarted   = "run_started"
	EventStepAdvanced = "step_advanced"
	EventRunCompleted = "run_completed"
)

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
)

// StepStatus represents the progress of a single step within a run.
type StepStatus string

const (
	StepStatusTodo       StepStatus = "todo"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusDone       StepStatus = "done"
)

// AgentKind classifies who carries out a step.
type AgentKind string

const (
	AgentKindHuman     AgentKind = "human"
	AgentKindAutomated AgentKind = "automated"
	AgentKindService   AgentKind = "service"
)
