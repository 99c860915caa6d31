package schema

import "time"

// Workflow is a named template describing an ordered sequence of steps.
type Workflow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Goal        string `json:"goal,omitempty"`
	FirstStepID string `json:"first_step_id,omitempty"`
}

// Step is one ordered unit of work within a workflow.
type Step struct {
	ID          string `json:"id"`
	WorkflowID  string `json:"workflow_id,omitempty"`
	Name        string `json:"name"`
	Order       int    `json:"order"`
	Description string `json:"description,omitempty"`
}

// Document is a reference a step needs in order to be carried out.
type Document struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	URL   string   `json:"url,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Agent is a human, automated process or service assigned to steps.
type Agent struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Kind AgentKind `json:"kind"`
}

// WorkflowRun is one live execution of a workflow template.
type WorkflowRun struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflow_id"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepRun tracks the progress of one template step inside a run.
// StepName and StepOrder are copied from the step when the run is created.
type StepRun struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id,omitempty"`
	StepID    string     `json:"step_id"`
	Seq       int        `json:"seq"`
	StepName  string     `json:"step_name"`
	StepOrder int        `json:"step_order"`
	Status    StepStatus `json:"status"`
	Note      *string    `json:"note,omitempty"`
}

// RunDetail is a run together with its step runs in template order.
type RunDetail struct {
	Run      WorkflowRun `json:"run"`
	StepRuns []StepRun   `json:"step_runs"`
}

// StepDetail is a step together with the documents and agents linked to it.
type StepDetail struct {
	Step      Step       `json:"step"`
	Documents []Document `json:"documents"`
	Agents    []Agent    `json:"agents"`
}

// WorkflowDetail is a workflow with its steps in order.
type WorkflowDetail struct {
	Workflow Workflow     `json:"workflow"`
	Steps    []StepDetail `json:"steps"`
}

// RunSummary is a run with step-run counts by status.
type RunSummary struct {
	Run        WorkflowRun `json:"run"`
	Total      int         `json:"total"`
	Todo       int         `json:"todo"`
	InProgress int         `json:"in_progress"`
	Done       int         `json:"done"`
}
