package schema

// WorkflowTemplate is the JSON document accepted by the template importer.
// Steps reference documents and agents by their template-local keys.
type WorkflowTemplate struct {
	Name      string             `json:"name"`
	Goal      string             `json:"goal,omitempty"`
	Steps     []StepTemplate     `json:"steps"`
	Documents []DocumentTemplate `json:"documents,omitempty"`
	Agents    []AgentTemplate    `json:"agents,omitempty"`
}

// StepTemplate describes one step of a workflow template.
type StepTemplate struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Order       int      `json:"order"`
	Description string   `json:"description,omitempty"`
	Documents   []string `json:"documents,omitempty"`
	Agents      []string `json:"agents,omitempty"`
}

// DocumentTemplate describes a document declared by a template.
type DocumentTemplate struct {
	Key   string   `json:"key"`
	Title string   `json:"title"`
	URL   string   `json:"url,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// AgentTemplate describes an agent declared by a template.
type AgentTemplate struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ImportResult maps template-local keys to the identities generated on import.
type ImportResult struct {
	Workflow  Workflow          `json:"workflow"`
	Steps     map[string]string `json:"steps"`
	Documents map[string]string `json:"documents,omitempty"`
	Agents    map[string]string `json:"agents,omitempty"`
	Warnings  []Issue           `json:"warnings,omitempty"`
}
