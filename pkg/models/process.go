package models

// ProcessModel is a BPMN process reduced to its tasks and task-to-task flows.
type ProcessModel struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Tasks         []*ProcessTask `json:"tasks"`
	SequenceFlows []SequenceFlow `json:"sequenceFlows"`
}

// ProcessTask is a labelled unit of work in the process.
type ProcessTask struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Type             string            `json:"type,omitempty"`
	Description      string            `json:"description,omitempty"`
	APIEndpointInfo  *APIEndpointInfo  `json:"apiEndpointInfo,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// APIEndpointInfo carries an explicit endpoint hint attached to a task.
type APIEndpointInfo struct {
	Method      string `json:"method,omitempty"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description,omitempty"`
}

// SequenceFlow connects two tasks of the same process.
type SequenceFlow struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

// Task returns the task with the given id.
func (p *ProcessModel) Task(id string) (*ProcessTask, bool) {
	if p == nil {
		return nil, false
	}

	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}

	return nil, false
}

// SearchText is the text the matcher compares with endpoint full text.
func (t *ProcessTask) SearchText() string {
	text := t.Name
	if t.Description != "" {
		text += " " + t.Description
	}

	if t.APIEndpointInfo != nil && t.APIEndpointInfo.Description != "" {
		text += " " + t.APIEndpointInfo.Description
	}

	return text
}
