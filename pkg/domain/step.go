package domain

import "time"

// StepTemplate is one canonical step of a workflow. A step is reached when
// any of its stages shows up in a request's history.
type StepTemplate struct {
	Order       int           `json:"order" yaml:"order" mapstructure:"order"`
	Title       string        `json:"title" yaml:"title" mapstructure:"title"`
	Description string        `json:"description" yaml:"description" mapstructure:"description"`
	Stages      []Status      `json:"stages" yaml:"stages" mapstructure:"stages"`
	Responsible string        `json:"responsible" yaml:"responsible" mapstructure:"responsible"`
	Weight      int           `json:"weight,omitempty" yaml:"weight,omitempty" mapstructure:"weight"`
	Duration    time.Duration `json:"duration,omitempty" yaml:"duration,omitempty" mapstructure:"duration"`
}

// Matches reports whether the step covers the stage.
func (s StepTemplate) Matches(stage Status) bool {
	for _, st := range s.Stages {
		if st == stage {
			return true
		}
	}
	return false
}

// WorkflowTemplate is the canonical step list for a project classification.
type WorkflowTemplate struct {
	Classification string         `json:"classification" yaml:"classification"`
	Steps          []StepTemplate `json:"steps" yaml:"steps"`
}

// WorkflowStepView is a derived, never persisted view of one step.
type WorkflowStepView struct {
	Order       int        `json:"order"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Stage       Status     `json:"stage"`
	IsActive    bool       `json:"is_active"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
	Responsible string     `json:"responsible"`
}
