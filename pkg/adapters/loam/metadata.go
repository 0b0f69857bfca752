package loam

// TemplateMetadata is the frontmatter of a workflow template document.
// It uses "mapstructure" tags to match the YAML/JSON keys.
type TemplateMetadata struct {
	// Classification defaults to the document name without extension.
	Classification string         `json:"classification" mapstructure:"classification"`
	Steps          []StepMetadata `json:"steps" mapstructure:"steps"`
	// Fallback marks the template used for unknown classifications.
	Fallback bool `json:"fallback" mapstructure:"fallback"`
}

// StepMetadata is one step entry of a template document.
type StepMetadata struct {
	Title       string   `json:"title" mapstructure:"title" validate:"required"`
	Description string   `json:"description" mapstructure:"description"`
	Stages      []string `json:"stages" mapstructure:"stages" validate:"required,min=1,dive,required"`
	Responsible string   `json:"responsible" mapstructure:"responsible"`
	// Weight and Duration are loose: YAML numbers, json.Number in strict
	// mode, or strings.
	Weight   any `json:"weight" mapstructure:"weight"`
	Duration any `json:"duration" mapstructure:"duration"`
}
