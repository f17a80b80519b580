package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultRAGTemplate = `以下の文脈を利用して、最後の質問に答えなさい。
答えがわからない場合は、わからないと答えてください。

【文脈】
{{.context}}

【質問】
{{.question}}

【答え】
`

// Example is a canned document/question pair offered by the UI.
type Example struct {
	File  string `json:"file" yaml:"file"`
	Query string `json:"query" yaml:"query"`
}

// Parameter is a generation knob shown in the UI. Values are not sent to the model yet.
type Parameter struct {
	Name    string  `json:"name" yaml:"name"`
	Label   string  `json:"label" yaml:"label"`
	Minimum float64 `json:"minimum" yaml:"minimum"`
	Maximum float64 `json:"maximum" yaml:"maximum"`
	Value   float64 `json:"value" yaml:"value"`
}

// Preset holds the prompt templates and UI presets. Templates use Go
// template syntax with the variables .context and .question.
type Preset struct {
	Title          string      `json:"title" yaml:"title"`
	PromptTemplate string      `json:"-" yaml:"prompt_template"`
	InjectTemplate string      `json:"-" yaml:"inject_template"`
	Models         []string    `json:"models" yaml:"models"`
	Examples       []Example   `json:"examples" yaml:"examples"`
	Parameters     []Parameter `json:"parameters" yaml:"parameters"`
	ParametersNote string      `json:"parameters_note" yaml:"parameters_note"`
}

// DefaultPreset returns the built-in preset.
func DefaultPreset(model string) *Preset {
	return &Preset{
		Title:          "Chat with PDF",
		PromptTemplate: defaultRAGTemplate,
		InjectTemplate: defaultRAGTemplate,
		Models:         []string{model},
		Examples: []Example{
			{File: "data/sample.pdf", Query: "胃がん手術の説明書の要点を箇条書きで要約してください"},
			{File: "data/sample2.pdf", Query: "面会時間について教えてください"},
		},
		Parameters: []Parameter{
			{Name: "temperature", Label: "Temperature", Minimum: 0.1, Maximum: 1.0, Value: 0.5},
			{Name: "top_p", Label: "Top P", Minimum: 0.1, Maximum: 1.0, Value: 0.5},
		},
		ParametersNote: "⚠️Warning⚠️ Not implemented yet",
	}
}

// LoadPreset reads a YAML preset and fills unset fields from the default preset.
// An empty path yields the default preset.
func LoadPreset(path, model string) (*Preset, error) {
	preset := DefaultPreset(model)
	if path == "" {
		return preset, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}

	var loaded Preset
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse preset %s: %w", path, err)
	}

	if loaded.Title != "" {
		preset.Title = loaded.Title
	}
	if loaded.PromptTemplate != "" {
		preset.PromptTemplate = loaded.PromptTemplate
	}
	if loaded.InjectTemplate != "" {
		preset.InjectTemplate = loaded.InjectTemplate
	}
	if len(loaded.Models) > 0 {
		preset.Models = loaded.Models
	}
	if loaded.Examples != nil {
		preset.Examples = loaded.Examples
	}
	if loaded.Parameters != nil {
		preset.Parameters = loaded.Parameters
	}
	if loaded.ParametersNote != "" {
		preset.ParametersNote = loaded.ParametersNote
	}

	return preset, nil
}
