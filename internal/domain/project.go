package domain

import "strings"

// MaxProjectImages caps the number of images a project can hold.
const MaxProjectImages = 5

// InputConfig shapes the input form for a purpose.
type InputConfig struct {
	ImageLabel      string `json:"image_label" yaml:"image_label"`
	TextLabel       string `json:"text_label" yaml:"text_label"`
	TextPlaceholder string `json:"text_placeholder" yaml:"text_placeholder"`
	MultipleImages  bool   `json:"multiple_images" yaml:"multiple_images"`
}

// ImageLimit returns how many images the purpose accepts.
func (c InputConfig) ImageLimit() int {
	if c.MultipleImages {
		return MaxProjectImages
	}
	return 1
}

// Purpose is the page category a project is built for.
type Purpose struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"desc" yaml:"desc"`
	Input       InputConfig `json:"input_config" yaml:"input"`
}

// Style is a visual direction passed to the copy and image providers.
type Style struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// ProjectInputs holds what the user supplied before generation.
type ProjectInputs struct {
	Purpose     Purpose  `json:"purpose"`
	Style       *Style   `json:"style,omitempty"`
	Images      []string `json:"images"`
	Description string   `json:"description"`
}

// HasContent reports whether the inputs carry at least one image or some text.
func (p ProjectInputs) HasContent() bool {
	return len(p.Images) > 0 || strings.TrimSpace(p.Description) != ""
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p ProjectInputs) Clone() ProjectInputs {
	out := p
	out.Images = append([]string(nil), p.Images...)
	if p.Style != nil {
		s := *p.Style
		out.Style = &s
	}
	return out
}
