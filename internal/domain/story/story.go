package story

import (
	"fmt"
	"strings"
)

// Request is the validated input for one story, as collected by the form.
type Request struct {
	ProtagonistName string `json:"name"`
	Companion       string `json:"character"`
	Setting         string `json:"location"`
	VoicePreference string `json:"voice_id"`
	Interactive     bool   `json:"is_interactive"`
	TemplateID      string `json:"template_id,omitempty"`
}

// ApplyTemplate fills a blank companion or setting from the selected template.
func (r Request) ApplyTemplate() Request {
	t, ok := FindTemplate(r.TemplateID)
	if !ok || t.ID == CustomTemplateID {
		return r
	}
	if strings.TrimSpace(r.Companion) == "" {
		r.Companion = t.Companion
	}
	if strings.TrimSpace(r.Setting) == "" {
		r.Setting = t.Setting
	}
	return r
}

// Validate checks the required fields are present after trimming.
func (r Request) Validate() error {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(r.ProtagonistName) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Companion) == "" {
		missing = append(missing, "character")
	}
	if strings.TrimSpace(r.Setting) == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	if r.TemplateID != "" {
		if _, ok := FindTemplate(r.TemplateID); !ok {
			return fmt.Errorf("%w: unknown template %q", ErrInvalidRequest, r.TemplateID)
		}
	}
	return nil
}

// Title is the display title used when a story is saved.
func (r Request) Title() string {
	return "Сказка для " + strings.TrimSpace(r.ProtagonistName)
}

// AudioAsset is base64 encoded raw PCM in the fixed narration format.
type AudioAsset struct {
	Data string `json:"data"`
}

// IsEmpty reports whether the asset carries no audio at all.
func (a AudioAsset) IsEmpty() bool {
	return a.Data == ""
}

// Part is one narrated piece of a story.
type Part struct {
	Text  string      `json:"text"`
	Audio *AudioAsset `json:"audio_data"`
}

// HasAudio reports whether narration finished with a non-empty payload.
func (p Part) HasAudio() bool {
	return p.Audio != nil && !p.Audio.IsEmpty()
}

// MaxChoices caps the number of branches offered after a part.
const MaxChoices = 3

// NormalizeChoices trims entries, drops blanks and caps the list at MaxChoices.
func NormalizeChoices(choices []string) []string {
	out := make([]string, 0, len(choices))
	for _, c := range choices {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
		if len(out) == MaxChoices {
			break
		}
	}
	return out
}
