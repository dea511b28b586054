// Package plan reads content plans: the ordered list of template slides to
// copy into a new deck, each with the text replacements to apply to its copy.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gnemet/DeckForge/internal/analyzer"
	"github.com/gnemet/DeckForge/internal/deckerr"
	"gopkg.in/yaml.v3"
)

// Entry is one slide of a plan. TemplateSlide selects the template slide by
// zero-based index; when it is absent, Type selects the first template slide
// with that classification.
type Entry struct {
	TemplateSlide *int              `json:"template_slide,omitempty" yaml:"template_slide,omitempty"`
	Type          string            `json:"type,omitempty" yaml:"type,omitempty"`
	Replacements  map[string]string `json:"replacements,omitempty" yaml:"replacements,omitempty"`
}

// Plan is an ordered list of entries. The same template slide may appear any
// number of times.
type Plan []Entry

// Slide returns an entry copying template slide index with replacements.
func Slide(index int, replacements map[string]string) Entry {
	return Entry{TemplateSlide: &index, Replacements: replacements}
}

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFor picks the format from a file extension; anything but .yaml and
// .yml is read as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// Parse decodes a plan. Decoding failures are reported as a PlanError for the
// plan as a whole.
func Parse(data []byte, format Format) (Plan, error) {
	var p Plan
	if err := decode(data, format, &p); err != nil {
		return nil, &deckerr.PlanError{Entry: -1, Reason: "malformed " + string(format), Err: err}
	}
	return p, nil
}

func decode(data []byte, format Format, v interface{}) error {
	switch format {
	case YAML:
		return yaml.Unmarshal(data, v)
	case JSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return fmt.Errorf("empty document")
		}
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// Load reads a plan file. The format follows the file extension.
func Load(path string) (Plan, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, FormatFor(path))
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, deckerr.NotFound(path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Resolved is a validated plan entry bound to a template slide.
type Resolved struct {
	Entry        int
	Source       int
	Replacements map[string]string
}

// Resolve validates p against the analysis of its template and binds every
// entry to a slide index. The first invalid entry aborts with a PlanError
// naming it.
func Resolve(p Plan, a *analyzer.Analysis) ([]Resolved, error) {
	out := make([]Resolved, 0, len(p))
	for i, e := range p {
		src, err := resolveSource(i, e, a)
		if err != nil {
			return nil, err
		}
		for k := range e.Replacements {
			if k == "" {
				return nil, deckerr.Plan(i, "replacements", "empty replacement key")
			}
		}
		out = append(out, Resolved{Entry: i, Source: src, Replacements: e.Replacements})
	}
	return out, nil
}

func resolveSource(i int, e Entry, a *analyzer.Analysis) (int, error) {
	if e.TemplateSlide != nil {
		idx := *e.TemplateSlide
		if idx < 0 || idx >= a.SlideCount {
			return 0, deckerr.Plan(i, "template_slide",
				fmt.Sprintf("index %d out of range (template has %d slides)", idx, a.SlideCount))
		}
		return idx, nil
	}
	if e.Type == "" {
		return 0, deckerr.Plan(i, "template_slide", "missing template_slide or type")
	}
	c, ok := analyzer.ParseClassification(e.Type)
	if !ok {
		return 0, deckerr.Plan(i, "type", fmt.Sprintf("unknown slide type %q", e.Type))
	}
	slides := a.OfType(c)
	if len(slides) == 0 {
		return 0, deckerr.Plan(i, "type", fmt.Sprintf("template has no %s slide", c))
	}
	return slides[0], nil
}
