package plan

import (
	"github.com/gnemet/DeckForge/internal/deckerr"
)

// Job is a watch-mode request: build Output from Template following Slides.
// Relative paths are resolved by the caller.
type Job struct {
	Template string `json:"template" yaml:"template"`
	Output   string `json:"output" yaml:"output"`
	Slides   Plan   `json:"slides" yaml:"slides"`
}

// ParseJob decodes and checks a job document.
func ParseJob(data []byte, format Format) (*Job, error) {
	var j Job
	if err := decode(data, format, &j); err != nil {
		return nil, &deckerr.PlanError{Entry: -1, Reason: "malformed job " + string(format), Err: err}
	}
	if j.Template == "" {
		return nil, &deckerr.PlanError{Entry: -1, Field: "template", Reason: "job has no template"}
	}
	if j.Output == "" {
		return nil, &deckerr.PlanError{Entry: -1, Field: "output", Reason: "job has no output"}
	}
	return &j, nil
}

// LoadJob reads a job file. The format follows the file extension.
func LoadJob(path string) (*Job, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseJob(data, FormatFor(path))
}
