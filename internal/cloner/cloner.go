// Package cloner builds a new deck from the slides of a template following a
// content plan.
package cloner

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/gnemet/DeckForge/internal/analyzer"
	"github.com/gnemet/DeckForge/internal/plan"
	"github.com/gnemet/DeckForge/internal/pptx"
	"github.com/sahilm/fuzzy"
)

// maxSuggestions caps the hints listed for one missing key.
const maxSuggestions = 3

// EntryReport is the outcome of one plan entry.
type EntryReport struct {
	Entry          int                     `json:"entry"`
	Source         int                     `json:"source"`
	Classification analyzer.Classification `json:"classification"`
	Applied        map[string]int          `json:"applied"`
	NotFound       []string                `json:"not_found"`
	// Suggestions lists slide texts, or shape identifiers for shape: keys,
	// that resemble a key which matched nothing.
	Suggestions map[string][]string `json:"suggestions,omitempty"`
}

// Report describes a created deck.
type Report struct {
	Template   string        `json:"template"`
	Output     string        `json:"output"`
	SlideCount int           `json:"slide_count"`
	Entries    []EntryReport `json:"entries"`
}

// MissingKeys counts the replacement keys that matched nothing.
func (r *Report) MissingKeys() int {
	n := 0
	for _, e := range r.Entries {
		n += len(e.NotFound)
	}
	return n
}

type Options struct {
	// Analyzer classifies the template; nil uses the embedded keyword tables.
	Analyzer *analyzer.Analyzer
}

// Create builds outputPath from the template at templatePath following p.
//
// The template is opened, analyzed and the plan resolved before anything is
// built, and the output is written once at the very end, so any error leaves
// outputPath untouched.
func Create(templatePath string, p plan.Plan, outputPath string, opts Options) (*Report, error) {
	if same(templatePath, outputPath) {
		return nil, fmt.Errorf("output path %s is the template itself", outputPath)
	}

	az := opts.Analyzer
	if az == nil {
		c, err := analyzer.DefaultClassifier()
		if err != nil {
			return nil, err
		}
		az = analyzer.New(c)
	}

	deck, err := pptx.Open(templatePath)
	if err != nil {
		return nil, err
	}
	a, err := az.AnalyzeDeck(deck)
	if err != nil {
		return nil, err
	}

	pkg, report, err := Build(deck, a, p)
	if err != nil {
		return nil, err
	}
	if err := pkg.Save(outputPath); err != nil {
		return nil, err
	}

	report.Template = templatePath
	report.Output = outputPath
	log.Printf("Created %s from %s: %d slides, %d replacement keys not found",
		outputPath, templatePath, report.SlideCount, report.MissingKeys())
	return report, nil
}

// Build assembles the planned deck in memory. a must be the analysis of deck.
func Build(deck *pptx.Deck, a *analyzer.Analysis, p plan.Plan) (*pptx.Package, *Report, error) {
	resolved, err := plan.Resolve(p, a)
	if err != nil {
		return nil, nil, err
	}

	b, err := pptx.NewBuilder(deck)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{Entries: make([]EntryReport, 0, len(resolved))}
	for _, r := range resolved {
		slide, err := b.AddSlide(r.Source)
		if err != nil {
			return nil, nil, fmt.Errorf("plan entry %d: %w", r.Entry, err)
		}
		res := slide.ReplaceText(r.Replacements)
		if err := b.Commit(slide); err != nil {
			return nil, nil, fmt.Errorf("plan entry %d: %w", r.Entry, err)
		}

		info := a.Slides[r.Source]
		er := EntryReport{
			Entry:          r.Entry,
			Source:         r.Source,
			Classification: info.Classification,
			Applied:        res.Applied,
			NotFound:       res.NotFound,
		}
		if er.NotFound == nil {
			er.NotFound = []string{}
		}
		if s := suggest(res.NotFound, info); len(s) > 0 {
			er.Suggestions = s
		}
		report.Entries = append(report.Entries, er)
	}

	pkg, err := b.Package()
	if err != nil {
		return nil, nil, err
	}
	report.SlideCount = len(resolved)
	return pkg, report, nil
}

// suggest finds, for every missing key, the closest texts on the source
// slide. shape: keys are compared with shape identifiers instead.
func suggest(missing []string, info analyzer.SlideInfo) map[string][]string {
	var texts, shapes []string
	for _, e := range info.TextElements {
		if strings.TrimSpace(e.Text) != "" {
			texts = append(texts, e.Text)
		}
		shapes = append(shapes, e.Shape)
	}

	out := map[string][]string{}
	for _, key := range missing {
		pattern, data := key, texts
		if strings.HasPrefix(key, pptx.ShapeKeyPrefix) {
			pattern, data = strings.TrimPrefix(key, pptx.ShapeKeyPrefix), shapes
		}
		if pattern == "" || len(data) == 0 {
			continue
		}
		matches := fuzzy.Find(pattern, data)
		var hints []string
		for i, m := range matches {
			if i == maxSuggestions {
				break
			}
			hints = append(hints, m.Str)
		}
		if len(hints) > 0 {
			out[key] = hints
		}
	}
	return out
}

func same(a, b string) bool {
	pa, err1 := filepath.Abs(a)
	pb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return pa == pb
}
