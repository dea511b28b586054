package analyzer

import (
	"strings"

	"github.com/gnemet/DeckForge/internal/locale"
	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Classification is the role a slide plays in a deck.
type Classification string

const (
	Cover   Classification = "cover"
	TOC     Classification = "toc"
	Divider Classification = "divider"
	Content Classification = "content"
	Ending  Classification = "ending"
)

// Classifications lists every classification in rule order.
var Classifications = []Classification{Cover, TOC, Ending, Divider, Content}

// ParseClassification converts a user supplied name, case-insensitively.
func ParseClassification(s string) (Classification, bool) {
	c := Classification(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Classifications {
		if c == known {
			return c, true
		}
	}
	return "", false
}

const (
	DefaultDividerMaxElements = 3
	DefaultNumberMaxDigits    = 3
)

// Classifier assigns classifications from layout names and slide text.
type Classifier struct {
	dividerMax int
	maxDigits  int

	cover, toc, ending, divider []string
}

// NewClassifier builds a classifier from keyword tables. Non-positive limits
// fall back to the defaults.
func NewClassifier(kw *locale.Keywords, dividerMaxElements, numberMaxDigits int) *Classifier {
	if dividerMaxElements <= 0 {
		dividerMaxElements = DefaultDividerMaxElements
	}
	if numberMaxDigits <= 0 {
		numberMaxDigits = DefaultNumberMaxDigits
	}
	return &Classifier{
		dividerMax: dividerMaxElements,
		maxDigits:  numberMaxDigits,
		cover:      foldAll(kw.Cover),
		toc:        foldAll(kw.TOC),
		ending:     foldAll(kw.Ending),
		divider:    foldAll(kw.Divider),
	}
}

// DefaultClassifier uses the embedded keyword tables and default limits.
func DefaultClassifier() (*Classifier, error) {
	kw, err := locale.Default()
	if err != nil {
		return nil, err
	}
	return NewClassifier(kw, 0, 0), nil
}

func fold(s string) string {
	return cases.Fold().String(s)
}

func foldAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, fold(s))
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Classify applies the rules in order and returns the first that matches:
// cover for the first slide or a cover layout, toc and ending by keywords in
// the text, divider by layout name or by a few text elements one of which is
// a bare short number, and content otherwise. texts holds one entry per text
// element, empty ones included.
func (c *Classifier) Classify(index int, layout string, texts []string) Classification {
	layoutF := fold(layout)
	if index == 0 || containsAny(layoutF, c.cover) {
		return Cover
	}

	all := fold(strings.Join(texts, " "))
	if containsAny(all, c.toc) {
		return TOC
	}
	if containsAny(all, c.ending) {
		return Ending
	}

	if containsAny(layoutF, c.divider) {
		return Divider
	}
	if len(texts) <= c.dividerMax {
		for _, t := range texts {
			if c.isShortNumber(t) {
				return Divider
			}
		}
	}
	return Content
}

// isShortNumber reports whether s, trimmed, is 1 to maxDigits decimal digits.
// Full-width digits count.
func (c *Classifier) isShortNumber(s string) bool {
	s = width.Narrow.String(strings.TrimSpace(s))
	if s == "" || len(s) > c.maxDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
