// Package analyzer inventories the slides of a template deck: their
// classification, layout and every text element a plan can replace.
package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gnemet/DeckForge/internal/pptx"
)

const previewLength = 50

// tagPattern matches {{name}} markers left in templates for replacement.
var tagPattern = regexp.MustCompile(`{{[^{}]+}}`)

// TextElement is one text-bearing shape of a slide.
type TextElement struct {
	// Shape is the display identifier used by shape: replacement keys.
	Shape       string `json:"shape"`
	ShapeID     int    `json:"shape_id"`
	Placeholder string `json:"placeholder,omitempty"`
	Text        string `json:"text"`
	RunCount    int    `json:"run_count"`
}

// SlideInfo describes one template slide.
type SlideInfo struct {
	Index          int            `json:"index"`
	Classification Classification `json:"classification"`
	LayoutName     string         `json:"layout_name"`
	TextElements   []TextElement  `json:"text_elements"`
	ShapeCount     int            `json:"shape_count"`
	PreviewText    string         `json:"preview_text"`
	Notes          string         `json:"notes,omitempty"`
	// Tags lists the {{name}} markers of the slide in order of appearance.
	Tags           []string       `json:"tags,omitempty"`
}

// Texts returns the text of every element in order.
func (s SlideInfo) Texts() []string {
	out := make([]string, len(s.TextElements))
	for i, e := range s.TextElements {
		out[i] = e.Text
	}
	return out
}

// Analysis is the result of analyzing a template.
type Analysis struct {
	Source        string                   `json:"source"`
	SlideCount    int                      `json:"slide_count"`
	SlideWidthPt  float64                  `json:"slide_width_pt"`
	SlideHeightPt float64                  `json:"slide_height_pt"`
	Slides        []SlideInfo              `json:"slides"`
	SlideTypes    map[Classification][]int `json:"slide_types"`
	Tags          []string                 `json:"tags,omitempty"`
}

// OfType returns the indexes of the slides with classification c.
func (a *Analysis) OfType(c Classification) []int {
	return a.SlideTypes[c]
}

// Analyzer runs a Classifier over decks.
type Analyzer struct {
	classifier *Classifier
}

func New(c *Classifier) *Analyzer {
	return &Analyzer{classifier: c}
}

// Analyze opens and analyzes the template at path with the default keyword
// tables.
func Analyze(path string) (*Analysis, error) {
	c, err := DefaultClassifier()
	if err != nil {
		return nil, err
	}
	return New(c).Analyze(path)
}

// Analyze opens and analyzes the template at path.
func (a *Analyzer) Analyze(path string) (*Analysis, error) {
	deck, err := pptx.Open(path)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeDeck(deck)
}

// AnalyzeDeck analyzes an open deck. The deck is not modified.
func (a *Analyzer) AnalyzeDeck(deck *pptx.Deck) (*Analysis, error) {
	w, h := deck.SlideSizeEMU()
	res := &Analysis{
		Source:        deck.Path,
		SlideCount:    deck.SlideCount(),
		SlideWidthPt:  pptx.EMUToPoints(w),
		SlideHeightPt: pptx.EMUToPoints(h),
		Slides:        make([]SlideInfo, 0, deck.SlideCount()),
		SlideTypes:    make(map[Classification][]int),
	}

	for i := 0; i < deck.SlideCount(); i++ {
		slide, err := deck.Slide(i)
		if err != nil {
			return nil, err
		}
		info := a.describe(slide)
		if info.Notes, err = deck.Notes(slide.Part); err != nil {
			return nil, err
		}
		res.Slides = append(res.Slides, info)
		res.SlideTypes[info.Classification] = append(res.SlideTypes[info.Classification], i)
		res.Tags = appendNew(res.Tags, info.Tags...)
	}
	sort.Strings(res.Tags)
	return res, nil
}

func (a *Analyzer) describe(slide *pptx.Slide) SlideInfo {
	info := SlideInfo{
		Index:        slide.Index,
		LayoutName:   slide.Layout,
		ShapeCount:   len(slide.Shapes),
		TextElements: []TextElement{},
	}
	for _, sh := range slide.TextShapes() {
		text := sh.Text.String()
		info.TextElements = append(info.TextElements, TextElement{
			Shape:       slide.Identifier(sh),
			ShapeID:     sh.ID,
			Placeholder: sh.Placeholder,
			Text:        text,
			RunCount:    sh.Text.RunCount(),
		})
		if info.PreviewText == "" {
			info.PreviewText = preview(text)
		}
		info.Tags = appendNew(info.Tags, tagPattern.FindAllString(text, -1)...)
	}
	info.Classification = a.classifier.Classify(slide.Index, slide.Layout, info.Texts())
	return info
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) > previewLength {
		return string(r[:previewLength])
	}
	return text
}

func appendNew(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
