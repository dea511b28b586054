package analyzer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gnemet/DeckForge/internal/deckerr"
	"github.com/gnemet/DeckForge/internal/locale"
	"github.com/gnemet/DeckForge/internal/pptx/pptxtest"
)

func TestClassify(t *testing.T) {
	c, err := DefaultClassifier()
	if err != nil {
		t.Fatalf("DefaultClassifier failed: %v", err)
	}

	tests := []struct {
		name   string
		index  int
		layout string
		texts  []string
		want   Classification
	}{
		{"first slide", 0, "Blank", []string{"Thank You"}, Cover},
		{"title layout", 4, "Title Only", []string{"Revenue"}, Cover},
		{"cover layout in chinese", 4, "封面", nil, Cover},
		{"agenda", 2, "Blank", []string{"AGENDA", "1. Intro"}, TOC},
		{"chinese toc", 2, "Blank", []string{"目录"}, TOC},
		{"japanese toc", 2, "Blank", []string{"目次"}, TOC},
		{"toc before ending", 2, "Blank", []string{"Contents", "Thank you"}, TOC},
		{"thank you", 7, "Blank", []string{"Thank you for listening"}, Ending},
		{"chinese ending", 7, "Blank", []string{"感谢聆听"}, Ending},
		{"section layout", 3, "Section Header", []string{"Market"}, Divider},
		{"number", 3, "Blank", []string{"01", "Intro", ""}, Divider},
		{"full-width number", 3, "Blank", []string{" ０２ ", "Part"}, Divider},
		{"too many elements", 3, "Blank", []string{"01", "a", "b", "c"}, Content},
		{"long number", 3, "Blank", []string{"2024", "Revenue"}, Content},
		{"decimal", 3, "Blank", []string{"12.5"}, Content},
		{"no text", 3, "Blank", nil, Content},
		{"plain content", 3, "Two Content", []string{"Results", "Growth was strong"}, Content},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.index, tt.layout, tt.texts); got != tt.want {
				t.Errorf("Classify(%d, %q, %q) = %s, want %s", tt.index, tt.layout, tt.texts, got, tt.want)
			}
		})
	}
}

func TestClassifierLimitsAndKeywords(t *testing.T) {
	kw, _ := locale.Default()
	kw.Merge(locale.Table{Language: "de", TOC: []string{"Inhalt"}})
	c := NewClassifier(kw, 4, 4)

	if got := c.Classify(2, "Blank", []string{"INHALT"}); got != TOC {
		t.Errorf("merged keyword: got %s", got)
	}
	if got := c.Classify(2, "Blank", []string{"2024", "a", "b", "c"}); got != Divider {
		t.Errorf("raised limits: got %s", got)
	}
}

func TestParseClassification(t *testing.T) {
	if c, ok := ParseClassification(" TOC "); !ok || c != TOC {
		t.Errorf("ParseClassification(TOC) = %q, %v", c, ok)
	}
	if _, ok := ParseClassification("appendix"); ok {
		t.Error("unknown classification accepted")
	}
}

func endToEndTemplate() pptxtest.Deck {
	return pptxtest.Deck{Slides: []pptxtest.Slide{
		{Layout: "Title Slide", Shapes: []pptxtest.Shape{pptxtest.Text("Title 1", "Acme Corp")}},
		{Layout: "Blank", Shapes: []pptxtest.Shape{pptxtest.Text("Heading", "目录")}},
		{Layout: "Blank", Shapes: []pptxtest.Shape{
			pptxtest.Text("Number", "01"),
			pptxtest.Text("Label", "Intro"),
			{Name: "Empty"},
		}},
	}}
}

func TestAnalyzeTemplate(t *testing.T) {
	path := pptxtest.Write(t, t.TempDir(), "template.pptx", endToEndTemplate())

	a, err := Analyze(path)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.SlideCount != 3 || len(a.Slides) != 3 {
		t.Fatalf("slide count = %d / %d", a.SlideCount, len(a.Slides))
	}
	if a.Source != path || a.SlideWidthPt != 960 || a.SlideHeightPt != 540 {
		t.Errorf("header = %q %vx%v", a.Source, a.SlideWidthPt, a.SlideHeightPt)
	}

	want := []Classification{Cover, TOC, Divider}
	for i, s := range a.Slides {
		if s.Index != i {
			t.Errorf("slide %d has index %d", i, s.Index)
		}
		if s.Classification != want[i] {
			t.Errorf("slide %d classified %s, want %s", i, s.Classification, want[i])
		}
	}

	if a.Slides[0].LayoutName != "Title Slide" || a.Slides[0].PreviewText != "Acme Corp" {
		t.Errorf("slide 0 = %+v", a.Slides[0])
	}

	elems := a.Slides[2].TextElements
	if len(elems) != 3 {
		t.Fatalf("slide 2 has %d text elements, want 3", len(elems))
	}
	if elems[0].Shape != "Number" || elems[0].Text != "01" || elems[0].RunCount != 1 {
		t.Errorf("element 0 = %+v", elems[0])
	}
	if elems[2].Shape != "Empty" || elems[2].Text != "" || elems[2].RunCount != 0 {
		t.Errorf("empty element = %+v", elems[2])
	}

	if !reflect.DeepEqual(a.OfType(Divider), []int{2}) || len(a.OfType(Ending)) != 0 {
		t.Errorf("slide types = %v", a.SlideTypes)
	}
}

func TestAnalyzeEdgeCases(t *testing.T) {
	dir := t.TempDir()

	empty := pptxtest.Write(t, dir, "empty.pptx", pptxtest.Deck{})
	a, err := Analyze(empty)
	if err != nil {
		t.Fatalf("Analyze of a deck without slides failed: %v", err)
	}
	if a.SlideCount != 0 || a.Slides == nil || len(a.Slides) != 0 {
		t.Errorf("empty deck analysis = %+v", a)
	}

	pictures := pptxtest.Write(t, dir, "pictures.pptx", pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{pptxtest.Picture("Photo", pptxtest.PNG)}, Notes: "mention the photo"},
	}})
	a, err = Analyze(pictures)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	s := a.Slides[0]
	if s.TextElements == nil || len(s.TextElements) != 0 || s.ShapeCount != 1 {
		t.Errorf("picture slide = %+v", s)
	}
	if s.Notes != "mention the photo" {
		t.Errorf("notes = %q", s.Notes)
	}

	if _, err := Analyze(filepath.Join(dir, "missing.pptx")); !deckerr.IsNotFound(err) {
		t.Errorf("missing file: %v", err)
	}
	bad := filepath.Join(dir, "bad.pptx")
	os.WriteFile(bad, []byte("not a deck"), 0644)
	if _, err := Analyze(bad); !deckerr.IsFormat(err) {
		t.Errorf("bad file: %v", err)
	}
}

func TestAnalyzeIsReadOnly(t *testing.T) {
	path := pptxtest.Write(t, t.TempDir(), "template.pptx", endToEndTemplate())
	before, _ := os.ReadFile(path)
	if _, err := Analyze(path); err != nil {
		t.Fatal(err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("Analyze modified the template")
	}
}

func TestAnalyzeCollectsTags(t *testing.T) {
	d := pptxtest.Deck{Slides: []pptxtest.Slide{
		{Shapes: []pptxtest.Shape{
			pptxtest.Runs("Title", pptxtest.Run{Text: "{{cli"}, pptxtest.Run{Text: "ent}} review"}),
			pptxtest.Text("Body", "{{date}} and {{client}} and {{ date}"),
		}},
		{Shapes: []pptxtest.Shape{pptxtest.Text("Body", "{{author}} {{date}}")}},
	}}
	a, err := Analyze(pptxtest.Write(t, t.TempDir(), "tags.pptx", d))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got, want := a.Slides[0].Tags, []string{"{{client}}", "{{date}}"}; !reflect.DeepEqual(got, want) {
		t.Errorf("slide 0 tags = %q, want %q", got, want)
	}
	if got, want := a.Tags, []string{"{{author}}", "{{client}}", "{{date}}"}; !reflect.DeepEqual(got, want) {
		t.Errorf("deck tags = %q, want %q", got, want)
	}
}
