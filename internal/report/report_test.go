package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gnemet/DeckForge/internal/analyzer"
	"github.com/gnemet/DeckForge/internal/cloner"
	"github.com/gnemet/DeckForge/internal/database"
)

func sample() *analyzer.Analysis {
	return &analyzer.Analysis{
		Source:        "deck.pptx",
		SlideCount:    2,
		SlideWidthPt:  960,
		SlideHeightPt: 540,
		Slides: []analyzer.SlideInfo{
			{Index: 0, Classification: analyzer.Cover, LayoutName: "Title Slide", TextElements: []analyzer.TextElement{
				{Shape: "Title 1", Text: "Q3 | Review", RunCount: 2},
				{Shape: "#2", Text: "line one\nline two", RunCount: 2},
			}},
			{Index: 1, Classification: analyzer.Ending, LayoutName: "Blank", TextElements: []analyzer.TextElement{}},
		},
		SlideTypes: map[analyzer.Classification][]int{analyzer.Cover: {0}, analyzer.Ending: {1}},
		Tags:       []string{"{{date}}"},
	}
}

func TestAnalysisText(t *testing.T) {
	out := AnalysisText(sample())
	for _, want := range []string{"deck.pptx", "2 slides", "Slide 0", "[cover]", "Title Slide", "Title 1:", "line one / line two", "(no text)", "ending: 1", "{{date}}"} {
		if !strings.Contains(out, want) {
			t.Errorf("text report lacks %q:\n%s", want, out)
		}
	}
}

func TestAnalysisMarkdownAndHTML(t *testing.T) {
	md := AnalysisMarkdown(sample())
	for _, want := range []string{"## Slide 0: cover", `Q3 \| Review`, "line one<br>line two", "No text elements."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown lacks %q:\n%s", want, md)
		}
	}

	page := string(AnalysisHTML(sample()))
	for _, want := range []string{"<!DOCTYPE html>", "<title>deck.pptx</title>", "<h2>Slide 0: cover</h2>", "<table>", "Title 1"} {
		if !strings.Contains(page, want) {
			t.Errorf("html lacks %q:\n%s", want, page)
		}
	}
}

func TestCreateText(t *testing.T) {
	r := &cloner.Report{
		Template:   "tpl.pptx",
		Output:     "out.pptx",
		SlideCount: 1,
		Entries: []cloner.EntryReport{{
			Entry: 0, Source: 2, Classification: analyzer.Content,
			Applied:     map[string]int{"{{a}}": 2},
			NotFound:    []string{"AcmeCorp"},
			Suggestions: map[string][]string{"AcmeCorp": {"Acme Corp"}},
		}},
	}
	out := CreateText(r)
	for _, want := range []string{"Created out.pptx", "template slide 2 [content]", `"{{a}}" x2`, `"AcmeCorp" not found`, `did you mean "Acme Corp"`, "1 replacement keys not found"} {
		if !strings.Contains(out, want) {
			t.Errorf("create report lacks %q:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.json")
	if err := WriteJSON(path, sample()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	var back analyzer.Analysis
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("written JSON does not decode: %v", err)
	}
	if back.SlideCount != 2 || back.Slides[0].TextElements[0].Shape != "Title 1" || back.SlideTypes[analyzer.Ending][0] != 1 {
		t.Errorf("decoded analysis = %+v", back)
	}
	if !strings.Contains(string(data), `"slide_types"`) || !strings.Contains(string(data), `"text_elements": []`) {
		t.Errorf("unexpected JSON layout:\n%s", data)
	}

	if err := WriteJSON(filepath.Join(t.TempDir(), "missing", "x.json"), sample()); err == nil {
		t.Error("expected an error writing into a missing directory")
	}
}

func TestHistoryText(t *testing.T) {
	at := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	out := HistoryText([]database.Generation{
		{Job: "q3.json", TemplatePath: "t.pptx", OutputPath: "q3.pptx", Status: database.StatusDone, SlideCount: 4, MissingKeys: 1, CreatedAt: at},
		{Job: "bad.json", TemplatePath: "t.pptx", OutputPath: "bad.pptx", Status: database.StatusFailed, Error: "entry 0: bad index", CreatedAt: at},
	}, 0.0125)
	for _, want := range []string{"2026-10-01 09:30", "t.pptx -> q3.pptx", "(4 slides, 1 keys not found)", "failed", "entry 0: bad index", "AI cost to date: 0.012500"} {
		if !strings.Contains(out, want) {
			t.Errorf("history lacks %q:\n%s", want, out)
		}
	}

	if empty := HistoryText(nil, 0); !strings.Contains(empty, "no generations recorded") {
		t.Errorf("empty history:\n%s", empty)
	}
}
