package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gnemet/DeckForge/internal/deckerr"
	"github.com/gnemet/DeckForge/internal/pptx/pptxtest"
)

func template(t *testing.T, dir string) string {
	return pptxtest.Write(t, dir, "template.pptx", pptxtest.Deck{Slides: []pptxtest.Slide{
		{Layout: "Title Slide", Shapes: []pptxtest.Shape{pptxtest.Text("Title 1", "Acme Corp")}},
		{Layout: "Blank", Shapes: []pptxtest.Shape{pptxtest.Text("Body", "Agenda")}},
	}})
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("DECKFORGE_CONFIG", "")
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("DB_ENABLED", "false")
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	tpl := template(t, dir)

	code, out, _ := runCLI(t, "analyze", tpl)
	if code != deckerr.ExitOK || !strings.Contains(out, "Acme Corp") || !strings.Contains(out, "[toc]") {
		t.Errorf("analyze = %d\n%s", code, out)
	}

	jsonPath := filepath.Join(dir, "analysis.json")
	if code, _, stderr := runCLI(t, "analyze", tpl, "-o", jsonPath); code != deckerr.ExitOK {
		t.Fatalf("analyze -o = %d: %s", code, stderr)
	}
	data, _ := os.ReadFile(jsonPath)
	var a struct {
		SlideCount int `json:"slide_count"`
	}
	if err := json.Unmarshal(data, &a); err != nil || a.SlideCount != 2 {
		t.Errorf("analysis file = %s (%v)", data, err)
	}

	if code, out, _ := runCLI(t, "analyze", "-format", "markdown", tpl); code != deckerr.ExitOK || !strings.Contains(out, "## Slide 1: toc") {
		t.Errorf("markdown analyze = %d\n%s", code, out)
	}
}

func TestCreateCommand(t *testing.T) {
	dir := t.TempDir()
	tpl := template(t, dir)
	planPath := filepath.Join(dir, "plan.yaml")
	os.WriteFile(planPath, []byte("- template_slide: 0\n  replacements:\n    Acme Corp: Globex\n- type: toc\n"), 0644)
	out := filepath.Join(dir, "out.pptx")
	reportPath := filepath.Join(dir, "report.json")

	code, stdout, stderr := runCLI(t, "create", tpl, planPath, out, "-report", reportPath)
	if code != deckerr.ExitOK {
		t.Fatalf("create = %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Created "+out) {
		t.Errorf("create output:\n%s", stdout)
	}
	if _, err := os.Stat(out); err != nil {
		t.Error("output deck missing")
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Error("report file missing")
	}
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()
	tpl := template(t, dir)
	badPlan := filepath.Join(dir, "bad.json")
	os.WriteFile(badPlan, []byte(`[{"template_slide": 5}]`), 0644)
	notZip := filepath.Join(dir, "notzip.pptx")
	os.WriteFile(notZip, []byte("hello"), 0644)

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, deckerr.ExitUsage},
		{"unknown command", []string{"frobnicate"}, deckerr.ExitUsage},
		{"missing argument", []string{"create", tpl}, deckerr.ExitUsage},
		{"unknown flag", []string{"analyze", tpl, "-x"}, deckerr.ExitUsage},
		{"missing template", []string{"analyze", filepath.Join(dir, "none.pptx")}, deckerr.ExitNotFound},
		{"invalid template", []string{"analyze", notZip}, deckerr.ExitFormat},
		{"bad plan", []string{"create", tpl, badPlan, filepath.Join(dir, "o.pptx")}, deckerr.ExitPlan},
		{"missing plan", []string{"create", tpl, filepath.Join(dir, "none.json"), filepath.Join(dir, "o.pptx")}, deckerr.ExitNotFound},
		{"draft without outline", []string{"draft", tpl}, deckerr.ExitUsage},
		{"history without database", []string{"history"}, deckerr.ExitFailure},
		{"history bad format", []string{"history", "-format", "xml"}, deckerr.ExitUsage},
		{"history extra argument", []string{"history", "all"}, deckerr.ExitUsage},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if code, _, stderr := runCLI(t, c.args...); code != c.want {
				t.Errorf("exit code = %d, want %d (%s)", code, c.want, stderr)
			}
		})
	}
	if _, err := os.Stat(filepath.Join(dir, "o.pptx")); !os.IsNotExist(err) {
		t.Error("output written by a failed create")
	}
}

func TestDraftCommandWithMock(t *testing.T) {
	dir := t.TempDir()
	tpl := template(t, dir)
	outline := filepath.Join(dir, "outline.txt")
	os.WriteFile(outline, []byte("Kickoff\n- goals\n"), 0644)
	planPath := filepath.Join(dir, "plan.json")

	code, _, stderr := runCLI(t, "draft", tpl, "-outline", outline, "-o", planPath)
	if code != deckerr.ExitOK {
		t.Fatalf("draft = %d: %s", code, stderr)
	}
	data, _ := os.ReadFile(planPath)
	if !strings.Contains(string(data), `"template_slide": 0`) {
		t.Errorf("drafted plan = %s", data)
	}
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != deckerr.ExitOK || !strings.HasPrefix(out, "DeckForge ") {
		t.Errorf("version = %d %q", code, out)
	}
}
