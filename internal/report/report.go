// Package report renders analyses and create reports for people (terminal
// text, Markdown, HTML) and machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gnemet/DeckForge/internal/analyzer"
	"github.com/gnemet/DeckForge/internal/cloner"
	"github.com/gnemet/DeckForge/internal/database"
	"github.com/russross/blackfriday/v2"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	slideStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("238")).
	Padding(0, 1)

var classStyles = map[analyzer.Classification]lipgloss.Style{
	analyzer.Cover:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
	analyzer.TOC:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	analyzer.Divider: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	analyzer.Content: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
	analyzer.Ending:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
}

// AnalysisText renders an analysis for the terminal.
func AnalysisText(a *analyzer.Analysis) string {
	var lines []string
	lines = append(lines,
		titleStyle.Render("Template "+a.Source),
		labelStyle.Render(fmt.Sprintf("%d slides, %.0f x %.0f pt", a.SlideCount, a.SlideWidthPt, a.SlideHeightPt)),
	)
	if len(a.Tags) > 0 {
		lines = append(lines, labelStyle.Render("Tags: ")+strings.Join(a.Tags, " "))
	}
	lines = append(lines, "")

	for _, s := range a.Slides {
		header := fmt.Sprintf("%s %s %s",
			slideStyle.Render(fmt.Sprintf("Slide %d", s.Index)),
			classStyles[s.Classification].Render("["+string(s.Classification)+"]"),
			labelStyle.Render(s.LayoutName))
		lines = append(lines, header)
		if len(s.TextElements) == 0 {
			lines = append(lines, labelStyle.Render("  (no text)"))
		}
		for _, e := range s.TextElements {
			text := strings.ReplaceAll(e.Text, "\n", " / ")
			if text == "" {
				text = labelStyle.Render("(empty)")
			}
			lines = append(lines, fmt.Sprintf("  %s %s", labelStyle.Render(e.Shape+":"), text))
		}
		lines = append(lines, "")
	}

	lines = append(lines, boxStyle.Render(typeSummary(a)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func typeSummary(a *analyzer.Analysis) string {
	var parts []string
	for _, c := range analyzer.Classifications {
		idx := a.SlideTypes[c]
		if len(idx) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", c, joinInts(idx)))
	}
	if len(parts) == 0 {
		return "no slides"
	}
	return strings.Join(parts, "\n")
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = fmt.Sprint(n)
	}
	return strings.Join(s, ", ")
}

// AnalysisMarkdown renders an analysis as a Markdown document, one table of
// text elements per slide.
func AnalysisMarkdown(a *analyzer.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Template %s\n\n", mdEscape(a.Source))
	fmt.Fprintf(&sb, "%d slides, %.0f x %.0f pt\n\n", a.SlideCount, a.SlideWidthPt, a.SlideHeightPt)
	if len(a.Tags) > 0 {
		fmt.Fprintf(&sb, "Tags: %s\n\n", mdEscape(strings.Join(a.Tags, " ")))
	}

	for _, s := range a.Slides {
		fmt.Fprintf(&sb, "## Slide %d: %s\n\n", s.Index, s.Classification)
		fmt.Fprintf(&sb, "Layout: %s\n\n", mdEscape(s.LayoutName))
		if len(s.TextElements) == 0 {
			sb.WriteString("No text elements.\n\n")
			continue
		}
		sb.WriteString("| Shape | Text | Runs |\n|---|---|---|\n")
		for _, e := range s.TextElements {
			fmt.Fprintf(&sb, "| %s | %s | %d |\n", mdCell(e.Shape), mdCell(e.Text), e.RunCount)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func mdEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func mdCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(mdEscape(s), "|", `\|`), "\n", "<br>")
}

// AnalysisHTML renders the Markdown form of an analysis as a standalone HTML
// page.
func AnalysisHTML(a *analyzer.Analysis) []byte {
	body := blackfriday.Run([]byte(AnalysisMarkdown(a)))
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(a.Source))
	sb.WriteString("<style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	sb.WriteString("</head>\n<body>\n")
	sb.Write(body)
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}

// CreateText renders a create report for the terminal.
func CreateText(r *cloner.Report) string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("Created %s", r.Output)),
		labelStyle.Render(fmt.Sprintf("%d slides from %s", r.SlideCount, r.Template)),
		"",
	}
	for _, e := range r.Entries {
		lines = append(lines, fmt.Sprintf("%s %s",
			slideStyle.Render(fmt.Sprintf("Entry %d", e.Entry)),
			labelStyle.Render(fmt.Sprintf("template slide %d [%s]", e.Source, e.Classification))))

		keys := make([]string, 0, len(e.Applied))
		for k := range e.Applied {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, okStyle.Render(fmt.Sprintf("  ✓ %q x%d", k, e.Applied[k])))
		}
		for _, k := range e.NotFound {
			line := warnStyle.Render(fmt.Sprintf("  ✗ %q not found", k))
			if hints := e.Suggestions[k]; len(hints) > 0 {
				line += labelStyle.Render(fmt.Sprintf(" (did you mean %q?)", hints[0]))
			}
			lines = append(lines, line)
		}
	}
	if n := r.MissingKeys(); n > 0 {
		lines = append(lines, "", warnStyle.Render(fmt.Sprintf("%d replacement keys not found", n)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

// HistoryText renders recorded generations, newest first, and the AI spend.
func HistoryText(gens []database.Generation, aiCost float64) string {
	lines := []string{titleStyle.Render("Generation history"), ""}
	if len(gens) == 0 {
		lines = append(lines, labelStyle.Render("  (no generations recorded)"))
	}
	for _, g := range gens {
		status := okStyle.Render(g.Status)
		if g.Status != database.StatusDone {
			status = warnStyle.Render(g.Status)
		}
		line := fmt.Sprintf("%s %s %s -> %s",
			labelStyle.Render(g.CreatedAt.Format("2006-01-02 15:04")), status, g.TemplatePath, g.OutputPath)
		if g.Status == database.StatusDone {
			line += labelStyle.Render(fmt.Sprintf(" (%d slides, %d keys not found)", g.SlideCount, g.MissingKeys))
		} else if g.Error != "" {
			line += " " + warnStyle.Render(g.Error)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", boxStyle.Render(fmt.Sprintf("AI cost to date: %.6f", aiCost)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

// JSON encodes v with indentation.
func JSON(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteJSON stores v as indented JSON at path.
func WriteJSON(path string, v interface{}) error {
	data, err := JSON(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
