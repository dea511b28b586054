package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/gnemet/DeckForge/internal/analyzer"
	"github.com/gnemet/DeckForge/internal/plan"
)

// DraftPlan asks the model for a content plan that turns outline into a deck
// built from the analyzed template. The answer is parsed and validated against
// the analysis; a plan that does not resolve is returned as the PlanError.
func (c *Client) DraftPlan(ctx context.Context, a *analyzer.Analysis, outline string) (plan.Plan, Usage, error) {
	text, usage, err := c.Generate(ctx, draftPrompt(a, outline))
	if err != nil {
		return nil, usage, err
	}
	p, err := plan.Parse([]byte(stripFences(text)), plan.JSON)
	if err != nil {
		return nil, usage, err
	}
	if _, err := plan.Resolve(p, a); err != nil {
		return nil, usage, err
	}
	return p, usage, nil
}

func draftPrompt(a *analyzer.Analysis, outline string) string {
	var sb strings.Builder
	sb.WriteString("You plan presentations built only from the slides of an existing template.\n")
	sb.WriteString("Each template slide is listed with its index, type, layout and text elements.\n\n")

	for _, s := range a.Slides {
		fmt.Fprintf(&sb, "Slide %d [%s] layout %q\n", s.Index, s.Classification, s.LayoutName)
		for _, e := range s.TextElements {
			if strings.TrimSpace(e.Text) == "" {
				continue
			}
			fmt.Fprintf(&sb, "  - %s: %q\n", e.Shape, e.Text)
		}
	}

	sb.WriteString("\nOutline of the presentation to produce:\n")
	sb.WriteString(strings.TrimSpace(outline))
	sb.WriteString("\n\nAnswer with a JSON array only. Each element is an object with\n")
	sb.WriteString("\"template_slide\" (a slide index from the list above, slides may repeat) and\n")
	sb.WriteString("\"replacements\" (an object mapping text copied exactly from that slide to the new text).\n")
	fmt.Fprintf(&sb, "Valid indexes are 0 to %d.\n", a.SlideCount-1)
	return sb.String()
}

// stripFences removes a Markdown code fence around a model answer.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
