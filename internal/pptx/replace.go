package pptx

import (
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// ShapeKeyPrefix marks a replacement key that addresses a whole shape by its
// display identifier instead of a text fragment.
const ShapeKeyPrefix = "shape:"

// ReplaceResult reports what a replacement map did to one slide.
type ReplaceResult struct {
	// Applied counts the occurrences replaced per key.
	Applied map[string]int
	// NotFound lists, sorted, the keys that matched nothing.
	NotFound []string
}

type match struct {
	start, end int
	key        string
}

// ReplaceText applies a replacement map to every text shape of the slide.
//
// Keys are literal, case-sensitive substrings. A match may begin inside a run
// and continue across following runs of the same paragraph; the new text is
// written into the run where the match begins, so it takes that run's
// formatting, while text before and after the match stays in its own run.
// All keys are matched against the original text in one pass, left-most match
// first and the longer key on ties, so the outcome does not depend on map
// order. A key that matches nothing inside a paragraph but equals the whole
// trimmed text of a shape, line breaks included, replaces that shape's text.
// Keys prefixed with ShapeKeyPrefix replace the full text of the shape with
// that identifier.
func (s *Slide) ReplaceText(replacements map[string]string) *ReplaceResult {
	res := &ReplaceResult{Applied: make(map[string]int)}

	var textKeys, shapeKeys []string
	for k := range replacements {
		if strings.HasPrefix(k, ShapeKeyPrefix) {
			shapeKeys = append(shapeKeys, k)
		} else if k != "" {
			textKeys = append(textKeys, k)
		}
	}
	sort.Slice(textKeys, func(i, j int) bool {
		if len(textKeys[i]) != len(textKeys[j]) {
			return len(textKeys[i]) > len(textKeys[j])
		}
		return textKeys[i] < textKeys[j]
	})
	sort.Strings(shapeKeys)

	// Whole texts are taken before any edit: a key spanning paragraphs or
	// line breaks can only match a shape's complete text.
	type wholeText struct {
		sh   *Shape
		text string
	}
	var wholes []wholeText
	for _, sh := range s.TextShapes() {
		if t := strings.TrimSpace(sh.Text.String()); t != "" {
			wholes = append(wholes, wholeText{sh: sh, text: t})
		}
	}

	if len(textKeys) > 0 {
		for _, sh := range s.TextShapes() {
			for _, p := range sh.Text.Paragraphs {
				for _, seg := range segments(p) {
					replaceSegment(seg, textKeys, replacements, res.Applied)
				}
			}
		}
	}

	// Keys that matched nothing within a paragraph replace every shape whose
	// full trimmed text equals them.
	for _, k := range textKeys {
		if res.Applied[k] > 0 {
			continue
		}
		want := strings.TrimSpace(k)
		if want == "" {
			continue
		}
		for _, w := range wholes {
			if w.text == want {
				setShapeText(w.sh, replacements[k])
				res.Applied[k]++
			}
		}
	}

	// Shape keys resolve against the identifiers the caller saw in the
	// analysis, so they are looked up before the tree is re-read.
	type shapeEdit struct {
		key string
		sh  *Shape
	}
	var edits []shapeEdit
	for _, k := range shapeKeys {
		if sh, ok := s.ShapeByIdentifier(strings.TrimPrefix(k, ShapeKeyPrefix)); ok {
			edits = append(edits, shapeEdit{key: k, sh: sh})
		}
	}
	for _, e := range edits {
		setShapeText(e.sh, replacements[e.key])
		res.Applied[e.key] = 1
	}

	for k := range replacements {
		if res.Applied[k] == 0 {
			res.NotFound = append(res.NotFound, k)
		}
	}
	sort.Strings(res.NotFound)

	s.Shapes = parseShapeTree(childPath(s.doc.Root(), "cSld", "spTree"))
	return res
}

// segments splits a paragraph into maximal sequences of adjacent text runs.
// Breaks and fields end a segment and are never rewritten.
func segments(p *Paragraph) [][]*Run {
	var out [][]*Run
	var cur []*Run
	for _, r := range p.Items {
		if r.Kind == RunText {
			cur = append(cur, r)
			continue
		}
		if len(cur) > 0 {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func findMatches(text string, keys []string) []match {
	var cands []match
	for _, k := range keys {
		for from := 0; from <= len(text)-len(k); {
			i := strings.Index(text[from:], k)
			if i < 0 {
				break
			}
			start := from + i
			cands = append(cands, match{start: start, end: start + len(k), key: k})
			from = start + len(k)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		return cands[i].end-cands[i].start > cands[j].end-cands[j].start
	})

	var picked []match
	end := 0
	for _, c := range cands {
		if c.start >= end {
			picked = append(picked, c)
			end = c.end
		}
	}
	return picked
}

func replaceSegment(runs []*Run, keys []string, replacements map[string]string, counts map[string]int) {
	texts := make([]string, len(runs))
	starts := make([]int, len(runs))
	var sb strings.Builder
	for i, r := range runs {
		starts[i] = sb.Len()
		texts[i] = r.Text()
		sb.WriteString(texts[i])
	}
	full := sb.String()

	matches := findMatches(full, keys)
	if len(matches) == 0 {
		return
	}

	// owner returns the run holding byte offset pos.
	owner := func(pos int) int {
		for i := len(runs) - 1; i >= 0; i-- {
			if len(texts[i]) > 0 && starts[i] <= pos {
				return i
			}
		}
		return 0
	}

	out := make([]strings.Builder, len(runs))
	keep := func(from, to int) {
		for i := range runs {
			a, b := starts[i], starts[i]+len(texts[i])
			if a < from {
				a = from
			}
			if b > to {
				b = to
			}
			if a < b {
				out[i].WriteString(full[a:b])
			}
		}
	}

	pos := 0
	for _, m := range matches {
		keep(pos, m.start)
		out[owner(m.start)].WriteString(replacements[m.key])
		counts[m.key]++
		pos = m.end
	}
	keep(pos, len(full))

	for i, r := range runs {
		newText := out[i].String()
		if newText == texts[i] {
			continue
		}
		if newText == "" {
			if parent := r.el.Parent(); parent != nil {
				parent.RemoveChild(r.el)
			}
			continue
		}
		r.setText(newText)
	}
}

// setShapeText replaces the whole text of a shape. The first paragraph's
// properties and the first run's formatting carry over to every line.
func setShapeText(sh *Shape, text string) {
	body := sh.Text.el
	paras := children(body, "p")
	var first *etree.Element
	if len(paras) == 0 {
		space := ""
		if bp := child(body, "bodyPr"); bp != nil {
			space = bp.Space
		}
		first = etree.NewElement("p")
		first.Space = space
		body.AddChild(first)
	} else {
		first = paras[0]
		for _, p := range paras[1:] {
			body.RemoveChild(p)
		}
	}

	var runTemplate *etree.Element
	if r := child(first, "r"); r != nil {
		runTemplate = r.Copy()
	} else {
		runTemplate = etree.NewElement(qualify(first, "r"))
		if end := child(first, "endParaRPr"); end != nil {
			rpr := end.Copy()
			rpr.Tag = "rPr"
			runTemplate.AddChild(rpr)
		}
	}
	for _, c := range first.ChildElements() {
		switch c.Tag {
		case "r", "br", "fld":
			first.RemoveChild(c)
		}
	}
	skeleton := first.Copy()

	prev := first
	for i, line := range strings.Split(text, "\n") {
		p := first
		if i > 0 {
			p = skeleton.Copy()
			body.InsertChildAt(prev.Index()+1, p)
		}
		if line != "" {
			run := runTemplate.Copy()
			(&Run{Kind: RunText, el: run}).setText(line)
			if end := child(p, "endParaRPr"); end != nil {
				p.InsertChildAt(end.Index(), run)
			} else {
				p.AddChild(run)
			}
		}
		prev = p
	}
}

// qualify returns tag with the namespace prefix used by el.
func qualify(el *etree.Element, tag string) string {
	if el.Space == "" {
		return tag
	}
	return el.Space + ":" + tag
}
