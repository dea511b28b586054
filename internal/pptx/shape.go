package pptx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ShapeKind tags the variant a Shape holds.
type ShapeKind int

const (
	KindOther ShapeKind = iota
	KindText
	KindAutoShape
	KindPicture
	KindTable
	KindGraphic
	KindGroup
)

func (k ShapeKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAutoShape:
		return "autoshape"
	case KindPicture:
		return "picture"
	case KindTable:
		return "table"
	case KindGraphic:
		return "graphic"
	case KindGroup:
		return "group"
	default:
		return "other"
	}
}

// Shape is one element of a slide's shape tree. Text is set only for
// KindText, Children only for KindGroup; all other kinds are opaque.
type Shape struct {
	Kind        ShapeKind
	ID          int
	Name        string
	Placeholder string
	// Position is the 1-based path of the shape in the tree, "3" or "2.1".
	Position string

	Text     *TextFrame
	Children []*Shape

	el *etree.Element
}

// TextFrame is the p:txBody of a text shape.
type TextFrame struct {
	Paragraphs []*Paragraph
	el         *etree.Element
}

// Paragraph is one a:p. Items holds the runs, breaks and fields in document
// order.
type Paragraph struct {
	Items []*Run
	el    *etree.Element
}

// RunKind distinguishes text runs from the other inline items of a paragraph.
type RunKind int

const (
	RunText RunKind = iota
	RunBreak
	RunField
)

// Run is one inline item of a paragraph. For RunText and RunField the text
// lives in the item's a:t child.
type Run struct {
	Kind RunKind
	el   *etree.Element
}

// Text returns the visible text of the item. A break reads as a newline.
func (r *Run) Text() string {
	if r.Kind == RunBreak {
		return "\n"
	}
	if t := child(r.el, "t"); t != nil {
		return t.Text()
	}
	return ""
}

func (r *Run) setText(s string) {
	t := child(r.el, "t")
	if t == nil {
		tag := "t"
		if r.el.Space != "" {
			tag = r.el.Space + ":t"
		}
		t = r.el.CreateElement(tag)
	}
	t.SetText(s)
}

// Props returns the run properties element, nil when the run has none.
func (r *Run) Props() *etree.Element {
	return child(r.el, "rPr")
}

// String returns the paragraph text.
func (p *Paragraph) String() string {
	var sb strings.Builder
	for _, r := range p.Items {
		sb.WriteString(r.Text())
	}
	return sb.String()
}

// RunCount returns the number of text runs in the paragraph.
func (p *Paragraph) RunCount() int {
	n := 0
	for _, r := range p.Items {
		if r.Kind == RunText {
			n++
		}
	}
	return n
}

// String returns the text of the frame, paragraphs joined by newlines.
func (tf *TextFrame) String() string {
	lines := make([]string, len(tf.Paragraphs))
	for i, p := range tf.Paragraphs {
		lines[i] = p.String()
	}
	return strings.Join(lines, "\n")
}

// RunCount returns the number of text runs in the frame.
func (tf *TextFrame) RunCount() int {
	n := 0
	for _, p := range tf.Paragraphs {
		n += p.RunCount()
	}
	return n
}

// Runs returns the text runs of the frame in order.
func (tf *TextFrame) Runs() []*Run {
	var out []*Run
	for _, p := range tf.Paragraphs {
		for _, r := range p.Items {
			if r.Kind == RunText {
				out = append(out, r)
			}
		}
	}
	return out
}

func parseShapeTree(tree *etree.Element) []*Shape {
	return parseShapes(tree, "")
}

func parseShapes(parent *etree.Element, prefix string) []*Shape {
	var shapes []*Shape
	if parent == nil {
		return shapes
	}
	pos := 0
	for _, el := range parent.ChildElements() {
		switch el.Tag {
		case "nvGrpSpPr", "grpSpPr", "extLst":
			continue
		}
		pos++
		position := strconv.Itoa(pos)
		if prefix != "" {
			position = prefix + "." + position
		}
		shapes = append(shapes, parseShape(el, position))
	}
	return shapes
}

func parseShape(el *etree.Element, position string) *Shape {
	s := &Shape{Position: position, el: el}

	var nv *etree.Element
	switch el.Tag {
	case "sp":
		nv = child(el, "nvSpPr")
		if body := child(el, "txBody"); body != nil {
			s.Kind = KindText
			s.Text = parseTextFrame(body)
		} else {
			s.Kind = KindAutoShape
		}
	case "cxnSp":
		nv = child(el, "nvCxnSpPr")
		s.Kind = KindAutoShape
	case "pic":
		nv = child(el, "nvPicPr")
		s.Kind = KindPicture
	case "graphicFrame":
		nv = child(el, "nvGraphicFramePr")
		if childPath(el, "graphic", "graphicData", "tbl") != nil {
			s.Kind = KindTable
		} else {
			s.Kind = KindGraphic
		}
	case "grpSp":
		nv = child(el, "nvGrpSpPr")
		s.Kind = KindGroup
		s.Children = parseShapes(el, position)
	default:
		s.Kind = KindOther
	}

	if nv != nil {
		if c := child(nv, "cNvPr"); c != nil {
			s.ID, _ = strconv.Atoi(attr(c, "", "id"))
			s.Name = attr(c, "", "name")
		}
		if ph := childPath(nv, "nvPr", "ph"); ph != nil {
			s.Placeholder = attr(ph, "", "type")
			if s.Placeholder == "" {
				s.Placeholder = "body"
			}
		}
	}
	return s
}

func parseTextFrame(body *etree.Element) *TextFrame {
	tf := &TextFrame{el: body}
	for _, p := range children(body, "p") {
		para := &Paragraph{el: p}
		for _, c := range p.ChildElements() {
			switch c.Tag {
			case "r":
				para.Items = append(para.Items, &Run{Kind: RunText, el: c})
			case "br":
				para.Items = append(para.Items, &Run{Kind: RunBreak, el: c})
			case "fld":
				para.Items = append(para.Items, &Run{Kind: RunField, el: c})
			}
		}
		tf.Paragraphs = append(tf.Paragraphs, para)
	}
	return tf
}

// flatten lists shapes depth-first with group children following their group.
func flatten(shapes []*Shape) []*Shape {
	var out []*Shape
	for _, s := range shapes {
		out = append(out, s)
		if s.Kind == KindGroup {
			out = append(out, flatten(s.Children)...)
		}
	}
	return out
}

// Slide is a parsed slide. The tree belongs to the Slide; edits made through
// it are visible only after Bytes is written back into a package.
type Slide struct {
	Index  int
	Part   string
	Layout string
	Shapes []*Shape

	doc *etree.Document
}

// AllShapes returns every shape of the slide, group members included.
func (s *Slide) AllShapes() []*Shape {
	return flatten(s.Shapes)
}

// TextShapes returns the text-bearing shapes in document order.
func (s *Slide) TextShapes() []*Shape {
	var out []*Shape
	for _, sh := range s.AllShapes() {
		if sh.Kind == KindText {
			out = append(out, sh)
		}
	}
	return out
}

// Text returns all text on the slide, one shape per line.
func (s *Slide) Text() string {
	var parts []string
	for _, sh := range s.TextShapes() {
		parts = append(parts, sh.Text.String())
	}
	return strings.Join(parts, "\n")
}

// Identifier returns the display identifier of a shape on this slide: its
// name when that is set and unique on the slide, otherwise "#" followed by
// its position.
func (s *Slide) Identifier(sh *Shape) string {
	if sh.Name == "" {
		return "#" + sh.Position
	}
	count := 0
	for _, other := range s.AllShapes() {
		if other.Name == sh.Name {
			count++
		}
	}
	if count > 1 {
		return "#" + sh.Position
	}
	return sh.Name
}

// ShapeByIdentifier finds a text shape by its display identifier.
func (s *Slide) ShapeByIdentifier(id string) (*Shape, bool) {
	for _, sh := range s.TextShapes() {
		if s.Identifier(sh) == id {
			return sh, true
		}
	}
	return nil, false
}

// Bytes serializes the slide tree.
func (s *Slide) Bytes() ([]byte, error) {
	data, err := serializeXML(s.doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", s.Part, err)
	}
	return data, nil
}

// Clone returns an independent copy of the slide; no tree node is shared.
func (s *Slide) Clone() *Slide {
	doc := s.doc.Copy()
	c := &Slide{Index: s.Index, Part: s.Part, Layout: s.Layout, doc: doc}
	c.Shapes = parseShapeTree(childPath(doc.Root(), "cSld", "spTree"))
	return c
}
