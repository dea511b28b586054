package pptx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/gnemet/DeckForge/internal/deckerr"
)

// SlideRef locates one slide of the presentation.
type SlideRef struct {
	ID    uint32
	RelID string
	Part  string
}

// Deck is a presentation package with its slide list resolved.
type Deck struct {
	Path string

	pkg          *Package
	presPart     string
	presDoc      *etree.Document
	presRels     *Relationships
	slides       []SlideRef
	widthEMU     int64
	heightEMU    int64
	layoutByPart map[string]string
}

// Open reads the presentation at path. A missing file yields a
// deckerr.NotFoundError, anything that is not a presentation package a
// deckerr.FormatError.
func Open(path string) (*Deck, error) {
	pkg, err := OpenPackage(path)
	if err != nil {
		return nil, err
	}
	d, err := NewDeck(pkg)
	if err != nil {
		return nil, deckerr.Format(path, "not a presentation", err)
	}
	d.Path = path
	return d, nil
}

// NewDeck resolves the presentation structure of pkg.
func NewDeck(pkg *Package) (*Deck, error) {
	root, err := pkg.Relationships("")
	if err != nil {
		return nil, err
	}
	rel, ok := root.FirstOfKind(RelOfficeDocument)
	if !ok {
		return nil, fmt.Errorf("no officeDocument relationship")
	}
	presPart := root.Resolve(rel)
	data, ok := pkg.Part(presPart)
	if !ok {
		return nil, fmt.Errorf("officeDocument part %s is missing", presPart)
	}
	presDoc, err := parseXML(presPart, data)
	if err != nil {
		return nil, err
	}
	if presDoc.Root().Tag != "presentation" {
		return nil, fmt.Errorf("%s is a %q document, not a presentation", presPart, presDoc.Root().Tag)
	}
	presRels, err := pkg.Relationships(presPart)
	if err != nil {
		return nil, err
	}

	d := &Deck{
		pkg:          pkg,
		presPart:     presPart,
		presDoc:      presDoc,
		presRels:     presRels,
		layoutByPart: make(map[string]string),
	}

	if sz := child(presDoc.Root(), "sldSz"); sz != nil {
		d.widthEMU, _ = strconv.ParseInt(attr(sz, "", "cx"), 10, 64)
		d.heightEMU, _ = strconv.ParseInt(attr(sz, "", "cy"), 10, 64)
	}

	for _, sldID := range children(child(presDoc.Root(), "sldIdLst"), "sldId") {
		relID := relAttr(sldID, "id")
		rel, ok := presRels.ByID(relID)
		if !ok {
			return nil, fmt.Errorf("slide relationship %s not found", relID)
		}
		part := presRels.Resolve(rel)
		if !pkg.Has(part) {
			return nil, fmt.Errorf("slide part %s is missing", part)
		}
		id, _ := strconv.ParseUint(attr(sldID, "", "id"), 10, 32)
		d.slides = append(d.slides, SlideRef{ID: uint32(id), RelID: relID, Part: part})
	}
	return d, nil
}

// Package returns the underlying package.
func (d *Deck) Package() *Package { return d.pkg }

// SlideCount returns the number of slides in presentation order.
func (d *Deck) SlideCount() int { return len(d.slides) }

// SlideRefs returns the slide references in presentation order.
func (d *Deck) SlideRefs() []SlideRef {
	refs := make([]SlideRef, len(d.slides))
	copy(refs, d.slides)
	return refs
}

// SlideSizeEMU returns the slide width and height in EMU.
func (d *Deck) SlideSizeEMU() (int64, int64) { return d.widthEMU, d.heightEMU }

// EMUToPoints converts English Metric Units to points, rounded to 2 decimals.
func EMUToPoints(emu int64) float64 {
	pt := float64(emu) / 914400 * 72
	return float64(int64(pt*100+0.5)) / 100
}

// Slide parses the slide at the given zero-based position.
func (d *Deck) Slide(index int) (*Slide, error) {
	if index < 0 || index >= len(d.slides) {
		return nil, fmt.Errorf("slide index %d out of range (0-%d)", index, len(d.slides)-1)
	}
	ref := d.slides[index]
	data, _ := d.pkg.Part(ref.Part)
	doc, err := parseXML(ref.Part, data)
	if err != nil {
		return nil, err
	}
	layout, err := d.LayoutName(ref.Part)
	if err != nil {
		return nil, err
	}
	s := &Slide{Index: index, Part: ref.Part, Layout: layout, doc: doc}
	s.Shapes = parseShapeTree(childPath(doc.Root(), "cSld", "spTree"))
	return s, nil
}

// LayoutName returns the name of the layout used by a slide part, or "" when
// the slide has no layout relationship.
func (d *Deck) LayoutName(slidePart string) (string, error) {
	rels, err := d.pkg.Relationships(slidePart)
	if err != nil {
		return "", err
	}
	rel, ok := rels.FirstOfKind(RelSlideLayout)
	if !ok {
		return "", nil
	}
	layoutPart := rels.Resolve(rel)
	if name, ok := d.layoutByPart[layoutPart]; ok {
		return name, nil
	}
	data, ok := d.pkg.Part(layoutPart)
	if !ok {
		return "", nil
	}
	doc, err := parseXML(layoutPart, data)
	if err != nil {
		return "", err
	}
	name := attr(child(doc.Root(), "cSld"), "", "name")
	d.layoutByPart[layoutPart] = name
	return name, nil
}

// Notes returns the speaker notes text of a slide part, paragraphs joined by
// newlines. Only the body placeholder of the notes slide is read.
func (d *Deck) Notes(slidePart string) (string, error) {
	rels, err := d.pkg.Relationships(slidePart)
	if err != nil {
		return "", err
	}
	rel, ok := rels.FirstOfKind(RelNotesSlide)
	if !ok {
		return "", nil
	}
	notesPart := rels.Resolve(rel)
	data, ok := d.pkg.Part(notesPart)
	if !ok {
		return "", nil
	}
	doc, err := parseXML(notesPart, data)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, sh := range flatten(parseShapeTree(childPath(doc.Root(), "cSld", "spTree"))) {
		if sh.Text == nil || sh.Placeholder != "body" {
			continue
		}
		if t := strings.TrimSpace(sh.Text.String()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n"), nil
}
