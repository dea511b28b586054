package pptx

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ownedKinds are relationship kinds whose targets belong to a single source
// part. They are deep-copied under fresh names whenever their owner is
// cloned; every other internal target is shared read-only between clones.
var ownedKinds = map[string]bool{
	RelNotesSlide:       true,
	RelComments:         true,
	RelChart:            true,
	"chartUserShapes":   true,
	"chartStyle":        true,
	"chartColorStyle":   true,
	"themeOverride":     true,
	"diagramData":       true,
	"diagramLayout":     true,
	"diagramQuickStyle": true,
	"diagramColors":     true,
	"diagramDrawing":    true,
	"vmlDrawing":        true,
	"package":           true,
}

const firstSlideID = 256

// Builder assembles a new presentation out of the slides of a template deck.
//
// The template is only read. The builder works on a duplicate of the whole
// package from which every slide, and every part only slides used, has been
// removed; AddSlide then copies template slides back in, in the order asked
// for and as many times as asked for.
type Builder struct {
	tpl *Deck
	out *Package

	tplCT *ContentTypes
	outCT *ContentTypes

	presDoc  *etree.Document
	presRels *Relationships

	added      []addedSlide
	firstClone map[string]string
	links      []slideLink
}

type addedSlide struct {
	part  string
	notes bool
}

// slideLink is a slide-to-slide relationship (a jump hyperlink) found in a
// cloned part; it is resolved once every slide has been added.
type slideLink struct {
	owner  string
	relID  string
	target string
}

// NewBuilder prepares an empty presentation that keeps the template's
// masters, layouts, theme and document properties.
func NewBuilder(tpl *Deck) (*Builder, error) {
	tplCT, err := tpl.pkg.ContentTypes()
	if err != nil {
		return nil, err
	}
	out := tpl.pkg.Clone()
	outCT, err := out.ContentTypes()
	if err != nil {
		return nil, err
	}

	b := &Builder{
		tpl:        tpl,
		out:        out,
		tplCT:      tplCT,
		outCT:      outCT,
		presDoc:    tpl.presDoc.Copy(),
		presRels:   &Relationships{Source: tpl.presPart, Items: append([]Relationship(nil), tpl.presRels.Items...)},
		firstClone: make(map[string]string),
	}

	b.presRels.RemoveKind(RelSlide)
	root := b.presDoc.Root()
	if lst := child(root, "sldIdLst"); lst != nil {
		root.RemoveChild(lst)
	}
	// Custom shows and sections list slides by id; they would dangle.
	if lst := child(root, "custShowLst"); lst != nil {
		root.RemoveChild(lst)
	}
	if ext := child(root, "extLst"); ext != nil {
		for _, e := range children(ext, "ext") {
			if child(e, "sectionLst") != nil {
				ext.RemoveChild(e)
			}
		}
	}

	if err := out.SetRelationships(b.presRels); err != nil {
		return nil, err
	}
	if err := b.sweep(); err != nil {
		return nil, err
	}
	return b, nil
}

// sweep deletes every part that can no longer be reached from the package
// root through relationships, together with its content type override.
func (b *Builder) sweep() error {
	reachable := map[string]bool{}
	queue := []string{""}
	for len(queue) > 0 {
		src := queue[0]
		queue = queue[1:]
		rels, err := b.out.Relationships(src)
		if err != nil {
			return err
		}
		for _, rel := range rels.Items {
			if rel.External() {
				continue
			}
			target := rels.Resolve(rel)
			if reachable[target] || !b.out.Has(target) {
				continue
			}
			reachable[target] = true
			queue = append(queue, target)
		}
	}

	for _, name := range b.out.PartNames() {
		if name == contentTypesPart || name == rootRelsPart {
			continue
		}
		owner := name
		if isRelsPart(name) {
			owner = relsSource(name)
		}
		if reachable[owner] {
			continue
		}
		b.out.DeletePart(name)
		b.outCT.RemoveOverride(name)
	}
	return nil
}

func relsSource(relsPart string) string {
	dir := path.Dir(path.Dir(relsPart))
	base := strings.TrimSuffix(path.Base(relsPart), ".rels")
	if dir == "." {
		return base
	}
	return dir + "/" + base
}

// partStem splits a part name into the prefix and extension used to allocate
// siblings: ppt/charts/chart3.xml -> ppt/charts/chart, .xml.
func partStem(name string) (string, string) {
	ext := path.Ext(name)
	return strings.TrimRight(strings.TrimSuffix(name, ext), "0123456789"), ext
}

// AddSlide appends a fresh copy of template slide index and returns it parsed.
// Edits to the returned slide must be stored with Commit.
func (b *Builder) AddSlide(index int) (*Slide, error) {
	if index < 0 || index >= len(b.tpl.slides) {
		return nil, fmt.Errorf("slide index %d out of range (0-%d)", index, len(b.tpl.slides)-1)
	}
	ref := b.tpl.slides[index]
	prefix, ext := partStem(ref.Part)
	part := b.out.nextPartName(prefix, ext)

	mapping := map[string]string{ref.Part: part}
	if err := b.importPart(ref.Part, part, mapping); err != nil {
		return nil, fmt.Errorf("failed to copy slide %d: %w", index, err)
	}

	rels, err := b.out.Relationships(part)
	if err != nil {
		return nil, err
	}
	_, hasNotes := rels.FirstOfKind(RelNotesSlide)
	b.added = append(b.added, addedSlide{part: part, notes: hasNotes})
	if _, ok := b.firstClone[ref.Part]; !ok {
		b.firstClone[ref.Part] = part
	}

	data, _ := b.out.Part(part)
	doc, err := parseXML(part, data)
	if err != nil {
		return nil, err
	}
	layout, err := b.tpl.LayoutName(ref.Part)
	if err != nil {
		return nil, err
	}
	s := &Slide{Index: len(b.added) - 1, Part: part, Layout: layout, doc: doc}
	s.Shapes = parseShapeTree(childPath(doc.Root(), "cSld", "spTree"))
	return s, nil
}

// Commit stores the edited tree of a slide returned by AddSlide.
func (b *Builder) Commit(s *Slide) error {
	data, err := s.Bytes()
	if err != nil {
		return err
	}
	b.out.SetPart(s.Part, data)
	return nil
}

// importPart copies template part src into the output as dst, cloning owned
// targets and restoring shared ones. mapping records every template part
// already copied for the current slide, so back references (a notes slide
// pointing at its slide) land on the copy.
func (b *Builder) importPart(src, dst string, mapping map[string]string) error {
	if !b.out.copyPartFrom(b.tpl.pkg, src, dst) {
		return fmt.Errorf("template part %s is missing", src)
	}
	b.adoptContentType(src, dst)

	srcRels, err := b.tpl.pkg.Relationships(src)
	if err != nil {
		return err
	}
	dstRels := &Relationships{Source: dst}
	for _, rel := range srcRels.Items {
		nr := rel
		if !rel.External() {
			target := srcRels.Resolve(rel)
			var to string
			switch {
			case mapping[target] != "":
				to = mapping[target]
			case rel.Kind() == RelSlide:
				b.links = append(b.links, slideLink{owner: dst, relID: rel.ID, target: target})
				to = target
			case ownedKinds[rel.Kind()] && b.tpl.pkg.Has(target):
				prefix, ext := partStem(target)
				to = b.out.nextPartName(prefix, ext)
				mapping[target] = to
				if err := b.importPart(target, to, mapping); err != nil {
					return err
				}
			default:
				to = target
				if err := b.restoreShared(target); err != nil {
					return err
				}
			}
			nr.Target = RelativeTarget(dst, to)
		}
		dstRels.Items = append(dstRels.Items, nr)
	}
	return b.out.SetRelationships(dstRels)
}

// restoreShared brings back a shared part, and what it depends on, under its
// template name if the sweep removed it.
func (b *Builder) restoreShared(name string) error {
	if b.out.Has(name) || !b.tpl.pkg.Has(name) {
		return nil
	}
	b.out.copyPartFrom(b.tpl.pkg, name, name)
	b.adoptContentType(name, name)

	rels, err := b.tpl.pkg.Relationships(name)
	if err != nil {
		return err
	}
	if len(rels.Items) == 0 {
		return nil
	}
	if data, ok := b.tpl.pkg.Part(RelsPartName(name)); ok {
		b.out.SetPart(RelsPartName(name), append([]byte(nil), data...))
	}
	for _, rel := range rels.Items {
		if rel.External() || rel.Kind() == RelSlide {
			continue
		}
		if err := b.restoreShared(rels.Resolve(rel)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) adoptContentType(src, dst string) {
	if ct, ok := b.tplCT.Override(src); ok {
		b.outCT.SetOverride(dst, ct)
		return
	}
	if !b.outCT.HasDefault(dst) {
		if ct, ok := b.tplCT.defaultFor(src); ok {
			b.outCT.AddDefault(strings.TrimPrefix(path.Ext(dst), "."), ct)
		}
	}
}

// Package finishes the presentation and returns the output package: slide
// list, presentation relationships, jump links, content types and document
// statistics are written. The builder must not be used afterwards.
func (b *Builder) Package() (*Package, error) {
	if err := b.resolveLinks(); err != nil {
		return nil, err
	}

	root := b.presDoc.Root()
	if len(b.added) > 0 {
		pfx := root.Space
		lst := etree.NewElement("sldIdLst")
		lst.Space = pfx
		rPfx := prefixFor(root, nsRelationships, "r")
		for i, a := range b.added {
			relID := b.presRels.Add(relTypeSlide, a.part)
			el := lst.CreateElement(qualify(lst, "sldId"))
			el.CreateAttr("id", strconv.Itoa(firstSlideID+i))
			el.CreateAttr(rPfx+":id", relID)
		}
		insertAfterSiblings(root, lst, "sldMasterIdLst", "notesMasterIdLst", "handoutMasterIdLst")
	}

	data, err := serializeXML(b.presDoc)
	if err != nil {
		return nil, err
	}
	b.out.SetPart(b.tpl.presPart, data)
	if err := b.out.SetRelationships(b.presRels); err != nil {
		return nil, err
	}
	if err := b.updateAppProperties(); err != nil {
		return nil, err
	}
	if err := b.out.SetContentTypes(b.outCT); err != nil {
		return nil, err
	}
	return b.out, nil
}

// insertAfterSiblings places el right after the last existing child named in
// after, or first when none exists.
func insertAfterSiblings(parent, el *etree.Element, after ...string) {
	idx := -1
	for _, tag := range after {
		if c := child(parent, tag); c != nil && c.Index() > idx {
			idx = c.Index()
		}
	}
	parent.InsertChildAt(idx+1, el)
}

// resolveLinks points slide jump links at the first copy of their target.
// Links to slides that were not kept are dropped and their references in
// the owning part cleared, which PowerPoint reads as a link with no target.
func (b *Builder) resolveLinks() error {
	byOwner := map[string][]slideLink{}
	var owners []string
	for _, l := range b.links {
		if _, ok := byOwner[l.owner]; !ok {
			owners = append(owners, l.owner)
		}
		byOwner[l.owner] = append(byOwner[l.owner], l)
	}

	for _, owner := range owners {
		rels, err := b.out.Relationships(owner)
		if err != nil {
			return err
		}
		dropped := map[string]bool{}
		for _, l := range byOwner[owner] {
			for i := range rels.Items {
				if rels.Items[i].ID != l.relID {
					continue
				}
				if to, ok := b.firstClone[l.target]; ok {
					rels.Items[i].Target = RelativeTarget(owner, to)
				} else {
					dropped[l.relID] = true
				}
			}
		}
		if len(dropped) > 0 {
			var kept []Relationship
			for _, rel := range rels.Items {
				if !dropped[rel.ID] {
					kept = append(kept, rel)
				}
			}
			rels.Items = kept
			if err := b.clearRelRefs(owner, dropped); err != nil {
				return err
			}
		}
		if err := b.out.SetRelationships(rels); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) clearRelRefs(part string, ids map[string]bool) error {
	data, ok := b.out.Part(part)
	if !ok {
		return nil
	}
	doc, err := parseXML(part, data)
	if err != nil {
		return err
	}
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for i := range el.Attr {
			a := &el.Attr[i]
			if a.Space != "" && a.NamespaceURI() == nsRelationships && ids[a.Value] {
				a.Value = ""
			}
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	walk(doc.Root())
	out, err := serializeXML(doc)
	if err != nil {
		return err
	}
	b.out.SetPart(part, out)
	return nil
}

// updateAppProperties refreshes the slide and notes counters and the slide
// titles of docProps/app.xml when the package has one.
func (b *Builder) updateAppProperties() error {
	rootRels, err := b.out.Relationships("")
	if err != nil {
		return err
	}
	rel, ok := rootRels.FirstOfKind("extended-properties")
	if !ok {
		return nil
	}
	name := rootRels.Resolve(rel)
	data, ok := b.out.Part(name)
	if !ok {
		return nil
	}
	doc, err := parseXML(name, data)
	if err != nil {
		return err
	}
	notes := 0
	for _, a := range b.added {
		if a.notes {
			notes++
		}
	}
	if el := child(doc.Root(), "Slides"); el != nil {
		el.SetText(strconv.Itoa(len(b.added)))
	}
	if el := child(doc.Root(), "Notes"); el != nil {
		el.SetText(strconv.Itoa(notes))
	}
	titles, err := b.slideTitles()
	if err != nil {
		return err
	}
	setSlideTitles(doc.Root(), titles)
	out, err := serializeXML(doc)
	if err != nil {
		return err
	}
	b.out.SetPart(name, out)
	return nil
}

// slideTitles returns the title placeholder text of every added slide, ""
// for slides without one.
func (b *Builder) slideTitles() ([]string, error) {
	titles := make([]string, 0, len(b.added))
	for _, a := range b.added {
		data, _ := b.out.Part(a.part)
		doc, err := parseXML(a.part, data)
		if err != nil {
			return nil, err
		}
		title := ""
		for _, sh := range flatten(parseShapeTree(childPath(doc.Root(), "cSld", "spTree"))) {
			if sh.Text != nil && (sh.Placeholder == "title" || sh.Placeholder == "ctrTitle") {
				title = strings.Join(strings.Fields(sh.Text.String()), " ")
				break
			}
		}
		titles = append(titles, title)
	}
	return titles, nil
}

const slideTitlesHeading = "Slide Titles"

// setSlideTitles rewrites the "Slide Titles" group of the HeadingPairs and
// TitlesOfParts vectors. Properties whose vectors disagree are left alone.
func setSlideTitles(root *etree.Element, titles []string) {
	pairs := childPath(root, "HeadingPairs", "vector")
	parts := childPath(root, "TitlesOfParts", "vector")
	if pairs == nil || parts == nil {
		return
	}

	variants := children(pairs, "variant")
	offset, old := 0, -1
	var countEl *etree.Element
	for i := 0; i+1 < len(variants); i += 2 {
		label := child(variants[i], "lpstr")
		count := child(variants[i+1], "i4")
		if label == nil || count == nil {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(count.Text()))
		if err != nil {
			return
		}
		if strings.TrimSpace(label.Text()) == slideTitlesHeading {
			old, countEl = n, count
			break
		}
		offset += n
	}
	items := children(parts, "lpstr")
	if countEl == nil || offset+old > len(items) {
		return
	}

	tag := "lpstr"
	if parts.Space != "" {
		tag = parts.Space + ":lpstr"
	}
	for _, el := range items {
		parts.RemoveChild(el)
	}
	for _, el := range items[:offset] {
		parts.AddChild(el)
	}
	for _, t := range titles {
		parts.CreateElement(tag).SetText(t)
	}
	for _, el := range items[offset+old:] {
		parts.AddChild(el)
	}
	parts.CreateAttr("size", strconv.Itoa(len(items)-old+len(titles)))
	countEl.SetText(strconv.Itoa(len(titles)))
}
