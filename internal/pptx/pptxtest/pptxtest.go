// Package pptxtest writes small but structurally complete presentations for
// tests: content types, presentation, one master with its layouts, a theme,
// slides with text boxes, pictures and groups, and optional speaker notes.
package pptxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Run is a text run of a fixture paragraph.
type Run struct {
	Text string
	Bold bool
	Size int // points
}

// Shape is a fixture shape. Exactly one of Paragraphs, Image or Group is
// expected; a shape with none of them is an empty text box.
type Shape struct {
	Name        string
	Placeholder string
	Paragraphs  [][]Run
	Image       []byte
	Group       []Shape
	// Link makes the first run of the shape jump to the slide with this
	// zero-based index when set to a value >= 0.
	Link *int
}

// Slide is a fixture slide.
type Slide struct {
	Layout string
	Shapes []Shape
	Notes  string
}

// Deck describes a fixture presentation.
type Deck struct {
	Slides []Slide
}

// Text returns a one-paragraph, one-run text box.
func Text(name, text string) Shape {
	return Shape{Name: name, Paragraphs: [][]Run{{{Text: text}}}}
}

// Runs returns a one-paragraph text box made of the given runs.
func Runs(name string, runs ...Run) Shape {
	return Shape{Name: name, Paragraphs: [][]Run{runs}}
}

// Picture returns a picture shape holding img.
func Picture(name string, img []byte) Shape {
	return Shape{Name: name, Image: img}
}

// PNG is a 1x1 transparent PNG.
var PNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

const (
	nsP   = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsRel = "http://schemas.openxmlformats.org/package/2006/relationships"
	relT  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
	ctP   = "application/vnd.openxmlformats-officedocument.presentationml."
	decl  = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

type rel struct{ id, kind, target string }

func relsXML(rels []rel) string {
	var sb strings.Builder
	sb.WriteString(decl)
	sb.WriteString(`<Relationships xmlns="` + nsRel + `">`)
	for _, r := range rels {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="%s%s" Target="%s"/>`, r.id, relT, r.kind, r.target)
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

// Bytes builds the presentation.
func (d Deck) Bytes() []byte {
	files := map[string]string{}
	var order []string
	add := func(name, content string) {
		if _, ok := files[name]; !ok {
			order = append(order, name)
		}
		files[name] = content
	}

	// Layouts, one per distinct name, in order of first use.
	var layouts []string
	layoutIdx := map[string]int{}
	for _, s := range d.Slides {
		name := s.Layout
		if name == "" {
			name = "Blank"
		}
		if _, ok := layoutIdx[name]; !ok {
			layoutIdx[name] = len(layouts) + 1
			layouts = append(layouts, name)
		}
	}
	if len(layouts) == 0 {
		layouts = []string{"Blank"}
		layoutIdx["Blank"] = 1
	}

	hasNotes := false
	for _, s := range d.Slides {
		if s.Notes != "" {
			hasNotes = true
		}
	}

	var ct strings.Builder
	ct.WriteString(decl)
	ct.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	ct.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	ct.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	ct.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	ct.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="` + ctP + `presentation.main+xml"/>`)
	ct.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="` + ctP + `slideMaster+xml"/>`)
	for i := range layouts {
		fmt.Fprintf(&ct, `<Override PartName="/ppt/slideLayouts/slideLayout%d.xml" ContentType="%sslideLayout+xml"/>`, i+1, ctP)
	}
	ct.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
	ct.WriteString(`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
	if hasNotes {
		ct.WriteString(`<Override PartName="/ppt/notesMasters/notesMaster1.xml" ContentType="` + ctP + `notesMaster+xml"/>`)
	}
	for i, s := range d.Slides {
		fmt.Fprintf(&ct, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="%sslide+xml"/>`, i+1, ctP)
		if s.Notes != "" {
			fmt.Fprintf(&ct, `<Override PartName="/ppt/notesSlides/notesSlide%d.xml" ContentType="%snotesSlide+xml"/>`, i+1, ctP)
		}
	}
	ct.WriteString(`</Types>`)
	add("[Content_Types].xml", ct.String())

	add("_rels/.rels", relsXML([]rel{
		{"rId1", "officeDocument", "ppt/presentation.xml"},
		{"rId2", "extended-properties", "docProps/app.xml"},
	}))
	add("docProps/app.xml", fmt.Sprintf(decl+`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"><Application>pptxtest</Application><Slides>%d</Slides><Notes>0</Notes></Properties>`, len(d.Slides)))

	// Presentation.
	presRels := []rel{{"rId1", "slideMaster", "slideMasters/slideMaster1.xml"}, {"rId2", "theme", "theme/theme1.xml"}}
	var pres strings.Builder
	pres.WriteString(decl)
	pres.WriteString(`<p:presentation xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `">`)
	pres.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	if hasNotes {
		presRels = append(presRels, rel{"rId3", "notesMaster", "notesMasters/notesMaster1.xml"})
		pres.WriteString(`<p:notesMasterIdLst><p:notesMasterId r:id="rId3"/></p:notesMasterIdLst>`)
	}
	if len(d.Slides) > 0 {
		pres.WriteString(`<p:sldIdLst>`)
		for i := range d.Slides {
			id := fmt.Sprintf("rId%d", 10+i)
			presRels = append(presRels, rel{id, "slide", fmt.Sprintf("slides/slide%d.xml", i+1)})
			fmt.Fprintf(&pres, `<p:sldId id="%d" r:id="%s"/>`, 256+i, id)
		}
		pres.WriteString(`</p:sldIdLst>`)
	}
	pres.WriteString(`<p:sldSz cx="12192000" cy="6858000"/><p:notesSz cx="6858000" cy="9144000"/>`)
	pres.WriteString(`</p:presentation>`)
	add("ppt/presentation.xml", pres.String())
	add("ppt/_rels/presentation.xml.rels", relsXML(presRels))

	// Master, layouts, theme.
	masterRels := []rel{}
	var master strings.Builder
	master.WriteString(decl)
	master.WriteString(`<p:sldMaster xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `">`)
	master.WriteString(`<p:cSld><p:spTree>` + groupProps() + `</p:spTree></p:cSld>`)
	master.WriteString(`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>`)
	master.WriteString(`<p:sldLayoutIdLst>`)
	for i, name := range layouts {
		id := fmt.Sprintf("rId%d", i+1)
		masterRels = append(masterRels, rel{id, "slideLayout", fmt.Sprintf("../slideLayouts/slideLayout%d.xml", i+1)})
		fmt.Fprintf(&master, `<p:sldLayoutId id="%d" r:id="%s"/>`, 2147483649+i, id)
		add(fmt.Sprintf("ppt/slideLayouts/slideLayout%d.xml", i+1),
			decl+`<p:sldLayout xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`"><p:cSld name="`+html.EscapeString(name)+`"><p:spTree>`+groupProps()+`</p:spTree></p:cSld></p:sldLayout>`)
		add(fmt.Sprintf("ppt/slideLayouts/_rels/slideLayout%d.xml.rels", i+1),
			relsXML([]rel{{"rId1", "slideMaster", "../slideMasters/slideMaster1.xml"}}))
	}
	master.WriteString(`</p:sldLayoutIdLst></p:sldMaster>`)
	masterRels = append(masterRels, rel{fmt.Sprintf("rId%d", len(layouts)+1), "theme", "../theme/theme1.xml"})
	add("ppt/slideMasters/slideMaster1.xml", master.String())
	add("ppt/slideMasters/_rels/slideMaster1.xml.rels", relsXML(masterRels))
	add("ppt/theme/theme1.xml", decl+`<a:theme xmlns:a="`+nsA+`" name="Fixture"><a:themeElements/></a:theme>`)

	if hasNotes {
		add("ppt/notesMasters/notesMaster1.xml", decl+`<p:notesMaster xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`"><p:cSld><p:spTree>`+groupProps()+`</p:spTree></p:cSld></p:notesMaster>`)
		add("ppt/notesMasters/_rels/notesMaster1.xml.rels", relsXML([]rel{{"rId1", "theme", "../theme/theme1.xml"}}))
	}

	// Slides.
	image := 0
	for i, s := range d.Slides {
		layout := s.Layout
		if layout == "" {
			layout = "Blank"
		}
		srels := []rel{{"rId1", "slideLayout", fmt.Sprintf("../slideLayouts/slideLayout%d.xml", layoutIdx[layout])}}
		w := &shapeWriter{nextID: 2, rels: &srels, addImage: func(data []byte) string {
			image++
			name := fmt.Sprintf("image%d.png", image)
			add("ppt/media/"+name, string(data))
			return "../media/" + name
		}}
		var body strings.Builder
		for _, sh := range s.Shapes {
			w.write(&body, sh)
		}
		if s.Notes != "" {
			srels = append(srels, rel{fmt.Sprintf("rId%d", len(srels)+1), "notesSlide", fmt.Sprintf("../notesSlides/notesSlide%d.xml", i+1)})
			add(fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", i+1), notesXML(s.Notes))
			add(fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", i+1), relsXML([]rel{
				{"rId1", "notesMaster", "../notesMasters/notesMaster1.xml"},
				{"rId2", "slide", fmt.Sprintf("../slides/slide%d.xml", i+1)},
			}))
		}
		add(fmt.Sprintf("ppt/slides/slide%d.xml", i+1),
			decl+`<p:sld xmlns:a="`+nsA+`" xmlns:r="`+nsR+`" xmlns:p="`+nsP+`"><p:cSld><p:spTree>`+groupProps()+body.String()+`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
		add(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), relsXML(srels))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		fw, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func groupProps() string {
	return `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`
}

func notesXML(text string) string {
	return decl + `<p:notes xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"><p:cSld><p:spTree>` + groupProps() +
		`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Notes Placeholder 1"/><p:cNvSpPr/><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr><p:spPr/>` +
		`<p:txBody><a:bodyPr/><a:lstStyle/><a:p><a:r><a:rPr lang="en-US"/><a:t>` + html.EscapeString(text) + `</a:t></a:r></a:p></p:txBody></p:sp>` +
		`</p:spTree></p:cSld></p:notes>`
}

type shapeWriter struct {
	nextID   int
	rels     *[]rel
	addImage func([]byte) string
}

func (w *shapeWriter) addRel(kind, target string) string {
	id := fmt.Sprintf("rId%d", len(*w.rels)+1)
	*w.rels = append(*w.rels, rel{id, kind, target})
	return id
}

func (w *shapeWriter) write(sb *strings.Builder, sh Shape) {
	id := w.nextID
	w.nextID++
	name := html.EscapeString(sh.Name)

	switch {
	case len(sh.Group) > 0:
		fmt.Fprintf(sb, `<p:grpSp><p:nvGrpSpPr><p:cNvPr id="%d" name="%s"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`, id, name)
		for _, c := range sh.Group {
			w.write(sb, c)
		}
		sb.WriteString(`</p:grpSp>`)
	case sh.Image != nil:
		relID := w.addRel("image", w.addImage(sh.Image))
		fmt.Fprintf(sb, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="%s"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>`+
			`<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`+
			`<p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="914400" cy="914400"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`,
			id, name, relID)
	default:
		ph := ""
		if sh.Placeholder != "" {
			ph = fmt.Sprintf(`<p:ph type="%s"/>`, sh.Placeholder)
		}
		fmt.Fprintf(sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr>%s</p:nvPr></p:nvSpPr>`, id, name, ph)
		sb.WriteString(`<p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="914400" cy="457200"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>`)
		sb.WriteString(`<p:txBody><a:bodyPr/><a:lstStyle/>`)
		paras := sh.Paragraphs
		if len(paras) == 0 {
			paras = [][]Run{nil}
		}
		linked := false
		for _, p := range paras {
			sb.WriteString(`<a:p>`)
			for _, r := range p {
				sb.WriteString(`<a:r><a:rPr lang="en-US"`)
				if r.Bold {
					sb.WriteString(` b="1"`)
				}
				if r.Size > 0 {
					fmt.Fprintf(sb, ` sz="%d"`, r.Size*100)
				}
				if sh.Link != nil && !linked {
					linked = true
					relID := w.addRel("slide", fmt.Sprintf("slide%d.xml", *sh.Link+1))
					fmt.Fprintf(sb, `><a:hlinkClick r:id="%s" action="ppaction://hlinksldjump"/></a:rPr>`, relID)
				} else {
					sb.WriteString(`/>`)
				}
				sb.WriteString(`<a:t>` + html.EscapeString(r.Text) + `</a:t></a:r>`)
			}
			sb.WriteString(`<a:endParaRPr lang="en-US"/></a:p>`)
		}
		sb.WriteString(`</p:txBody></p:sp>`)
	}
}

// Write stores the deck as name in dir and returns the path.
func Write(t testing.TB, dir, name string, d Deck) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, d.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
	return path
}
