package pptx

import (
	"strings"
	"testing"

	"github.com/gnemet/DeckForge/internal/pptx/pptxtest"
)

func intPtr(i int) *int { return &i }

// threeSlides has a picture and notes on the first slide and a jump link to
// it from the last.
var threeSlides = pptxtest.Deck{Slides: []pptxtest.Slide{
	{
		Layout: "Title Slide",
		Shapes: []pptxtest.Shape{pptxtest.Text("Title", "Cover"), pptxtest.Picture("Logo", pptxtest.PNG)},
		Notes:  "speaker notes",
	},
	{Layout: "Title and Content", Shapes: []pptxtest.Shape{pptxtest.Text("Body", "Content {{n}}")}},
	{Layout: "Title and Content", Shapes: []pptxtest.Shape{{Name: "Back", Paragraphs: [][]pptxtest.Run{{{Text: "Back to start"}}}, Link: intPtr(0)}}},
}}

func build(t *testing.T, tpl *Deck, indexes ...int) *Deck {
	t.Helper()
	b, err := NewBuilder(tpl)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	for _, i := range indexes {
		s, err := b.AddSlide(i)
		if err != nil {
			t.Fatalf("AddSlide(%d) failed: %v", i, err)
		}
		if err := b.Commit(s); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}
	pkg, err := b.Package()
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	data, err := pkg.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	out, err := NewDeck(mustRead(t, data))
	if err != nil {
		t.Fatalf("built deck does not open: %v", err)
	}
	return out
}

func mustRead(t *testing.T, data []byte) *Package {
	t.Helper()
	pkg, err := ReadPackage(strings.NewReader(string(data)), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadPackage failed: %v", err)
	}
	return pkg
}

func TestBuilderOrderAndRepeats(t *testing.T) {
	tpl := openFixture(t, threeSlides)
	out := build(t, tpl, 1, 1, 0)

	if out.SlideCount() != 3 {
		t.Fatalf("SlideCount = %d, want 3", out.SlideCount())
	}
	wantText := []string{"Content {{n}}", "Content {{n}}", "Cover"}
	wantLayout := []string{"Title and Content", "Title and Content", "Title Slide"}
	for i := range wantText {
		s, err := out.Slide(i)
		if err != nil {
			t.Fatalf("Slide(%d) failed: %v", i, err)
		}
		if s.Text() != wantText[i] {
			t.Errorf("slide %d text = %q, want %q", i, s.Text(), wantText[i])
		}
		if s.Layout != wantLayout[i] {
			t.Errorf("slide %d layout = %q, want %q", i, s.Layout, wantLayout[i])
		}
	}

	refs := out.SlideRefs()
	for i, ref := range refs {
		if ref.ID != uint32(256+i) {
			t.Errorf("slide %d id = %d", i, ref.ID)
		}
	}
	if refs[0].Part == refs[1].Part {
		t.Error("repeated slide shares a part")
	}
}

func TestBuilderDropsUnusedParts(t *testing.T) {
	tpl := openFixture(t, threeSlides)
	out := build(t, tpl, 1)
	pkg := out.Package()

	for _, name := range []string{"ppt/media/image1.png", "ppt/notesSlides/notesSlide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide3.xml"} {
		if pkg.Has(name) {
			t.Errorf("unused part %s kept", name)
		}
	}
	for _, name := range []string{"ppt/slides/slide1.xml", "ppt/slideMasters/slideMaster1.xml", "ppt/theme/theme1.xml", "docProps/app.xml"} {
		if !pkg.Has(name) {
			t.Errorf("part %s missing", name)
		}
	}

	ct, _ := pkg.ContentTypes()
	for _, o := range ct.Overrides {
		if !pkg.Has(strings.TrimPrefix(o.PartName, "/")) {
			t.Errorf("content type override for missing part %s", o.PartName)
		}
	}

	app, _ := pkg.Part("docProps/app.xml")
	if !strings.Contains(string(app), "<Slides>1</Slides>") || !strings.Contains(string(app), "<Notes>0</Notes>") {
		t.Errorf("app properties not updated: %s", app)
	}
}

func TestBuilderClonesNotesAndSharesMedia(t *testing.T) {
	tpl := openFixture(t, threeSlides)
	out := build(t, tpl, 0, 0)
	pkg := out.Package()

	if !pkg.Has("ppt/media/image1.png") {
		t.Fatal("picture of the kept slide was dropped")
	}
	if pkg.Has("ppt/media/image2.png") {
		t.Error("shared picture was duplicated")
	}

	seen := map[string]bool{}
	for i, ref := range out.SlideRefs() {
		rels, err := pkg.Relationships(ref.Part)
		if err != nil {
			t.Fatalf("rels of %s: %v", ref.Part, err)
		}
		rel, ok := rels.FirstOfKind(RelNotesSlide)
		if !ok {
			t.Fatalf("slide %d lost its notes", i)
		}
		notesPart := rels.Resolve(rel)
		if seen[notesPart] {
			t.Errorf("notes part %s shared between copies", notesPart)
		}
		seen[notesPart] = true

		back, _ := pkg.Relationships(notesPart)
		brel, ok := back.FirstOfKind(RelSlide)
		if !ok || back.Resolve(brel) != ref.Part {
			t.Errorf("notes %s does not point back at %s", notesPart, ref.Part)
		}
		if text, _ := out.Notes(ref.Part); text != "speaker notes" {
			t.Errorf("notes text = %q", text)
		}
	}

	app, _ := pkg.Part("docProps/app.xml")
	if !strings.Contains(string(app), "<Notes>2</Notes>") {
		t.Errorf("notes count not updated: %s", app)
	}
}

func TestBuilderSlideLinks(t *testing.T) {
	tpl := openFixture(t, threeSlides)

	t.Run("target kept", func(t *testing.T) {
		out := build(t, tpl, 0, 2)
		refs := out.SlideRefs()
		rels, _ := out.Package().Relationships(refs[1].Part)
		rel, ok := rels.FirstOfKind(RelSlide)
		if !ok {
			t.Fatal("jump link dropped although its target was kept")
		}
		if rels.Resolve(rel) != refs[0].Part {
			t.Errorf("link points at %s, want %s", rels.Resolve(rel), refs[0].Part)
		}
	})

	t.Run("target dropped", func(t *testing.T) {
		out := build(t, tpl, 2)
		part := out.SlideRefs()[0].Part
		rels, _ := out.Package().Relationships(part)
		if _, ok := rels.FirstOfKind(RelSlide); ok {
			t.Error("link to a dropped slide kept")
		}
		data, _ := out.Package().Part(part)
		if !strings.Contains(string(data), `r:id=""`) {
			t.Error("reference to the dropped relationship not cleared")
		}
	})
}

func TestBuilderEmptyPlan(t *testing.T) {
	tpl := openFixture(t, threeSlides)
	out := build(t, tpl)
	if out.SlideCount() != 0 {
		t.Errorf("SlideCount = %d, want 0", out.SlideCount())
	}
}

func TestBuilderLeavesTemplateUntouched(t *testing.T) {
	tpl := openFixture(t, threeSlides)
	before, _ := tpl.Package().Bytes()

	b, _ := NewBuilder(tpl)
	s, _ := b.AddSlide(1)
	s.ReplaceText(map[string]string{"{{n}}": "1"})
	b.Commit(s)
	b.Package()

	after, _ := tpl.Package().Bytes()
	if string(before) != string(after) {
		t.Error("building changed the template package")
	}
	orig, _ := tpl.Slide(1)
	if orig.Text() != "Content {{n}}" {
		t.Errorf("template slide text = %q", orig.Text())
	}
}

func TestBuilderRejectsBadIndex(t *testing.T) {
	tpl := openFixture(t, threeSlides)
	b, _ := NewBuilder(tpl)
	if _, err := b.AddSlide(3); err == nil {
		t.Error("expected an error for index 3")
	}
	if _, err := b.AddSlide(-1); err == nil {
		t.Error("expected an error for index -1")
	}
}

const (
	relTypeChart   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/chart"
	relTypePackage = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/package"
	chartType      = "application/vnd.openxmlformats-officedocument.drawingml.chart+xml"
	workbookType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// withChart attaches a chart with an embedded workbook to slidePart.
func withChart(t *testing.T, pkg *Package, slidePart string) {
	t.Helper()
	chart := "ppt/charts/chart1.xml"
	workbook := "ppt/embeddings/Microsoft_Excel_Worksheet1.xlsx"

	pkg.SetPart(chart, []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart" `+
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`+
		`<c:externalData r:id="rId1"/></c:chartSpace>`))
	pkg.SetPart(workbook, []byte("workbook bytes"))

	chartRels := &Relationships{Source: chart}
	chartRels.Add(relTypePackage, workbook)
	slideRels, err := pkg.Relationships(slidePart)
	if err != nil {
		t.Fatal(err)
	}
	slideRels.Add(relTypeChart, chart)
	for _, r := range []*Relationships{chartRels, slideRels} {
		if err := pkg.SetRelationships(r); err != nil {
			t.Fatal(err)
		}
	}

	ct, err := pkg.ContentTypes()
	if err != nil {
		t.Fatal(err)
	}
	ct.SetOverride(chart, chartType)
	if !ct.HasDefault(workbook) {
		ct.AddDefault("xlsx", workbookType)
	}
	if err := pkg.SetContentTypes(ct); err != nil {
		t.Fatal(err)
	}
}

// relTarget resolves the first relationship of kind from part.
func relTarget(t *testing.T, pkg *Package, part, kind string) string {
	t.Helper()
	rels, err := pkg.Relationships(part)
	if err != nil {
		t.Fatal(err)
	}
	rel, ok := rels.FirstOfKind(kind)
	if !ok {
		t.Fatalf("%s has no %s relationship", part, kind)
	}
	return rels.Resolve(rel)
}

func TestBuilderClonesChartsWithEmbeddedWorkbooks(t *testing.T) {
	pkg := readFixture(t, threeSlides)
	tplDeck, err := NewDeck(pkg)
	if err != nil {
		t.Fatal(err)
	}
	withChart(t, pkg, tplDeck.SlideRefs()[1].Part)
	tpl, err := NewDeck(pkg)
	if err != nil {
		t.Fatalf("NewDeck failed: %v", err)
	}

	out := build(t, tpl, 1, 0, 1)
	outPkg := out.Package()
	refs := out.SlideRefs()

	first := relTarget(t, outPkg, refs[0].Part, RelChart)
	second := relTarget(t, outPkg, refs[2].Part, RelChart)
	if first == second {
		t.Fatalf("both copies share chart %s", first)
	}
	if first != "ppt/charts/chart1.xml" || second != "ppt/charts/chart2.xml" {
		t.Errorf("charts = %s, %s", first, second)
	}
	if outPkg.Has("ppt/charts/chart3.xml") {
		t.Error("unexpected third chart")
	}
	if rels, _ := outPkg.Relationships(refs[1].Part); rels != nil {
		if _, ok := rels.FirstOfKind(RelChart); ok {
			t.Error("slide without a chart gained one")
		}
	}

	wb1 := relTarget(t, outPkg, first, "package")
	wb2 := relTarget(t, outPkg, second, "package")
	if wb1 == wb2 {
		t.Fatalf("both charts share workbook %s", wb1)
	}
	for _, wb := range []string{wb1, wb2} {
		if !strings.HasPrefix(wb, "ppt/embeddings/Microsoft_Excel_Worksheet") {
			t.Errorf("workbook part %s", wb)
		}
		if data, ok := outPkg.Part(wb); !ok || string(data) != "workbook bytes" {
			t.Errorf("workbook %s = %q", wb, data)
		}
	}

	ct, err := outPkg.ContentTypes()
	if err != nil {
		t.Fatal(err)
	}
	for _, chart := range []string{first, second} {
		if got, ok := ct.Override(chart); !ok || got != chartType {
			t.Errorf("override for %s = %q, %v", chart, got, ok)
		}
	}
	if got, ok := ct.defaultFor(wb1); !ok || got != workbookType {
		t.Errorf("xlsx default = %q, %v", got, ok)
	}

	if !pkg.Has("ppt/charts/chart1.xml") || pkg.Has("ppt/charts/chart2.xml") {
		t.Error("template package changed")
	}
}

const appWithTitles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" ` +
	`xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">` +
	`<Slides>2</Slides><Notes>0</Notes>` +
	`<HeadingPairs><vt:vector size="4" baseType="variant">` +
	`<vt:variant><vt:lpstr>Theme</vt:lpstr></vt:variant><vt:variant><vt:i4>1</vt:i4></vt:variant>` +
	`<vt:variant><vt:lpstr>Slide Titles</vt:lpstr></vt:variant><vt:variant><vt:i4>2</vt:i4></vt:variant>` +
	`</vt:vector></HeadingPairs>` +
	`<TitlesOfParts><vt:vector size="3" baseType="lpstr">` +
	`<vt:lpstr>Office Theme</vt:lpstr><vt:lpstr>Quarterly Review</vt:lpstr><vt:lpstr>Agenda</vt:lpstr>` +
	`</vt:vector></TitlesOfParts></Properties>`

func TestBuilderRefreshesSlideTitles(t *testing.T) {
	titled := pptxtest.Deck{Slides: []pptxtest.Slide{
		{Layout: "Title Slide", Shapes: []pptxtest.Shape{{
			Name: "Title 1", Placeholder: "ctrTitle",
			Paragraphs: [][]pptxtest.Run{{{Text: "Quarterly"}}, {{Text: "Review"}}},
		}}},
		{Layout: "Title and Content", Shapes: []pptxtest.Shape{
			{Name: "Title 1", Placeholder: "title", Paragraphs: [][]pptxtest.Run{{{Text: "Agenda"}}}},
			pptxtest.Text("Body", "Goals"),
		}},
	}}
	pkg := readFixture(t, titled)
	pkg.SetPart("docProps/app.xml", []byte(appWithTitles))
	tpl, err := NewDeck(pkg)
	if err != nil {
		t.Fatalf("NewDeck failed: %v", err)
	}

	out := build(t, tpl, 1, 0, 1)
	data, _ := out.Package().Part("docProps/app.xml")
	doc, err := parseXML("docProps/app.xml", data)
	if err != nil {
		t.Fatal(err)
	}
	root := doc.Root()

	if got := child(root, "Slides").Text(); got != "3" {
		t.Errorf("Slides = %s, want 3", got)
	}
	variants := children(childPath(root, "HeadingPairs", "vector"), "variant")
	if len(variants) != 4 {
		t.Fatalf("heading pairs = %d variants", len(variants))
	}
	if got := child(variants[1], "i4").Text(); got != "1" {
		t.Errorf("theme count = %s, want 1", got)
	}
	if got := child(variants[3], "i4").Text(); got != "3" {
		t.Errorf("slide title count = %s, want 3", got)
	}

	vec := childPath(root, "TitlesOfParts", "vector")
	if got := attr(vec, "", "size"); got != "4" {
		t.Errorf("TitlesOfParts size = %s, want 4", got)
	}
	var titles []string
	for _, el := range children(vec, "lpstr") {
		titles = append(titles, el.Text())
	}
	want := []string{"Office Theme", "Agenda", "Quarterly Review", "Agenda"}
	if strings.Join(titles, "|") != strings.Join(want, "|") {
		t.Errorf("titles = %q, want %q", titles, want)
	}
}

func TestSetSlideTitlesLeavesInconsistentVectors(t *testing.T) {
	doc, err := parseXML("app.xml", []byte(strings.Replace(appWithTitles, "<vt:i4>2</vt:i4>", "<vt:i4>5</vt:i4>", 1)))
	if err != nil {
		t.Fatal(err)
	}
	setSlideTitles(doc.Root(), []string{"New"})
	if got := attr(childPath(doc.Root(), "TitlesOfParts", "vector"), "", "size"); got != "3" {
		t.Errorf("size = %s, vector should be untouched", got)
	}
}
