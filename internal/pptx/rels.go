package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"strconv"
	"strings"
)

const rootRelsPart = "_rels/.rels"

const relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// Relationship type suffixes. Types are matched on the last path segment so
// both the transitional and strict namespaces are recognized.
const (
	RelOfficeDocument = "officeDocument"
	RelSlide          = "slide"
	RelSlideLayout    = "slideLayout"
	RelSlideMaster    = "slideMaster"
	RelNotesSlide     = "notesSlide"
	RelNotesMaster    = "notesMaster"
	RelImage          = "image"
	RelChart          = "chart"
	RelComments       = "comments"
)

const relTypeSlide = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// External reports whether the target lives outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Kind returns the last segment of the relationship type URI.
func (r Relationship) Kind() string {
	return path.Base(r.Type)
}

// Relationships is the decoded content of a .rels part. Source is the part
// the relationships belong to ("" for the package root).
type Relationships struct {
	Source string
	Items  []Relationship
}

type xmlRelationships struct {
	XMLName xml.Name       `xml:"Relationships"`
	Xmlns   string         `xml:"xmlns,attr"`
	Items   []Relationship `xml:"Relationship"`
}

// RelsPartName returns the .rels part name holding the relationships of part.
func RelsPartName(part string) string {
	if part == "" {
		return rootRelsPart
	}
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

func isRelsPart(name string) bool {
	return strings.HasSuffix(name, ".rels") && path.Base(path.Dir(name)) == "_rels"
}

// ResolveTarget turns a relationship target into a package part name.
func ResolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Clean(path.Join(path.Dir(source), target)), "/")
}

// RelativeTarget returns the target string that points from source to part.
func RelativeTarget(source, part string) string {
	from := strings.Split(path.Dir(source), "/")
	if path.Dir(source) == "." {
		from = nil
	}
	to := strings.Split(part, "/")

	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	var out []string
	for j := i; j < len(from); j++ {
		out = append(out, "..")
	}
	out = append(out, to[i:]...)
	return strings.Join(out, "/")
}

// ParseRelationships decodes a .rels part.
func ParseRelationships(source string, data []byte) (*Relationships, error) {
	var x xmlRelationships
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, fmt.Errorf("failed to parse relationships of %q: %w", source, err)
	}
	return &Relationships{Source: source, Items: x.Items}, nil
}

// Marshal encodes the relationships as a .rels part.
func (r *Relationships) Marshal() ([]byte, error) {
	x := xmlRelationships{Xmlns: relsNamespace, Items: r.Items}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(x); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ByID returns the relationship with the given id.
func (r *Relationships) ByID(id string) (Relationship, bool) {
	for _, rel := range r.Items {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// FirstOfKind returns the first relationship whose type ends in kind.
func (r *Relationships) FirstOfKind(kind string) (Relationship, bool) {
	for _, rel := range r.Items {
		if rel.Kind() == kind {
			return rel, true
		}
	}
	return Relationship{}, false
}

// Resolve returns the part name a relationship points at.
func (r *Relationships) Resolve(rel Relationship) string {
	return ResolveTarget(r.Source, rel.Target)
}

// RemoveKind drops every relationship of the given kind and returns them.
func (r *Relationships) RemoveKind(kind string) []Relationship {
	var kept, removed []Relationship
	for _, rel := range r.Items {
		if rel.Kind() == kind {
			removed = append(removed, rel)
		} else {
			kept = append(kept, rel)
		}
	}
	r.Items = kept
	return removed
}

// NextID returns an unused rIdN identifier.
func (r *Relationships) NextID() string {
	max := 0
	for _, rel := range r.Items {
		if n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("rId%d", max+1)
}

// Add appends a relationship pointing at part and returns its id.
func (r *Relationships) Add(relType, part string) string {
	id := r.NextID()
	r.Items = append(r.Items, Relationship{
		ID:     id,
		Type:   relType,
		Target: RelativeTarget(r.Source, part),
	})
	return id
}

// Relationships returns the decoded relationships of part. A part without a
// .rels file has no relationships.
func (p *Package) Relationships(part string) (*Relationships, error) {
	data, ok := p.Part(RelsPartName(part))
	if !ok {
		return &Relationships{Source: part}, nil
	}
	return ParseRelationships(part, data)
}

// SetRelationships stores rels for their source part. An empty set removes
// the .rels part.
func (p *Package) SetRelationships(rels *Relationships) error {
	name := RelsPartName(rels.Source)
	if len(rels.Items) == 0 && rels.Source != "" {
		p.DeletePart(name)
		return nil
	}
	data, err := rels.Marshal()
	if err != nil {
		return err
	}
	p.SetPart(name, data)
	return nil
}
