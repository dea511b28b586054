package pptx

import (
	"fmt"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

const xmlDeclaration = `version="1.0" encoding="UTF-8" standalone="yes"`

// parseXML reads a part into an element tree. Parts declared in a legacy
// encoding are transcoded, and the declaration is rewritten to UTF-8 since
// that is what serializeXML produces.
func parseXML(name string, data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to parse %s: no root element", name)
	}
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			pi.Inst = xmlDeclaration
		}
	}
	return doc, nil
}

func serializeXML(doc *etree.Document) ([]byte, error) {
	return doc.WriteToBytes()
}

// child returns the first direct child element with the given local name.
func child(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// childPath walks a chain of local names from el.
func childPath(el *etree.Element, tags ...string) *etree.Element {
	for _, tag := range tags {
		el = child(el, tag)
		if el == nil {
			return nil
		}
	}
	return el
}

// children returns the direct child elements with the given local name.
func children(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	if el == nil {
		return out
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// attr returns the value of an attribute matched by local name, optionally
// restricted to a namespace prefix.
func attr(el *etree.Element, space, key string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if a.Key == key && (space == "" || a.Space == space) {
			return a.Value
		}
	}
	return ""
}

// relAttr returns a relationship-id attribute (r:id, r:embed, ...) whatever
// prefix the document binds to the relationships namespace.
func relAttr(el *etree.Element, key string) string {
	for _, a := range el.Attr {
		if a.Key == key && a.Space != "" && a.NamespaceURI() == nsRelationships {
			return a.Value
		}
	}
	return attr(el, "r", key)
}

const (
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPresentation  = "http://schemas.openxmlformats.org/presentationml/2006/main"
)

// prefixFor returns the prefix bound to uri on el or its ancestors.
func prefixFor(el *etree.Element, uri, fallback string) string {
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if a.Space == "xmlns" && a.Value == uri {
				return a.Key
			}
		}
	}
	return fallback
}
