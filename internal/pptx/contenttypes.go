package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

const contentTypesNamespace = "http://schemas.openxmlformats.org/package/2006/content-types"

type ctDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type ctOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypes is the decoded [Content_Types].xml part.
type ContentTypes struct {
	XMLName   xml.Name     `xml:"Types"`
	Xmlns     string       `xml:"xmlns,attr"`
	Defaults  []ctDefault  `xml:"Default"`
	Overrides []ctOverride `xml:"Override"`
}

// ContentTypes decodes the package content types.
func (p *Package) ContentTypes() (*ContentTypes, error) {
	data, ok := p.Part(contentTypesPart)
	if !ok {
		return nil, fmt.Errorf("missing %s", contentTypesPart)
	}
	var ct ContentTypes
	if err := xml.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", contentTypesPart, err)
	}
	return &ct, nil
}

// SetContentTypes stores ct as [Content_Types].xml.
func (p *Package) SetContentTypes(ct *ContentTypes) error {
	ct.XMLName = xml.Name{Local: "Types"}
	ct.Xmlns = contentTypesNamespace
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(ct); err != nil {
		return err
	}
	p.SetPart(contentTypesPart, buf.Bytes())
	return nil
}

// Override returns the override content type registered for part.
func (ct *ContentTypes) Override(part string) (string, bool) {
	name := "/" + part
	for _, o := range ct.Overrides {
		if strings.EqualFold(o.PartName, name) {
			return o.ContentType, true
		}
	}
	return "", false
}

// SetOverride registers an override for part, replacing any existing one.
func (ct *ContentTypes) SetOverride(part, contentType string) {
	name := "/" + part
	for i, o := range ct.Overrides {
		if strings.EqualFold(o.PartName, name) {
			ct.Overrides[i].ContentType = contentType
			return
		}
	}
	ct.Overrides = append(ct.Overrides, ctOverride{PartName: name, ContentType: contentType})
}

// RemoveOverride drops the override for part if present.
func (ct *ContentTypes) RemoveOverride(part string) {
	name := "/" + part
	for i, o := range ct.Overrides {
		if strings.EqualFold(o.PartName, name) {
			ct.Overrides = append(ct.Overrides[:i], ct.Overrides[i+1:]...)
			return
		}
	}
}

// HasDefault reports whether the extension of part has a default content type.
func (ct *ContentTypes) HasDefault(part string) bool {
	ext := strings.TrimPrefix(path.Ext(part), ".")
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return true
		}
	}
	return false
}

// AddDefault registers a default content type for an extension.
func (ct *ContentTypes) AddDefault(ext, contentType string) {
	ct.Defaults = append(ct.Defaults, ctDefault{Extension: ext, ContentType: contentType})
}

// defaultFor returns the default content type registered for the extension.
func (ct *ContentTypes) defaultFor(part string) (string, bool) {
	ext := strings.TrimPrefix(path.Ext(part), ".")
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return d.ContentType, true
		}
	}
	return "", false
}
