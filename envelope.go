package soap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/m29h/xml"
)

var (
	// ErrEnvelopeMisconfigured is returned if we attempt to deserialize a SOAP envelope without a type to deserialize the body or fault into.
	ErrEnvelopeMisconfigured = errors.New("envelope content or fault pointer empty")
	// ErrNoRootElement is returned when the parsed bytes contain no XML element at all.
	ErrNoRootElement = errors.New("document has no root element")
	// ErrMalformedEnvelope is returned when the parsed bytes are not a well-formed, namespace-valid document.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// Envelope is a SOAP 1.2 envelope used on the typed (marshalling) path.
type Envelope struct {
	// XMLName is the serialized name of this object.
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`

	Header *Header
	Body   *Body
}

// NewEnvelope creates a new SOAP Envelope with the specified data as the content to serialize or deserialize.
// Headers are assumed to be omitted unless explicitly added via AddHeaders()
func NewEnvelope(content interface{}) *Envelope {
	switch v := content.(type) {
	case []any: // content array with multiple elements
		return &Envelope{Body: &Body{Content: v}}
	}
	// single element body content
	return &Envelope{Body: &Body{Content: []any{content}}}
}

// AddHeaders adds additional headers to be serialized to the resulting SOAP envelope.
func (e *Envelope) AddHeaders(elems ...any) {
	if e.Header == nil {
		e.Header = &Header{}
	}

	e.Header.Headers = append(e.Header.Headers, elems...)
}

// Header is a SOAP envelope header.
type Header struct {
	// XMLName is the serialized name of this object.
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Header"`
	// Headers is an array of envelope headers to send.
	Headers []interface{} `xml:",omitempty"`
}

// Body is a SOAP envelope body.
type Body struct {
	// XMLName is the serialized name of this object.
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Body"`
	// WsuID is the WS-Security utility id of the body.
	WsuID string `xml:"http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd Id,attr,omitempty"`

	// Fault is a SOAP fault we may detect in a response.
	Fault *Fault `xml:",omitempty"`
	// Content is a SOAP request or response body.
	Content []interface{} `xml:",omitempty"`
}

// UnmarshalXML is an overridden deserialization routine used to decode a SOAP envelope body.
// The elements are read from the decoder d, starting at the element start. The contents of the decode are stored
// in the invoking body b. Any errors encountered are returned.
func (b *Body) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if b.Content == nil {
		return ErrEnvelopeMisconfigured
	}
	for _, c := range b.Content {
		if c == nil {
			return ErrEnvelopeMisconfigured
		}
	}
	b.Fault = &Fault{}

	elementDone := make([]bool, len(b.Content))
tokens:
	for {
		token, err := d.Token()
		if err != nil {
			return err
		} else if token == nil {
			return nil
		}

		switch elem := token.(type) {
		case xml.StartElement:
			// If the start element is a fault decode it as a fault, otherwise parse it as content.
			var err error
			if elem.Name.Space == NSSoap && elem.Name.Local == "Fault" {
				err = d.DecodeElement(b.Fault, &elem)
				if err != nil {
					return err
				}
				b.Content = nil
			} else {
				for i := range b.Content {
					if elementDone[i] {
						continue
					}
					err = d.DecodeElement(b.Content[i], &elem)
					if err != nil {
						continue
					} else {
						elementDone[i] = true
						b.Fault = nil
						continue tokens
					}
				}
				if err != nil {
					return err
				}
				return fmt.Errorf("received token %s %s in body but have no content field to unmarshal to", elem.Name.Space, elem.Name.Local)
			}
		case xml.EndElement:
			// We expect the Body to have a single entry, so once we encounter the end element we're done.
			return nil
		}
	}
}

// NewEnvelopeDocument returns an empty envelope document with the XML
// declaration, the standard prefixes declared on the root and an empty Body.
func NewEnvelopeDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	env := doc.CreateElement(PrefixSoap + ":Envelope")
	for _, ns := range envelopeNamespaces {
		env.CreateAttr("xmlns:"+ns[0], ns[1])
	}
	env.CreateElement(PrefixSoap + ":Body")
	return doc
}

// ParseEnvelope parses raw bytes into an envelope document. The bytes must
// hold exactly one root element, nothing but whitespace outside it and no
// undeclared namespace prefixes.
func ParseEnvelope(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, ErrNoRootElement
	}

	roots := 0
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			roots++
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return nil, fmt.Errorf("%w: content outside the root element", ErrMalformedEnvelope)
			}
		}
	}
	if roots != 1 {
		return nil, fmt.Errorf("%w: %d root elements", ErrMalformedEnvelope, roots)
	}
	if err := checkPrefixes(doc.Root()); err != nil {
		return nil, err
	}
	return doc, nil
}

func checkPrefixes(el *etree.Element) error {
	if el.Space != "" && el.NamespaceURI() == "" {
		return fmt.Errorf("%w: undeclared prefix %q on element %s", ErrMalformedEnvelope, el.Space, el.FullTag())
	}
	for _, a := range el.Attr {
		if a.Space == "" || a.Space == "xmlns" || a.Space == "xml" {
			continue
		}
		if lookupNamespace(el, a.Space) == "" {
			return fmt.Errorf("%w: undeclared prefix %q on attribute %s", ErrMalformedEnvelope, a.Space, a.FullKey())
		}
	}
	for _, c := range el.ChildElements() {
		if err := checkPrefixes(c); err != nil {
			return err
		}
	}
	return nil
}

// FindHeader returns the first SOAP Header under envelope, or nil.
func FindHeader(envelope *etree.Element) *etree.Element {
	return FindDescendant(envelope, NSSoap, "Header")
}

// FindBody returns the first SOAP Body under envelope, or nil.
func FindBody(envelope *etree.Element) *etree.Element {
	return FindDescendant(envelope, NSSoap, "Body")
}

// FindDescendant returns the first descendant of el, in document order,
// whose namespace URI and local name match.
func FindDescendant(el *etree.Element, space, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if matches(c, space, local) {
			return c
		}
		if d := FindDescendant(c, space, local); d != nil {
			return d
		}
	}
	return nil
}

// FindDescendants returns every descendant of el matching the qualified name, in document order.
func FindDescendants(el *etree.Element, space, local string) []*etree.Element {
	var out []*etree.Element
	if el == nil {
		return out
	}
	for _, c := range el.ChildElements() {
		if matches(c, space, local) {
			out = append(out, c)
		}
		out = append(out, FindDescendants(c, space, local)...)
	}
	return out
}

func matches(el *etree.Element, space, local string) bool {
	return el.Tag == local && el.NamespaceURI() == space
}

// QName is a namespace-qualified element name.
type QName struct {
	Space string
	Local string
}

// String renders the name in Clark notation.
func (q QName) String() string {
	if q.Space == "" {
		return q.Local
	}
	return "{" + q.Space + "}" + q.Local
}

// NameOf returns the qualified name of el.
func NameOf(el *etree.Element) QName {
	return QName{Space: el.NamespaceURI(), Local: el.Tag}
}
