package provider

import (
	"strconv"

	"github.com/beevik/etree"

	soap "github.com/merchantcapital/comcorp-idx-connector"
)

const faultPrefix = "sxf"

// ResponseBuilder assembles the envelopes returned to the provider. Every
// envelope carries a fresh security header.
type ResponseBuilder struct {
	header soap.HeaderBuilder
}

// NewResponseBuilder returns a builder applying header to every envelope.
func NewResponseBuilder(header soap.HeaderBuilder) *ResponseBuilder {
	return &ResponseBuilder{header: header}
}

// NewResponseEnvelope builds the Submit response: a single Value element
// holding the literal "true" or "false".
func (b *ResponseBuilder) NewResponseEnvelope(success bool) *etree.Document {
	doc := soap.NewEnvelopeDocument()
	value := soap.FindBody(doc.Root()).CreateElement("Value")
	value.CreateAttr("xmlns", NSProviderSubmit)
	value.SetText(strconv.FormatBool(success))

	b.apply(doc)
	return doc
}

// NewFaultEnvelope builds a SOAP fault carrying code and errors, in order.
func (b *ResponseBuilder) NewFaultEnvelope(code int, errs []string) *etree.Document {
	doc := soap.NewEnvelopeDocument()
	fault := soap.FindBody(doc.Root()).CreateElement(soap.PrefixSoap + ":Fault")
	fault.CreateElement("Code").SetText(strconv.Itoa(code))

	sx := fault.CreateElement("Detail").CreateElement(faultPrefix + ":SecureXFault")
	sx.CreateAttr("xmlns:"+faultPrefix, soap.NSSecureXFault)
	sx.CreateElement("Code").SetText(strconv.Itoa(code))
	list := sx.CreateElement("Errors")
	for _, e := range errs {
		list.CreateElement("string").SetText(e)
	}

	b.apply(doc)
	return doc
}

func (b *ResponseBuilder) apply(doc *etree.Document) {
	if b.header != nil {
		b.header.Apply(doc.Root())
	}
}
