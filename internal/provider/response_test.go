package provider

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/m29h/xml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	soap "github.com/merchantcapital/comcorp-idx-connector"
)

var fixedNow = time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)

func testBuilder() *ResponseBuilder {
	return NewResponseBuilder(&soap.SecurityHeaderBuilder{
		Window: soap.DefaultResponseWindow,
		Now:    func() time.Time { return fixedNow },
	})
}

// roundTrip serializes and reparses doc so namespace resolution reflects the wire form.
func roundTrip(t *testing.T, doc *etree.Document) *etree.Element {
	t.Helper()
	raw, err := doc.WriteToBytes()
	require.NoError(t, err)
	parsed, err := soap.ParseEnvelope(raw)
	require.NoError(t, err)
	return parsed.Root()
}

func TestNewResponseEnvelope(t *testing.T) {
	for _, success := range []bool{true, false} {
		root := roundTrip(t, testBuilder().NewResponseEnvelope(success))

		assert.Equal(t, soap.QName{Space: soap.NSSoap, Local: "Envelope"}, soap.NameOf(root))
		for _, prefix := range []string{"soap", "wsu", "wsse", "ds", "xenc"} {
			assert.NotEmpty(t, root.SelectAttrValue("xmlns:"+prefix, ""), prefix)
		}

		body := soap.FindBody(root)
		require.NotNil(t, body)
		require.Len(t, body.ChildElements(), 1)
		value := body.ChildElements()[0]
		assert.Equal(t, soap.QName{Space: NSProviderSubmit, Local: "Value"}, soap.NameOf(value))
		if success {
			assert.Equal(t, "true", value.Text())
		} else {
			assert.Equal(t, "false", value.Text())
		}

		security := soap.FindDescendant(soap.FindHeader(root), soap.NSWsse, "Security")
		require.NotNil(t, security)
		assert.Equal(t, "2024-03-14T09:31:53Z", soap.FindDescendant(security, soap.NSWsu, "Expires").Text())
	}
}

func TestNewFaultEnvelope(t *testing.T) {
	root := roundTrip(t, testBuilder().NewFaultEnvelope(500, []string{"a", "b"}))

	fault := soap.FindDescendant(soap.FindBody(root), soap.NSSoap, "Fault")
	require.NotNil(t, fault)
	code := fault.SelectElement("Code")
	require.NotNil(t, code)
	assert.Equal(t, "", code.NamespaceURI())
	assert.Equal(t, "500", code.Text())

	sx := soap.FindDescendant(fault, soap.NSSecureXFault, "SecureXFault")
	require.NotNil(t, sx)
	assert.Equal(t, "500", sx.SelectElement("Code").Text())

	var errs []string
	for _, e := range sx.SelectElement("Errors").ChildElements() {
		assert.Equal(t, "string", e.Tag)
		errs = append(errs, e.Text())
	}
	assert.Equal(t, []string{"a", "b"}, errs)

	assert.NotNil(t, soap.FindDescendant(root, soap.NSWsu, "Timestamp"))
}

func TestFaultEnvelopeDecodesWithClientTypes(t *testing.T) {
	raw, err := testBuilder().NewFaultEnvelope(400, []string{"first", "second"}).WriteToBytes()
	require.NoError(t, err)

	var content struct{}
	env := soap.NewEnvelope(&content)
	require.NoError(t, xml.Unmarshal(raw, env))
	require.NotNil(t, env.Body.Fault)
	assert.Equal(t, "400", env.Body.Fault.Code.String())
	assert.Equal(t, "soap fault: code=400, errors=[first; second]", env.Body.Fault.Error())
}

func TestResponseBuilderWithoutHeader(t *testing.T) {
	doc := NewResponseBuilder(nil).NewResponseEnvelope(true)
	assert.Nil(t, soap.FindHeader(doc.Root()))
}
