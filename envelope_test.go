package soap

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/m29h/xml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envelopeName = xml.Name{
	Space: NSSoap,
	Local: "Envelope",
}

type headerExample struct {
	XMLName xml.Name `xml:"ns HeaderExample"`
	Attr1   int32    `xml:"attr1,attr"`
	Value   string   `xml:",chardata"`
}

type envelopeExampleField struct {
	XMLName xml.Name `xml:"ContentField"`
	Attr1   string   `xml:"attr1,attr"`
	Attr2   int32    `xml:"attr2,attr"`
	Value   string   `xml:",chardata"`
}

type envelopeContentExample struct {
	XMLName xml.Name             `xml:"ns ContentExample"`
	Attr1   int32                `xml:"attr1,attr"`
	Field1  envelopeExampleField `xml:"ContentField"`
}

func TestEnvelopeEncode(t *testing.T) {
	val := NewEnvelope(&envelopeContentExample{
		Attr1: 10,
		Field1: envelopeExampleField{
			Attr1: "test attr",
			Attr2: 11,
			Value: "This is a test string",
		},
	})
	val.AddHeaders(headerExample{Attr1: 15, Value: "test header value"})

	raw, err := xml.Marshal(val)
	require.NoError(t, err)

	doc, err := ParseEnvelope(raw)
	require.NoError(t, err)
	root := doc.Root()
	assert.Equal(t, QName{NSSoap, "Envelope"}, NameOf(root))

	header := FindHeader(root)
	require.NotNil(t, header)
	h := FindDescendant(header, "ns", "HeaderExample")
	require.NotNil(t, h)
	assert.Equal(t, "15", h.SelectAttrValue("attr1", ""))
	assert.Equal(t, "test header value", h.Text())

	body := FindBody(root)
	require.NotNil(t, body)
	c := FindDescendant(body, "ns", "ContentExample")
	require.NotNil(t, c)
	assert.Equal(t, "10", c.SelectAttrValue("attr1", ""))
}

type envelopeDecodeTest struct {
	in         string
	contentPtr interface{}
	fault      bool
	err        error
}

var envelopeDecodeTests = []envelopeDecodeTest{
	{
		in: `<?xml version="1.0"?>
			<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
				<soap:Body>
					<ContentExample xmlns="ns" attr1="10">
						<ContentField attr1="test attr" attr2="11">This is a test content string</ContentField>
					</ContentExample>
				</soap:Body>
			</soap:Envelope>`,
		contentPtr: &envelopeContentExample{},
	},
	{
		in: `<?xml version="1.0"?>
			<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
				<soap:Body>
					<soap:Fault>
						<Code>500</Code>
						<Detail>
							<SecureXFault xmlns="http://SecureX.Fault/V1">
								<Code>500</Code>
								<Errors><string>boom</string></Errors>
							</SecureXFault>
						</Detail>
					</soap:Fault>
				</soap:Body>
			</soap:Envelope>`,
		contentPtr: &envelopeContentExample{},
		fault:      true,
	},
	{
		in: `<?xml version="1.0"?>
			<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
				<soap:Body>
					<ContentExample xmlns="ns" attr1="10"/>
				</soap:Body>
			</soap:Envelope>`,
		contentPtr: nil,
		err:        ErrEnvelopeMisconfigured,
	},
}

func TestEnvelopeDecode(t *testing.T) {
	for i, tt := range envelopeDecodeTests {
		val := NewEnvelope(tt.contentPtr)

		dec := xml.NewDecoder(bytes.NewBufferString(tt.in))
		err := dec.Decode(val)

		if !reflect.DeepEqual(err, tt.err) {
			t.Errorf("#%d: %v, want %v", i, err, tt.err)
			continue
		} else if err != nil {
			continue
		}

		if !reflect.DeepEqual(val.XMLName, envelopeName) {
			t.Errorf("#%d: envelope XMLName mismatch\nhave: %+v\nwant: %+v", i, val.XMLName, envelopeName)
		}
		if val.Body == nil {
			t.Fatalf("#%d: body is nil", i)
		}
		if tt.fault != (val.Body.Fault != nil) {
			t.Errorf("#%d: fault = %v, want %v", i, val.Body.Fault, tt.fault)
		}
		if !tt.fault {
			c := tt.contentPtr.(*envelopeContentExample)
			if c.Attr1 != 10 || c.Field1.Value != "This is a test content string" {
				t.Errorf("#%d: content not decoded: %+v", i, c)
			}
		}
	}
}

func TestNewEnvelope(t *testing.T) {
	content := &envelopeContentExample{Attr1: 42}
	envelope := NewEnvelope(content)

	if envelope.Body == nil {
		t.Error("NewEnvelope should create a body")
	}

	if len(envelope.Body.Content) != 1 {
		t.Errorf("Expected 1 content element, got %d", len(envelope.Body.Content))
	}

	if envelope.Body.Content[0] != content {
		t.Error("Content element should match input")
	}
}

func TestNewEnvelopeWithMultipleContent(t *testing.T) {
	content1 := &envelopeContentExample{Attr1: 42}
	content2 := &envelopeContentExample{Attr1: 43}
	envelope := NewEnvelope([]any{content1, content2})

	if len(envelope.Body.Content) != 2 {
		t.Errorf("Expected 2 content elements, got %d", len(envelope.Body.Content))
	}
}

func TestAddHeaders(t *testing.T) {
	envelope := NewEnvelope(&envelopeContentExample{Attr1: 42})
	envelope.AddHeaders(headerExample{Attr1: 10, Value: "test1"}, headerExample{Attr1: 20, Value: "test2"})

	if envelope.Header == nil {
		t.Fatal("AddHeaders should create a header")
	}
	if len(envelope.Header.Headers) != 2 {
		t.Errorf("Expected 2 headers, got %d", len(envelope.Header.Headers))
	}
}

func TestNewEnvelopeDocument(t *testing.T) {
	doc := NewEnvelopeDocument()
	root := doc.Root()
	require.NotNil(t, root)

	assert.Equal(t, "soap:Envelope", root.FullTag())
	for _, ns := range envelopeNamespaces {
		assert.Equal(t, ns[1], root.SelectAttrValue("xmlns:"+ns[0], ""), ns[0])
	}
	body := FindBody(root)
	require.NotNil(t, body)
	assert.Empty(t, body.ChildElements())
	assert.Nil(t, FindHeader(root))
}

func TestParseEnvelope(t *testing.T) {
	doc, err := ParseEnvelope([]byte(`<?xml version="1.0"?>
<!-- partner envelope -->
<e:Envelope xmlns:e="` + NSSoap + `"><e:Body/></e:Envelope>
`))
	require.NoError(t, err)
	assert.NotNil(t, FindBody(doc.Root()))

	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"mismatched tags", "<a><b></a>", nil},
		{"truncated", `<e:Envelope xmlns:e="` + NSSoap + `"><e:Body>`, nil},
		{"declaration only", `<?xml version="1.0"?>`, ErrNoRootElement},
		{"two roots", "<a/><b/>", ErrMalformedEnvelope},
		{"trailing garbage", "<a/>trailing garbage", ErrMalformedEnvelope},
		{"leading garbage", "garbage<a/>", ErrMalformedEnvelope},
		{"undeclared element prefix", "<undeclared:Envelope/>", ErrMalformedEnvelope},
		{"undeclared nested prefix", `<e:Envelope xmlns:e="` + NSSoap + `"><e:Body><x:Msg/></e:Body></e:Envelope>`, ErrMalformedEnvelope},
		{"undeclared attribute prefix", `<e:Envelope xmlns:e="` + NSSoap + `"><e:Body wsu:Id="B-1"/></e:Envelope>`, ErrMalformedEnvelope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseEnvelope([]byte(tt.input))
			assert.Nil(t, doc)
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestFindDescendants(t *testing.T) {
	doc, err := ParseEnvelope([]byte(`<r xmlns:a="urn:a" xmlns:b="urn:b">
		<a:x id="1"><a:x id="2"/></a:x>
		<b:x id="3"/>
		<y><a:x id="4"/></y>
	</r>`))
	require.NoError(t, err)

	var ids []string
	for _, el := range FindDescendants(doc.Root(), "urn:a", "x") {
		ids = append(ids, el.SelectAttrValue("id", ""))
	}
	assert.Equal(t, []string{"1", "2", "4"}, ids)

	first := FindDescendant(doc.Root(), "urn:b", "x")
	require.NotNil(t, first)
	assert.Equal(t, "3", first.SelectAttrValue("id", ""))
	assert.Nil(t, FindDescendant(doc.Root(), "urn:c", "x"))
	assert.Nil(t, FindDescendant(nil, "urn:a", "x"))
}

func TestQName(t *testing.T) {
	assert.Equal(t, "{http://IDX.Contract/V1}IDXProviderSubmitMessage",
		QName{"http://IDX.Contract/V1", "IDXProviderSubmitMessage"}.String())
	assert.Equal(t, "Local", QName{Local: "Local"}.String())
}
