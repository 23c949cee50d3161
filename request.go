package soap

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/beevik/etree"
	"github.com/m29h/xml"
)

// ContentType is the SOAP 1.2 media type used for outbound requests.
const ContentType = "application/soap+xml"

// Request is a single SOAP call: the typed body, optional typed SOAP
// headers, the header builders and the plugins that shape the wire envelope.
type Request struct {
	action string
	url    string
	req    any
	resp   any

	soapHeaders []any
	headers     []HeaderBuilder
	plugins     []Plugin
}

// NewRequest creates a request for action against url. request is marshalled
// into the Body and the response Body is unmarshalled into response.
func NewRequest(action, url string, request, response any) *Request {
	return &Request{
		action: action,
		url:    url,
		req:    request,
		resp:   response,
	}
}

// AddHeader registers header builders, applied in order to the assembled envelope.
func (r *Request) AddHeader(builders ...HeaderBuilder) {
	r.headers = append(r.headers, builders...)
}

// AddSoapHeaders adds typed elements marshalled into the SOAP Header.
func (r *Request) AddSoapHeaders(elems ...any) {
	r.soapHeaders = append(r.soapHeaders, elems...)
}

// AddPlugin registers plugins, run in order on egress and ingress.
func (r *Request) AddPlugin(plugins ...Plugin) {
	r.plugins = append(r.plugins, plugins...)
}

// document marshals the typed envelope and applies the header builders.
func (r *Request) document() (*etree.Document, error) {
	env := NewEnvelope(r.req)
	if len(r.soapHeaders) > 0 {
		env.AddHeaders(r.soapHeaders...)
	}

	raw, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshalling envelope: %w", err)
	}
	doc, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	for _, h := range r.headers {
		h.Apply(doc.Root())
	}
	return doc, nil
}

func (r *Request) httpRequest(ctx context.Context) (*http.Request, error) {
	doc, err := r.document()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Content-Type", fmt.Sprintf("%s; charset=utf-8; action=%q", ContentType, r.action))
	for _, p := range r.plugins {
		doc, headers, err = p.Egress(ctx, doc, headers)
		if err != nil {
			return nil, err
		}
	}

	body, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	return req, nil
}
