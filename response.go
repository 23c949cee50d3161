package soap

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/m29h/xml"
)

// Response contains the result of the request.
type Response struct {
	*http.Response

	body    interface{}
	plugins []Plugin
	fault   *Fault
}

func newResponse(httpResp *http.Response, req *Request) *Response {
	return &Response{
		Response: httpResp,
		body:     req.resp,
		plugins:  req.plugins,
	}
}

// Body returns the SOAP body. The value comes from what was passed into the linked request.
func (r *Response) Body() interface{} {
	return r.body
}

// Fault returns the SOAP fault encountered, if present
func (r *Response) Fault() *Fault {
	return r.fault
}

func (r *Response) deserialize(ctx context.Context) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	if mediaType != ContentType && !strings.Contains(mediaType, "text/xml") {
		return ErrUnsupportedContentType
	}

	raw, err := io.ReadAll(r.Response.Body)
	if err != nil {
		return err
	}
	doc, err := ParseEnvelope(raw)
	if err != nil {
		return err
	}
	headers := r.Header.Clone()
	for _, p := range r.plugins {
		doc, headers, err = p.Ingress(ctx, doc, headers)
		if err != nil {
			return err
		}
	}
	if raw, err = doc.WriteToBytes(); err != nil {
		return err
	}

	envelope := NewEnvelope(r.body)
	if err := xml.Unmarshal(raw, envelope); err != nil {
		return err
	}

	// Propagate the changes from parsing the envelope to the response struct
	if envelope.Body.Fault != nil {
		r.fault = envelope.Body.Fault
	}

	return nil
}
