// Package soap provides a SOAP 1.2 client and the WS-Security pieces of the
// SecureX profile. Outbound envelopes are stamped, signed and encrypted
// through header builders and plugins; inbound headers go through Verifier.
package soap

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrUnsupportedContentType is returned if we encounter a non-supported content type while querying
	ErrUnsupportedContentType = errors.New("unsupported content-type in response")
)

// Client is an opaque handle to a SOAP service.
type Client struct {
	url     string
	http    *http.Client
	headers []HeaderBuilder
	plugins []Plugin
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHeaderBuilders adds header builders applied to every request envelope.
func WithHeaderBuilders(builders ...HeaderBuilder) ClientOption {
	return func(c *Client) { c.headers = append(c.headers, builders...) }
}

// WithPlugins adds plugins run on every request and response.
func WithPlugins(plugins ...Plugin) ClientOption {
	return func(c *Client) { c.plugins = append(c.plugins, plugins...) }
}

// NewClient creates a new Client that will access a SOAP service.
// Requests made using this client will all be wrapped in a SOAP envelope.
// The default HTTP client used has no timeout nor circuit breaking. Override with SettHTTPClient. You have been warned.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:  url,
		http: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SettHTTPClient sets a custom http.Client instance to be used for all communications (e.g. for seting timeouts)
func (c *Client) SettHTTPClient(http *http.Client) {
	c.http = http
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Do invokes the SOAP request using its internal parameters.
// The request argument is serialized to XML, and if the call is successful the received XML
// is deserialized into the response argument. soapHeaders are marshalled into the SOAP Header.
// Per-call plugins run after the client's own.
// If a SOAP fault is detected it is returned as a *Fault.
func (c *Client) Do(ctx context.Context, action string, request any, response any, soapHeaders []any, plugins ...Plugin) error {
	req := NewRequest(action, c.url, request, response)
	req.AddSoapHeaders(soapHeaders...)
	req.AddHeader(c.headers...)
	req.AddPlugin(c.plugins...)
	req.AddPlugin(plugins...)

	httpReq, err := req.httpRequest(ctx)
	if err != nil {
		return err
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = httpResp.Body.Close() }()

	resp := newResponse(httpResp, req)
	err = resp.deserialize(ctx)
	if err != nil {
		return err
	}
	if resp.Fault() != nil {
		return resp.Fault()
	}

	return nil
}
