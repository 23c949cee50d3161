package soap

import (
	"context"
	"net/http"
	"sync"

	"github.com/beevik/etree"
)

// Plugin transforms an envelope on its way out (Egress) or in (Ingress).
// Plugins run in registration order after the header builders.
type Plugin interface {
	Egress(ctx context.Context, doc *etree.Document, headers http.Header) (*etree.Document, http.Header, error)
	Ingress(ctx context.Context, doc *etree.Document, headers http.Header) (*etree.Document, http.Header, error)
}

// Encrypter produces the base64 CipherValue for a serialized envelope.
type Encrypter interface {
	Encrypt(plaintext []byte) (string, error)
}

// EncryptPlugin replaces the outbound Body with an xenc:EncryptedData
// element holding the encryption of the whole envelope. The Header is
// transmitted in the clear so the receiver can check the timestamp first.
type EncryptPlugin struct {
	cipher Encrypter
}

// NewEncryptPlugin returns a plugin encrypting with c.
func NewEncryptPlugin(c Encrypter) *EncryptPlugin {
	return &EncryptPlugin{cipher: c}
}

// Egress encrypts doc and returns the envelope to transmit.
func (p *EncryptPlugin) Egress(_ context.Context, doc *etree.Document, headers http.Header) (*etree.Document, http.Header, error) {
	root := doc.Root()
	if root == nil {
		return nil, headers, ErrNoRootElement
	}

	plain := etree.NewDocument()
	plain.SetRoot(root.Copy())
	raw, err := plain.WriteToBytes()
	if err != nil {
		return nil, headers, err
	}
	cipherValue, err := p.cipher.Encrypt(raw)
	if err != nil {
		return nil, headers, err
	}

	env := etree.NewElement(root.FullTag())
	for _, a := range root.Attr {
		env.CreateAttr(a.FullKey(), a.Value)
	}
	if h := FindHeader(root); h != nil {
		env.AddChild(h.Copy())
	}
	soapPrefix := ensureNamespace(env, PrefixSoap, NSSoap)
	xencPrefix := ensureNamespace(env, PrefixXenc, NSXenc)

	ed := env.CreateElement(soapPrefix+":Body").CreateElement(xencPrefix + ":EncryptedData")
	ed.CreateAttr("Type", xencContentType)
	ed.CreateElement(xencPrefix+":CipherData").
		CreateElement(xencPrefix + ":CipherValue").
		SetText(cipherValue)

	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	out.SetRoot(env)
	return out, headers, nil
}

// Ingress passes the envelope through unchanged.
func (p *EncryptPlugin) Ingress(_ context.Context, doc *etree.Document, headers http.Header) (*etree.Document, http.Header, error) {
	return doc, headers, nil
}

// HistoryPlugin records the last envelope sent and received.
type HistoryPlugin struct {
	mu           sync.Mutex
	lastSent     *etree.Document
	lastReceived *etree.Document
}

// NewHistoryPlugin returns an empty history.
func NewHistoryPlugin() *HistoryPlugin {
	return &HistoryPlugin{}
}

func (h *HistoryPlugin) Egress(_ context.Context, doc *etree.Document, headers http.Header) (*etree.Document, http.Header, error) {
	h.mu.Lock()
	h.lastSent = doc.Copy()
	h.mu.Unlock()
	return doc, headers, nil
}

func (h *HistoryPlugin) Ingress(_ context.Context, doc *etree.Document, headers http.Header) (*etree.Document, http.Header, error) {
	h.mu.Lock()
	h.lastReceived = doc.Copy()
	h.mu.Unlock()
	return doc, headers, nil
}

// LastSent returns the indented XML of the last outbound envelope, or "".
func (h *HistoryPlugin) LastSent() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return prettyXML(h.lastSent)
}

// LastReceived returns the indented XML of the last inbound envelope, or "".
func (h *HistoryPlugin) LastReceived() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return prettyXML(h.lastReceived)
}

func prettyXML(doc *etree.Document) string {
	if doc == nil || doc.Root() == nil {
		return ""
	}
	c := etree.NewDocument()
	c.SetRoot(doc.Root().Copy())
	c.Indent(2)
	s, err := c.WriteToString()
	if err != nil {
		return ""
	}
	return s
}
