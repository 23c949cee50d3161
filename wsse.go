package soap

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// Implements the timestamp and token part of the WS-Security header.
// WSSEAuthInfo signs on top of it; see Verifier for the inbound side.

// TimestampLayout is the wire format of wsu:Created and wsu:Expires.
const TimestampLayout = "2006-01-02T15:04:05Z"

const (
	// DefaultResponseWindow is the validity of timestamps on envelopes we send back to the provider.
	DefaultResponseWindow = 5 * time.Minute
	// DefaultRequestWindow is the validity of timestamps on consumer requests.
	DefaultRequestWindow = time.Minute
)

// HeaderBuilder mutates a fully assembled envelope before plugins run.
type HeaderBuilder interface {
	Apply(envelope *etree.Element) *etree.Element
}

// SecurityHeaderBuilder appends a wsse:Security header carrying a fresh
// timestamp and, optionally, a binary security token.
type SecurityHeaderBuilder struct {
	// Window is added to Created to obtain Expires.
	Window time.Duration
	// Token is the base64 binary security token. Empty means no token element.
	Token string
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewSecurityHeaderBuilder returns a builder with the given window. When
// embedToken is set the public key material is embedded as a
// BinarySecurityToken.
func NewSecurityHeaderBuilder(window time.Duration, keys *KeyMaterial, embedToken bool) *SecurityHeaderBuilder {
	b := &SecurityHeaderBuilder{Window: window}
	if embedToken {
		b.Token = keys.PublicKeyToken()
	}
	return b
}

func getWsuID() string {
	return "WSSE" + uuid.New().String()
}

// FormatTimestamp truncates t to whole seconds in UTC and renders it with a trailing Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// Apply locates or creates the SOAP Header as the first child of envelope
// and appends a new Security element to it. Calling Apply twice yields two
// Security elements.
func (b *SecurityHeaderBuilder) Apply(envelope *etree.Element) *etree.Element {
	soapPrefix := ensureNamespace(envelope, PrefixSoap, NSSoap)
	wssePrefix := ensureNamespace(envelope, PrefixWsse, NSWsse)
	wsuPrefix := ensureNamespace(envelope, PrefixWsu, NSWsu)

	header := FindHeader(envelope)
	if header == nil {
		header = etree.NewElement(soapPrefix + ":Header")
		envelope.InsertChildAt(0, header)
	}

	security := header.CreateElement(wssePrefix + ":Security")
	security.CreateAttr(soapPrefix+":mustUnderstand", "1")

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	created := now().UTC().Truncate(time.Second)
	expires := created.Add(b.Window)

	ts := security.CreateElement(wsuPrefix + ":Timestamp")
	ts.CreateAttr(wsuPrefix+":Id", getWsuID())
	ts.CreateElement(wsuPrefix + ":Created").SetText(FormatTimestamp(created))
	ts.CreateElement(wsuPrefix + ":Expires").SetText(FormatTimestamp(expires))

	if b.Token != "" {
		bst := security.CreateElement(wssePrefix + ":BinarySecurityToken")
		bst.CreateAttr(wsuPrefix+":Id", getWsuID())
		bst.CreateAttr("EncodingType", encTypeBinary)
		bst.CreateAttr("ValueType", valTypeX509Token)
		bst.SetText(b.Token)
	}

	return envelope
}

// ensureNamespace returns a prefix bound to uri in scope of el, declaring
// preferred (or a numbered variant if taken) on el when none is bound.
func ensureNamespace(el *etree.Element, preferred, uri string) string {
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if a.Space == "xmlns" && a.Value == uri {
				return a.Key
			}
		}
	}
	prefix := preferred
	for i := 1; el.SelectAttr("xmlns:"+prefix) != nil; i++ {
		prefix = fmt.Sprintf("%s%d", preferred, i)
	}
	el.CreateAttr("xmlns:"+prefix, uri)
	return prefix
}
