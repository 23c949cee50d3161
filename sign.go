package soap

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/beevik/etree"
	"github.com/moov-io/signedxml"
)

// Implements the WS-Security standard using X.509 certificate signatures.
// https://www.di-mgt.com.au/xmldsig2.html is a handy reference to the WS-Security signing process.

const (
	canonicalizationExclusiveC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"
	rsaSha256Sig                  = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	sha256Sig                     = "http://www.w3.org/2001/04/xmlenc#sha256"
)

var (
	// ErrUnableToSignEmptyEnvelope is returned if the envelope to be signed is empty. This is not valid.
	ErrUnableToSignEmptyEnvelope = errors.New("unable to sign, envelope is empty")
	// ErrNoTimestampToSign is returned when the envelope carries no wsu:Timestamp in its security header.
	ErrNoTimestampToSign = errors.New("unable to sign, envelope has no security timestamp")
)

// WSSEAuthInfo contains the information required to use WS-Security X.509 signing.
// It is a Plugin: Egress signs the Timestamp and the Body of the envelope.
// Register it after the timestamp header builder and before encryption.
type WSSEAuthInfo struct {
	cert *x509.Certificate
	key  crypto.PrivateKey
}

// NewWSSEAuthInfo retrieves the supplied certificate path and key path for signing SOAP requests.
// These requests will be secured using the WS-Security X.509 security standard.
func NewWSSEAuthInfo(certPath string, keyPath string) (*WSSEAuthInfo, error) {
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return newWSSEAuthInfo(pair)
}

// NewWSSEAuthInfoFromPEM is NewWSSEAuthInfo for PEM blocks held in memory.
func NewWSSEAuthInfoFromPEM(certPEM, keyPEM []byte) (*WSSEAuthInfo, error) {
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return newWSSEAuthInfo(pair)
}

func newWSSEAuthInfo(pair tls.Certificate) (*WSSEAuthInfo, error) {
	if len(pair.Certificate) == 0 {
		return nil, ErrInvalidPEMFileSpecified
	}
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, errors.Join(ErrInvalidPEMFileSpecified, err)
	}
	return &WSSEAuthInfo{cert: cert, key: pair.PrivateKey}, nil
}

// Certificate returns the certificate embedded in signed envelopes.
func (w *WSSEAuthInfo) Certificate() *x509.Certificate {
	return w.cert
}

// Egress signs doc.
func (w *WSSEAuthInfo) Egress(_ context.Context, doc *etree.Document, headers http.Header) (*etree.Document, http.Header, error) {
	signed, err := w.Sign(doc)
	if err != nil {
		return nil, headers, err
	}
	return signed, headers, nil
}

// Ingress passes the envelope through unchanged.
func (w *WSSEAuthInfo) Ingress(_ context.Context, doc *etree.Document, headers http.Header) (*etree.Document, http.Header, error) {
	return doc, headers, nil
}

// Sign returns a signed copy of doc. The first wsse:Security header must
// already hold a wsu:Timestamp. Body and Timestamp get a wsu:Id when they
// lack one; the certificate is added as a BinarySecurityToken and an
// RSA-SHA256 ds:Signature referencing both ids is appended to the header.
func (w *WSSEAuthInfo) Sign(doc *etree.Document) (*etree.Document, error) {
	if doc == nil || doc.Root() == nil {
		return nil, ErrUnableToSignEmptyEnvelope
	}
	out := doc.Copy()
	env := out.Root()
	body := FindBody(env)
	if body == nil {
		return nil, ErrUnableToSignEmptyEnvelope
	}
	security := FindDescendant(FindHeader(env), NSWsse, "Security")
	ts := FindDescendant(security, NSWsu, "Timestamp")
	if ts == nil {
		return nil, ErrNoTimestampToSign
	}

	wssePrefix := ensureNamespace(env, PrefixWsse, NSWsse)
	wsuPrefix := ensureNamespace(env, PrefixWsu, NSWsu)
	idAttr := wsuPrefix + ":Id"

	bstID := getWsuID()
	bst := etree.NewElement(wssePrefix + ":BinarySecurityToken")
	bst.CreateAttr(idAttr, bstID)
	bst.CreateAttr("EncodingType", encTypeBinary)
	bst.CreateAttr("ValueType", valTypeX509Token)
	bst.SetText(base64.StdEncoding.EncodeToString(w.cert.Raw))
	security.InsertChildAt(0, bst)

	sig := security.CreateElement(PrefixDsig + ":Signature")
	sig.CreateAttr("xmlns:"+PrefixDsig, NSDsig)
	signedInfo := sig.CreateElement(PrefixDsig + ":SignedInfo")
	signedInfo.CreateElement(PrefixDsig+":CanonicalizationMethod").CreateAttr("Algorithm", canonicalizationExclusiveC14N)
	signedInfo.CreateElement(PrefixDsig+":SignatureMethod").CreateAttr("Algorithm", rsaSha256Sig)
	for _, el := range []*etree.Element{ts, body} {
		addSignatureReference(signedInfo, elementID(el, idAttr))
	}
	sig.CreateElement(PrefixDsig + ":SignatureValue")

	str := sig.CreateElement(PrefixDsig+":KeyInfo").CreateElement(wssePrefix + ":SecurityTokenReference")
	ref := str.CreateElement(wssePrefix + ":Reference")
	ref.CreateAttr("URI", "#"+bstID)
	ref.CreateAttr("ValueType", valTypeX509Token)

	raw, err := out.WriteToString()
	if err != nil {
		return nil, err
	}
	signer, err := signedxml.NewSigner(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	signer.SetReferenceIDAttribute(idAttr)
	signedXML, err := signer.Sign(w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign envelope: %w", err)
	}

	signed := etree.NewDocument()
	if err := signed.ReadFromString(signedXML); err != nil {
		return nil, err
	}
	return signed, nil
}

// addSignatureReference adds a reference to id. The digest is computed by the signer.
func addSignatureReference(signedInfo *etree.Element, id string) {
	ref := signedInfo.CreateElement(PrefixDsig + ":Reference")
	ref.CreateAttr("URI", "#"+id)
	ref.CreateElement(PrefixDsig+":Transforms").
		CreateElement(PrefixDsig+":Transform").
		CreateAttr("Algorithm", canonicalizationExclusiveC14N)
	ref.CreateElement(PrefixDsig+":DigestMethod").CreateAttr("Algorithm", sha256Sig)
	ref.CreateElement(PrefixDsig + ":DigestValue")
}

// elementID returns the value of attr on el, assigning a fresh id first when absent.
func elementID(el *etree.Element, attr string) string {
	if a := el.SelectAttr(attr); a != nil && a.Value != "" {
		return a.Value
	}
	id := getWsuID()
	el.CreateAttr(attr, id)
	return id
}
