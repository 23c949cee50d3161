package soap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/moov-io/signedxml"
	"github.com/sirupsen/logrus"
)

// Reasons reported by the verifier. Callers match on these strings.
const (
	ReasonMissingHeader   = "No Header element found in the request"
	ReasonMissingSecurity = "No Security element found in the request"
	ReasonExpired         = "Security timestamp has expired"
	ReasonMissingSig      = "No Signature element found in the request"
)

// FailureKind classifies a failed verification.
type FailureKind int

const (
	KindNone FailureKind = iota
	KindMissingHeader
	KindMissingSecurity
	KindExpired
	KindMalformedTimestamp
	KindSignature
	KindDecryption
	KindInternal
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMissingHeader:
		return "missing_header"
	case KindMissingSecurity:
		return "missing_security"
	case KindExpired:
		return "expired"
	case KindMalformedTimestamp:
		return "malformed_timestamp"
	case KindSignature:
		return "signature"
	case KindDecryption:
		return "decryption"
	default:
		return "internal"
	}
}

// Result is the outcome of Verify.
type Result struct {
	Verified bool
	// Reason is empty when Verified is true.
	Reason string
	Kind   FailureKind

	SignaturePresent     bool
	EncryptedDataPresent bool
}

func (r *Result) fail(kind FailureKind, reason string) {
	r.Verified = false
	r.Kind = kind
	r.Reason = reason
}

// SignatureValidator validates the XML signature of an envelope.
type SignatureValidator interface {
	ValidateSignature(envelope *etree.Element) error
}

// ContentDecryptor decrypts the base64 CipherValue of an EncryptedData element.
type ContentDecryptor interface {
	Decrypt(ciphertext string) ([]byte, error)
}

// securityPolicy inspects the Signature and EncryptedData parts of a
// security header once the structural and timestamp checks passed.
type securityPolicy interface {
	inspect(envelope, security *etree.Element, res *Result)
}

// Verifier inspects inbound WS-Security headers. It never mutates the envelope.
type Verifier struct {
	verifyFully bool
	now         func() time.Time
	log         logrus.FieldLogger
	policy      securityPolicy

	keys       *KeyMaterial
	signatures SignatureValidator
	decryptor  ContentDecryptor
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) VerifierOption {
	return func(v *Verifier) { v.log = log }
}

// WithSignatureValidator replaces the XML-DSig validator used when verifying fully.
func WithSignatureValidator(s SignatureValidator) VerifierOption {
	return func(v *Verifier) { v.signatures = s }
}

// WithContentDecryptor replaces the decryptor used when verifying fully.
func WithContentDecryptor(d ContentDecryptor) VerifierOption {
	return func(v *Verifier) { v.decryptor = d }
}

// NewVerifier returns a verifier. With verifyFully false, Signature and
// EncryptedData are only checked for presence. With verifyFully true a
// signature is required and validated, and every EncryptedData must decrypt.
func NewVerifier(keys *KeyMaterial, verifyFully bool, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		verifyFully: verifyFully,
		now:         time.Now,
		log:         logrus.StandardLogger(),
		keys:        keys,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.verifyFully {
		if v.signatures == nil {
			v.signatures = &xmldsigValidator{keys: keys}
		}
		if v.decryptor == nil {
			v.decryptor = NewLegacyEnvelopeCipher(keys)
		}
		v.policy = &strictPolicy{signatures: v.signatures, decryptor: v.decryptor, log: v.log}
	} else {
		v.policy = &presencePolicy{log: v.log}
	}
	return v
}

// VerifiesFully reports whether signature and decryption checks are enforced.
func (v *Verifier) VerifiesFully() bool {
	return v.verifyFully
}

// Verify inspects the security header of envelope. Any panic raised while
// inspecting is reported as a failed verification.
func (v *Verifier) Verify(envelope *etree.Element) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Kind: KindInternal, Reason: fmt.Sprint(r)}
		}
	}()

	if envelope == nil {
		res.fail(KindMissingHeader, ReasonMissingHeader)
		return res
	}
	header := FindHeader(envelope)
	if header == nil {
		res.fail(KindMissingHeader, ReasonMissingHeader)
		return res
	}
	security := FindDescendant(header, NSWsse, "Security")
	if security == nil {
		res.fail(KindMissingSecurity, ReasonMissingSecurity)
		return res
	}

	if ts := FindDescendant(security, NSWsu, "Timestamp"); ts != nil {
		created := FindDescendant(ts, NSWsu, "Created")
		expires := FindDescendant(ts, NSWsu, "Expires")
		if created != nil && expires != nil {
			if _, err := ParseTimestamp(created.Text()); err != nil {
				res.fail(KindMalformedTimestamp, err.Error())
				return res
			}
			exp, err := ParseTimestamp(expires.Text())
			if err != nil {
				res.fail(KindMalformedTimestamp, err.Error())
				return res
			}
			if v.now().UTC().After(exp) {
				res.fail(KindExpired, ReasonExpired)
				return res
			}
			v.log.WithFields(logrus.Fields{
				"created": created.Text(),
				"expires": expires.Text(),
			}).Info("Timestamp verified")
		}
	}

	res.Verified = true
	v.policy.inspect(envelope, security, &res)
	return res
}

// ParseTimestamp parses a wsu timestamp. A trailing Z is stripped first;
// values without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "Z")
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

type presencePolicy struct {
	log logrus.FieldLogger
}

func (p *presencePolicy) inspect(envelope, security *etree.Element, res *Result) {
	if FindDescendant(security, NSDsig, "Signature") != nil {
		res.SignaturePresent = true
		p.log.Info("Signature present, not validated")
	}
	if FindDescendant(envelope, NSXenc, "EncryptedData") != nil {
		res.EncryptedDataPresent = true
		p.log.Info("EncryptedData present, not decrypted")
	}
}

type strictPolicy struct {
	signatures SignatureValidator
	decryptor  ContentDecryptor
	log        logrus.FieldLogger
}

func (p *strictPolicy) inspect(envelope, security *etree.Element, res *Result) {
	if FindDescendant(security, NSDsig, "Signature") == nil {
		res.fail(KindSignature, ReasonMissingSig)
		return
	}
	res.SignaturePresent = true
	if err := p.signatures.ValidateSignature(envelope); err != nil {
		res.fail(KindSignature, "Signature validation failed: "+err.Error())
		return
	}
	p.log.Info("Signature validated")

	for _, ed := range FindDescendants(envelope, NSXenc, "EncryptedData") {
		res.EncryptedDataPresent = true
		cv := FindDescendant(ed, NSXenc, "CipherValue")
		if cv == nil {
			res.fail(KindDecryption, "EncryptedData has no CipherValue")
			return
		}
		if _, err := p.decryptor.Decrypt(strings.TrimSpace(cv.Text())); err != nil {
			res.fail(KindDecryption, "Unable to decrypt EncryptedData: "+err.Error())
			return
		}
	}
	if res.EncryptedDataPresent {
		p.log.Info("EncryptedData decrypted")
	}
}

// xmldsigValidator validates XML-DSig references keyed by wsu:Id against the
// configured certificate. The signature must be the only one in the envelope
// and must cover the Body and the Timestamp the verifier reads.
type xmldsigValidator struct {
	keys *KeyMaterial
}

func (x *xmldsigValidator) ValidateSignature(envelope *etree.Element) error {
	cert, err := x.keys.Certificate()
	if err != nil {
		return fmt.Errorf("no signing certificate configured: %w", err)
	}
	idAttr, err := checkSignedParts(envelope)
	if err != nil {
		return err
	}

	doc := etree.NewDocument()
	doc.SetRoot(envelope.Copy())
	raw, err := doc.WriteToString()
	if err != nil {
		return err
	}

	validator, err := signedxml.NewValidator(raw)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	validator.Certificates = append(validator.Certificates, *cert)
	validator.SetReferenceIDAttribute(idAttr)

	refs, err := validator.ValidateReferences()
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return errors.New("signature references nothing")
	}
	return nil
}

// checkSignedParts makes sure the elements the signature library resolves
// are the ones the verifier and router read: a single Signature inside the
// security header, referencing the wsu:Id of the top-level Body and of the
// Timestamp, each id used exactly once. It returns the qualified name of the
// id attribute.
func checkSignedParts(envelope *etree.Element) (string, error) {
	security := FindDescendant(FindHeader(envelope), NSWsse, "Security")
	sig := FindDescendant(security, NSDsig, "Signature")
	if sig == nil {
		return "", errors.New(ReasonMissingSig)
	}
	if n := len(envelope.FindElements(".//Signature")); n != 1 {
		return "", fmt.Errorf("expected exactly one Signature element, found %d", n)
	}

	body := FindBody(envelope)
	if body == nil || body.Parent() != envelope {
		return "", errors.New("envelope has no top-level Body")
	}
	ts := FindDescendant(security, NSWsu, "Timestamp")
	if ts == nil {
		return "", errors.New("security header has no Timestamp")
	}

	bodyID, idAttr := wsuIDOf(body)
	if bodyID == "" {
		return "", errors.New("Body is not signed: it has no wsu:Id")
	}
	tsID, tsAttr := wsuIDOf(ts)
	if tsID == "" {
		return "", errors.New("Timestamp is not signed: it has no wsu:Id")
	}
	if tsAttr != idAttr {
		return "", errors.New("Body and Timestamp use different wsu prefixes")
	}

	signed := map[string]bool{}
	for _, ref := range FindDescendants(FindDescendant(sig, NSDsig, "SignedInfo"), NSDsig, "Reference") {
		signed[ref.SelectAttrValue("URI", "")] = true
	}
	for _, part := range []struct{ name, id string }{{"Body", bodyID}, {"Timestamp", tsID}} {
		if !signed["#"+part.id] {
			return "", fmt.Errorf("%s is not covered by the signature", part.name)
		}
		if n := countIDs(envelope, part.id); n != 1 {
			return "", fmt.Errorf("id %q of %s is used %d times", part.id, part.name, n)
		}
	}
	return idAttr, nil
}

// wsuIDOf returns the wsu:Id of el and the qualified attribute name carrying it.
func wsuIDOf(el *etree.Element) (id, attr string) {
	for _, a := range el.Attr {
		if a.Key == "Id" && a.Space != "" && lookupNamespace(el, a.Space) == NSWsu {
			return a.Value, a.Space + ":Id"
		}
	}
	return "", ""
}

// countIDs counts the Id attributes, in any namespace, holding id.
func countIDs(el *etree.Element, id string) int {
	n := 0
	for _, a := range el.Attr {
		if (a.Key == "Id" || a.Key == "ID") && a.Value == id {
			n++
		}
	}
	for _, c := range el.ChildElements() {
		n += countIDs(c, id)
	}
	return n
}

// lookupNamespace resolves prefix in scope of el, or returns "".
func lookupNamespace(el *etree.Element, prefix string) string {
	for e := el; e != nil; e = e.Parent() {
		if a := e.SelectAttr("xmlns:" + prefix); a != nil {
			return a.Value
		}
	}
	return ""
}
