package soap

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signingPair struct {
	certPEM []byte
	keyPEM  []byte
	key     *rsa.PrivateKey
}

func newSigningPair(t *testing.T, cn string) signingPair {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return signingPair{
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		keyPEM:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
		key:     key,
	}
}

func (p signingPair) authInfo(t *testing.T) *WSSEAuthInfo {
	t.Helper()
	auth, err := NewWSSEAuthInfoFromPEM(p.certPEM, p.keyPEM)
	require.NoError(t, err)
	return auth
}

// timestampedEnvelope returns an envelope with a security timestamp and a
// provider Submit message in the Body.
func timestampedEnvelope() *etree.Document {
	doc := NewEnvelopeDocument()
	msg := FindBody(doc.Root()).CreateElement("IDXProviderSubmitMessage")
	msg.CreateAttr("xmlns", "http://IDX.Contract/V1")
	msg.CreateElement("ExchangeReference").SetText("EX-1")
	(&SecurityHeaderBuilder{Window: DefaultRequestWindow, Now: fixedClock}).Apply(doc.Root())
	return doc
}

func TestWSSEAuthInfoSign(t *testing.T) {
	pair := newSigningPair(t, "securex-signer")
	auth := pair.authInfo(t)

	signed, err := auth.Sign(timestampedEnvelope())
	require.NoError(t, err)
	env := signed.Root()

	security := FindDescendant(FindHeader(env), NSWsse, "Security")
	require.NotNil(t, security)
	bst := FindDescendant(security, NSWsse, "BinarySecurityToken")
	require.NotNil(t, bst)
	assert.Equal(t, valTypeX509Token, bst.SelectAttrValue("ValueType", ""))
	assert.Equal(t, base64.StdEncoding.EncodeToString(auth.Certificate().Raw), bst.Text())

	sig := FindDescendant(security, NSDsig, "Signature")
	require.NotNil(t, sig)
	assert.Equal(t, rsaSha256Sig, FindDescendant(sig, NSDsig, "SignatureMethod").SelectAttrValue("Algorithm", ""))
	assert.NotEmpty(t, FindDescendant(sig, NSDsig, "SignatureValue").Text())

	tsID := FindDescendant(security, NSWsu, "Timestamp").SelectAttrValue("wsu:Id", "")
	bodyID := FindBody(env).SelectAttrValue("wsu:Id", "")
	require.NotEmpty(t, bodyID)

	var uris []string
	for _, ref := range FindDescendants(sig, NSDsig, "Reference") {
		uris = append(uris, ref.SelectAttrValue("URI", ""))
		assert.NotEmpty(t, FindDescendant(ref, NSDsig, "DigestValue").Text())
	}
	assert.Equal(t, []string{"#" + tsID, "#" + bodyID}, uris)

	str := FindDescendant(sig, NSWsse, "Reference")
	require.NotNil(t, str)
	assert.Equal(t, "#"+bst.SelectAttrValue("wsu:Id", ""), str.SelectAttrValue("URI", ""))
}

func TestWSSEAuthInfoSignErrors(t *testing.T) {
	auth := newSigningPair(t, "securex-signer").authInfo(t)

	tests := []struct {
		name string
		doc  *etree.Document
		err  error
	}{
		{"nil document", nil, ErrUnableToSignEmptyEnvelope},
		{"no root", etree.NewDocument(), ErrUnableToSignEmptyEnvelope},
		{"no timestamp", NewEnvelopeDocument(), ErrNoTimestampToSign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Sign(tt.doc)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewWSSEAuthInfo(t *testing.T) {
	pair := newSigningPair(t, "securex-signer")
	other := newSigningPair(t, "someone-else")
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o600))
		return path
	}
	cert := write("comcorp.cer", pair.certPEM)
	key := write("private_key.pem", pair.keyPEM)
	otherKey := write("other_key.pem", other.keyPEM)

	tests := []struct {
		name    string
		cert    string
		key     string
		wantErr bool
	}{
		{"matching pair", cert, key, false},
		{"mismatched key", cert, otherKey, true},
		{"missing certificate", filepath.Join(dir, "nope.cer"), key, true},
		{"key text as certificate", key, key, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := NewWSSEAuthInfo(tt.cert, tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "securex-signer", auth.Certificate().Subject.CommonName)
		})
	}
}

func TestWSSEAuthInfoPlugin(t *testing.T) {
	auth := newSigningPair(t, "securex-signer").authInfo(t)
	headers := http.Header{"Content-Type": []string{ContentType}}

	doc, h, err := auth.Egress(context.Background(), timestampedEnvelope(), headers)
	require.NoError(t, err)
	assert.Equal(t, headers, h)
	assert.NotNil(t, FindDescendant(doc.Root(), NSDsig, "Signature"))

	_, _, err = auth.Egress(context.Background(), NewEnvelopeDocument(), headers)
	assert.ErrorIs(t, err, ErrNoTimestampToSign)

	in := NewEnvelopeDocument()
	out, _, err := auth.Ingress(context.Background(), in, headers)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestSignedEnvelopeVerifiesStrictly(t *testing.T) {
	pair := newSigningPair(t, "securex-signer")
	signed, err := pair.authInfo(t).Sign(timestampedEnvelope())
	require.NoError(t, err)
	raw, err := signed.WriteToBytes()
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	v := NewVerifier(&KeyMaterial{PrivateKey: "k", PublicCert: string(pair.certPEM)}, true, WithClock(fixedClock), WithLogger(logger))
	res := v.Verify(envelopeDoc(t, string(raw)))
	assert.True(t, res.Verified, res.Reason)
	assert.True(t, res.SignaturePresent)
	assert.Equal(t, KindNone, res.Kind)
}
