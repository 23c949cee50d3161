package soap

// Namespaces used on the wire. These must match the partner exactly.
const (
	// NSSoap is the SOAP 1.2 envelope namespace.
	NSSoap = "http://www.w3.org/2003/05/soap-envelope"
	// NSDsig is the XML-Signature namespace.
	NSDsig = "http://www.w3.org/2000/09/xmldsig#"
	// NSXenc is the XML-Encryption namespace.
	NSXenc = "http://www.w3.org/2001/04/xmlenc#"

	wssBase = "http://docs.oasis-open.org/wss/2004/01/"
	// NSWsse is the WS-Security secext namespace.
	NSWsse = wssBase + "oasis-200401-wss-wssecurity-secext-1.0.xsd"
	// NSWsu is the WS-Security utility namespace.
	NSWsu = wssBase + "oasis-200401-wss-wssecurity-utility-1.0.xsd"

	encTypeBinary    = wssBase + "oasis-200401-wss-soap-message-security-1.0#Base64Binary"
	valTypeX509Token = wssBase + "oasis-200401-wss-x509-token-profile-1.0#X509v3"

	xencContentType = NSXenc + "Content"
)

// Prefixes declared on envelopes built by this package.
const (
	PrefixSoap = "soap"
	PrefixWsu  = "wsu"
	PrefixWsse = "wsse"
	PrefixDsig = "ds"
	PrefixXenc = "xenc"
)

// envelopeNamespaces is the prefix map declared on every envelope root we build.
var envelopeNamespaces = [][2]string{
	{PrefixSoap, NSSoap},
	{PrefixWsu, NSWsu},
	{PrefixWsse, NSWsse},
	{PrefixDsig, NSDsig},
	{PrefixXenc, NSXenc},
}
