package soap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m29h/xml"
)

// NSSecureXFault is the namespace of the detail element carried in faults.
const NSSecureXFault = "http://SecureX.Fault/V1"

var (
	// ErrSoapFault indicates a fault body element was received
	ErrSoapFault = errors.New("soap fault")
)

type details struct {
	Content []byte `xml:",innerxml"`
}

type faultCode struct {
	// Value is set by standard SOAP 1.2 faults (soap:Code/soap:Value).
	Value string `xml:"Value,omitempty"`
	// Text is set by partner faults that carry the numeric code directly.
	Text string `xml:",chardata"`
}

func (c faultCode) String() string {
	if v := strings.TrimSpace(c.Value); v != "" {
		return v
	}
	return strings.TrimSpace(c.Text)
}

// Fault is a SOAP 1.2 fault.
type Fault struct {
	// XMLName is the serialized name of this object.
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Fault"`

	Code   faultCode `xml:"Code"`
	Reason string    `xml:"Reason>Text,omitempty"`
	Detail details   `xml:"Detail"`
}

// SecureXFault is the detail block of a partner fault.
type SecureXFault struct {
	XMLName xml.Name `xml:"http://SecureX.Fault/V1 SecureXFault"`
	Code    string   `xml:"Code"`
	Errors  []string `xml:"Errors>string"`
}

// Error satisfies the Error() interface allowing us to return a fault as an error.
func (f *Fault) Error() string {
	s := fmt.Sprintf("soap fault: code=%s", f.Code)
	if f.Reason != "" {
		s += ", reason=" + f.Reason
	}
	var sx SecureXFault
	if err := f.DecodeDetail(&sx); err == nil && len(sx.Errors) > 0 {
		s += ", errors=[" + strings.Join(sx.Errors, "; ") + "]"
	}
	return s
}

func (f *Fault) Unwrap() error {
	return ErrSoapFault
}

// DecodeDetail unmarshals the first element inside Detail into v.
func (f *Fault) DecodeDetail(v any) error {
	if len(strings.TrimSpace(string(f.Detail.Content))) == 0 {
		return nil
	}
	return xml.Unmarshal(f.Detail.Content, v)
}
