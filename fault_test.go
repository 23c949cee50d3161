package soap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/m29h/xml"
)

type faultDecodeTest struct {
	in          string
	code        string
	errors      []string
	faultErrStr string
	err         bool
}

var faultDecodeTests = []faultDecodeTest{
	{
		in: `<?xml version="1.0" encoding="UTF-8"?>
		<Fault xmlns="http://www.w3.org/2003/05/soap-envelope">
			<Code><Value>soap:Receiver</Value></Code>
			<Reason><Text>Internal error</Text></Reason>
		</Fault>`,
		code:        "soap:Receiver",
		faultErrStr: "soap fault: code=soap:Receiver, reason=Internal error",
	},
	{
		in: `<?xml version="1.0" encoding="UTF-8"?>
		<soap:Fault xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
			<Code>500</Code>
			<Detail>
				<SecureXFault xmlns="http://SecureX.Fault/V1">
					<Code>500</Code>
					<Errors>
						<string>first</string>
						<string>second</string>
					</Errors>
				</SecureXFault>
			</Detail>
		</soap:Fault>`,
		code:        "500",
		errors:      []string{"first", "second"},
		faultErrStr: "soap fault: code=500, errors=[first; second]",
	},
	{
		in: `<?xml version="1.0" encoding="UTF-8"?>
		<soap:Fault xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
			<Code>400</Code>
			<Detail>
			</Detail>
		</soap:Fault>`,
		code:        "400",
		faultErrStr: "soap fault: code=400",
	},
	{
		in: `<?xml version="1.0" encoding="UTF-8"?>
		<soap:Fault xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
			<Code>400</Code>
			<Detail>
				<SecureXFault attr1="10
			</Detail>
		</soap:Fault>`,
		err: true,
	},
}

func TestFaultDecode(t *testing.T) {
	for i, tt := range faultDecodeTests {
		val := &Fault{}

		dec := xml.NewDecoder(bytes.NewReader([]byte(tt.in)))
		if err := dec.Decode(val); (err != nil) != tt.err {
			t.Errorf("#%d: %v, want error %v", i, err, tt.err)
			continue
		} else if err != nil {
			continue
		}

		if got := val.Code.String(); got != tt.code {
			t.Errorf("#%d: code mismatch\nhave: %q\nwant: %q", i, got, tt.code)
		}

		var detail SecureXFault
		if err := val.DecodeDetail(&detail); err != nil {
			t.Errorf("#%d: decode detail: %v", i, err)
		}
		if len(detail.Errors) != len(tt.errors) {
			t.Errorf("#%d: errors mismatch\nhave: %q\nwant: %q", i, detail.Errors, tt.errors)
		}

		if tt.faultErrStr != val.Error() {
			t.Errorf("#%d: mismatch\nhave %#+v\n want: %#+v", i, val.Error(), tt.faultErrStr)
		}
		if !errors.Is(val, ErrSoapFault) {
			t.Errorf("#%d: fault does not unwrap to ErrSoapFault", i)
		}
	}
}
