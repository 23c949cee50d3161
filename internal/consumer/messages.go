package consumer

import (
	"strings"

	"github.com/m29h/xml"
)

// Namespaces of the consumer contract.
const (
	NSIDX    = "http://IDX.Contract/V1"
	NSCommon = "http://SecureX.Common/V1"
)

// DownloadRequest is the JSON payload of a statement download request.
type DownloadRequest struct {
	AccountNumber    string           `json:"AccountNumber"`
	AccountType      string           `json:"AccountType"`
	BranchCode       string           `json:"BranchCode"`
	DateFrom         string           `json:"DateFrom"`
	DateTo           string           `json:"DateTo"`
	EmailAddress     string           `json:"EmailAddress"`
	JointAccount     string           `json:"JointAccount"`
	PhysicalEntities []PhysicalEntity `json:"PhysicalEntities"`
}

// PhysicalEntity is an account holder named in a DownloadRequest.
type PhysicalEntity struct {
	IdentificationNo   string `json:"IdentificationNo"`
	IdentificationType string `json:"IdentificationType"`
	Initials           string `json:"Initials"`
	Name               string `json:"Name"`
}

// SecureXHeader is the business header sent alongside every Submit.
type SecureXHeader struct {
	XMLName              xml.Name `xml:"http://SecureX.Common/V1 Header"`
	ConsumerBusinessUnit string   `xml:"ConsumerBusinessUnit"`
	ConsumerReference    string   `xml:"ConsumerReference"`
	ExchangeReference    string   `xml:"ExchangeReference"`
	InitiatingIP         string   `xml:"InitiatingIP"`
	ProductID            string   `xml:"ProductId"`
	ProviderBusinessUnit string   `xml:"ProviderBusinessUnit"`
	ProviderReference    string   `xml:"ProviderReference"`
	TransactionStatus    string   `xml:"TransactionStatus"`
}

// Entity is the wire form of a PhysicalEntity.
type Entity struct {
	IdentificationNo   string `xml:"IdentificationNo"`
	IdentificationType string `xml:"IdentificationType"`
	Initials           string `xml:"Initials"`
	Name               string `xml:"Name"`
}

// IDXConsumerSubmitMessage is the Submit body.
type IDXConsumerSubmitMessage struct {
	XMLName          xml.Name `xml:"http://IDX.Contract/V1 IDXConsumerSubmitMessage"`
	AccountNumber    string   `xml:"AccountNumber"`
	AccountType      string   `xml:"AccountType"`
	BranchCode       string   `xml:"BranchCode"`
	DateFrom         string   `xml:"DateFrom"`
	DateTo           string   `xml:"DateTo"`
	EmailAddress     string   `xml:"EmailAddress"`
	JointAccount     string   `xml:"JointAccount"`
	PhysicalEntities []Entity `xml:"PhysicalEntities>Entity"`
}

// NewSubmitMessage maps a download request onto the Submit body.
func NewSubmitMessage(r DownloadRequest) *IDXConsumerSubmitMessage {
	msg := &IDXConsumerSubmitMessage{
		AccountNumber: r.AccountNumber,
		AccountType:   r.AccountType,
		BranchCode:    r.BranchCode,
		DateFrom:      r.DateFrom,
		DateTo:        r.DateTo,
		EmailAddress:  r.EmailAddress,
		JointAccount:  r.JointAccount,
	}
	for _, e := range r.PhysicalEntities {
		msg.PhysicalEntities = append(msg.PhysicalEntities, Entity(e))
	}
	return msg
}

// SubmitResponse captures whatever element the partner returns in the Body.
type SubmitResponse struct {
	XMLName xml.Name
	Text    string          `xml:",chardata"`
	Fields  []responseField `xml:",any"`
}

type responseField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Data flattens the response: one entry per child element, or a single
// "result" entry when the response is a simple value.
func (r *SubmitResponse) Data() map[string]string {
	data := map[string]string{}
	for _, f := range r.Fields {
		data[f.XMLName.Local] = strings.TrimSpace(f.Value)
	}
	if len(data) == 0 {
		data["result"] = strings.TrimSpace(r.Text)
	}
	return data
}
