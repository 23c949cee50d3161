package provider

import (
	soap "github.com/merchantcapital/comcorp-idx-connector"
)

// Partner contract namespaces.
const (
	NSAvX            = "http://AvX.Contract/V1"
	NSFica           = "http://FicaX.Contract/V1"
	NSIDX            = "http://IDX.Contract/V1"
	NSIVX            = "http://IVX.Contract/V1"
	NSCommon         = "http://SecureX.Common/V1"
	NSProviderSubmit = "http://SecureX.ProviderSubmitService/V1"
)

// MessageType tags the business message carried in a provider Body.
type MessageType string

const (
	MessageAvX     MessageType = "AvX"
	MessageFica    MessageType = "Fica"
	MessageIDX     MessageType = "IDX"
	MessageIVX     MessageType = "IVX"
	MessageUnknown MessageType = "Unknown"
)

// MessageNames maps each known message type to its exact qualified name.
var MessageNames = map[MessageType]soap.QName{
	MessageAvX:  {Space: NSAvX, Local: "AvXProviderSubmitMessage"},
	MessageFica: {Space: NSFica, Local: "FicaProviderSubmitMessage"},
	MessageIDX:  {Space: NSIDX, Local: "IDXProviderSubmitMessage"},
	MessageIVX:  {Space: NSIVX, Local: "IVXProviderSubmitMessage"},
}

// State is a step of inbound processing.
type State string

const (
	StateReceived         State = "Received"
	StateVerified         State = "Verified"
	StateRouted           State = "Routed"
	StateHandlerSucceeded State = "HandlerSucceeded"
	StateAccepted         State = "Accepted"
	StateRejected         State = "Rejected"
)

// Rejection names why a message was rejected.
type Rejection string

const (
	RejectNone            Rejection = ""
	RejectSecurityInvalid Rejection = "SecurityInvalid"
	RejectBodyMissing     Rejection = "BodyMissing"
	RejectContentMissing  Rejection = "ContentMissing"
	RejectUnknownType     Rejection = "UnknownType"
	RejectHandlerFailed   Rejection = "HandlerFailed"
)

// Summary is the observability data a handler extracted from a message.
type Summary map[string]interface{}

// Outcome is the result of routing one envelope.
type Outcome struct {
	Accepted  bool
	Type      MessageType
	Rejection Rejection
	Reason    string
	Summary   Summary
	// Trail lists the states visited, ending in Accepted or Rejected.
	Trail []State
}

func (o *Outcome) enter(s State) {
	o.Trail = append(o.Trail, s)
}

func (o *Outcome) reject(r Rejection, reason string) Outcome {
	o.Accepted = false
	o.Rejection = r
	o.Reason = reason
	o.enter(StateRejected)
	return *o
}

func (t MessageType) String() string {
	return string(t)
}
