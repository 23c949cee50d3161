package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	soap "github.com/merchantcapital/comcorp-idx-connector"
	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
)

// ProviderResponse receives provider Submit envelopes. A processed
// envelope is always answered with 200 and a Value of true or false; only
// unreadable input or an internal failure produces a 500 fault.
func (a *API) ProviderResponse(w http.ResponseWriter, r *http.Request) {
	log := observability.GetLogEntry(r)

	accepted, err := a.processSubmit(w, r)
	if err != nil {
		log.WithError(err).Error("Error processing Submit request")
		a.sendFault(w, r, err)
		return
	}

	if err := sendXML(w, http.StatusOK, a.builder.NewResponseEnvelope(accepted)); err != nil {
		log.WithError(err).Warn("Failed to send SOAP response")
	}
}

func (a *API) processSubmit(w http.ResponseWriter, r *http.Request) (accepted bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.config.API.MaxBodyBytes))
	if err != nil {
		return false, errors.Wrap(err, "reading request body")
	}
	doc, err := soap.ParseEnvelope(body)
	if err != nil {
		return false, errors.Wrap(err, "parsing envelope")
	}

	out := a.router.Route(doc.Root())
	fields := logrus.Fields{
		"message_type": out.Type.String(),
		"accepted":     out.Accepted,
	}
	if !out.Accepted {
		fields["rejection"] = string(out.Rejection)
		fields["reason"] = out.Reason
	}
	for k, v := range fields {
		observability.LogEntrySetField(r, k, v)
	}
	return out.Accepted, nil
}

func (a *API) sendFault(w http.ResponseWriter, r *http.Request, cause error) {
	doc := a.builder.NewFaultEnvelope(http.StatusInternalServerError, []string{cause.Error()})
	if err := sendXML(w, http.StatusInternalServerError, doc); err != nil {
		observability.GetLogEntry(r).WithError(err).Warn("Failed to send SOAP fault")
	}
}
