package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
)

const soapContentType = "application/soap+xml; charset=utf-8"

// HTTPError is an error with a status code, rendered as the JSON error body.
type HTTPError struct {
	Code    int
	Message string
	// InternalError is logged, never sent.
	InternalError error
}

func (e *HTTPError) Error() string {
	if e.InternalError != nil {
		return e.Message + ": " + e.InternalError.Error()
	}
	return e.Message
}

func (e *HTTPError) Cause() error {
	return e.InternalError
}

// WithInternalError attaches the underlying error for logging.
func (e *HTTPError) WithInternalError(err error) *HTTPError {
	e.InternalError = err
	return e
}

func httpError(code int, fmtString string, args ...interface{}) *HTTPError {
	return &HTTPError{Code: code, Message: fmt.Sprintf(fmtString, args...)}
}

func badRequestError(fmtString string, args ...interface{}) *HTTPError {
	return httpError(http.StatusBadRequest, fmtString, args...)
}

func internalServerError(fmtString string, args ...interface{}) *HTTPError {
	return httpError(http.StatusInternalServerError, fmtString, args...)
}

func tooManyRequestsError(fmtString string, args ...interface{}) *HTTPError {
	return httpError(http.StatusTooManyRequests, fmtString, args...)
}

type apiHandler func(w http.ResponseWriter, r *http.Request) error

func handler(fn apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			handleError(err, w, r)
		}
	}
}

func handleError(err error, w http.ResponseWriter, r *http.Request) {
	log := observability.GetLogEntry(r)

	var e *HTTPError
	if !errors.As(err, &e) {
		e = internalServerError("Unexpected error").WithInternalError(err)
	}
	if e.Code >= http.StatusInternalServerError {
		log.WithError(err).Error(e.Message)
	} else {
		log.WithError(err).Info(e.Message)
	}

	if jsonErr := sendJSON(w, e.Code, errorBody(e.Message)); jsonErr != nil {
		log.WithError(jsonErr).Warn("Failed to send JSON on ResponseWriter")
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"status": "error", "message": message}
}

func sendJSON(w http.ResponseWriter, status int, obj interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	b, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Error encoding json response: %v", obj))
	}
	w.WriteHeader(status)
	_, err = w.Write(b)
	return err
}

func sendXML(w http.ResponseWriter, status int, doc *etree.Document) error {
	b, err := doc.WriteToBytes()
	if err != nil {
		return errors.Wrap(err, "Error encoding SOAP response")
	}
	w.Header().Set("Content-Type", soapContentType)
	w.WriteHeader(status)
	_, err = w.Write(b)
	return err
}

// clientIP returns the host part of the remote address, which the xff
// middleware has already replaced with the forwarded client address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
