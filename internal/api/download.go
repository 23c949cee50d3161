package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/merchantcapital/comcorp-idx-connector/internal/consumer"
	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
)

const noPayloadMessage = "No JSON payload provided"

// DownloadRequest submits a statement download request to the partner.
func (a *API) DownloadRequest(w http.ResponseWriter, r *http.Request) error {
	req, err := a.readDownloadRequest(w, r)
	if err != nil {
		return err
	}

	ip := clientIP(r)
	observability.LogEntrySetField(r, "initiating_ip", ip)

	res, err := a.consumer.Submit(r.Context(), *req, ip)
	if err != nil {
		return internalServerError("%s", err.Error()).WithInternalError(err)
	}

	return sendJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   res.Data,
		"debug":  res.Debug,
	})
}

// readDownloadRequest rejects bodies that are empty, not JSON or an empty object.
func (a *API) readDownloadRequest(w http.ResponseWriter, r *http.Request) (*consumer.DownloadRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.config.API.MaxBodyBytes))
	if err != nil {
		return nil, badRequestError(noPayloadMessage).WithInternalError(err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return nil, badRequestError(noPayloadMessage).WithInternalError(err)
	}

	req := new(consumer.DownloadRequest)
	if err := json.Unmarshal(body, req); err != nil {
		return nil, badRequestError(noPayloadMessage).WithInternalError(err)
	}
	return req, nil
}
