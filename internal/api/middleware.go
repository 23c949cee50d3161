package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/didip/tollbooth/v5"
	"github.com/didip/tollbooth/v5/limiter"

	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
)

const basicAuthRealm = `Basic realm="Login Required"`

// limitHandler rate limits by the configured header, or by client IP when
// no header is configured.
func (a *API) limitHandler(lmt *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if limitHeader := a.config.RateLimit.Header; limitHeader != "" {
				key = r.Header.Get(limitHeader)
				if key == "" {
					observability.GetLogEntry(r).WithField("header", limitHeader).Warn("request does not have a value for the rate limiting header, rate limiting is not applied")
					next.ServeHTTP(w, r)
					return
				}
			}
			if err := tollbooth.LimitByKeys(lmt, []string{key}); err != nil {
				handleError(tooManyRequestsError("Request rate limit reached"), w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireBasicAuth rejects requests whose credentials do not match the
// configured pair. Without configured credentials every request is rejected.
func (a *API) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !a.checkCredentials(username, password) {
			observability.LogEntrySetField(r, "auth", "failed")
			w.Header().Set("WWW-Authenticate", basicAuthRealm)
			if err := sendJSON(w, http.StatusUnauthorized, errorBody("Authentication required")); err != nil {
				observability.GetLogEntry(r).WithError(err).Warn("Failed to send JSON on ResponseWriter")
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) checkCredentials(username, password string) bool {
	want := a.config.BasicAuth
	if want.Username == "" || want.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(want.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(want.Password)) == 1
	return userOK && passOK
}
