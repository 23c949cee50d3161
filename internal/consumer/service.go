package consumer

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	soap "github.com/merchantcapital/comcorp-idx-connector"
	"github.com/merchantcapital/comcorp-idx-connector/internal/conf"
	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
)

// ErrNotConfigured is returned by Submit when no endpoint is configured.
var ErrNotConfigured = errors.New("consumer endpoint not configured")

// Result is the outcome of a Submit call.
type Result struct {
	Data map[string]string `json:"data"`
	// Debug holds the indented request and response envelopes.
	Debug map[string]string `json:"debug"`
}

// Service submits statement download requests to the partner.
type Service struct {
	client  *soap.Client
	action  string
	header  conf.SecureXHeaderConfiguration
	log     logrus.FieldLogger
	metrics *observability.Metrics
	// signErr is set when signing is enabled but the key pair failed to load.
	signErr error
}

// NewService builds the Submit client: a request-window security header,
// the signing plugin when enabled, then the encrypting plugin.
func NewService(config *conf.GlobalConfiguration, keys *soap.KeyMaterial, log logrus.FieldLogger, metrics *observability.Metrics) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{
		action:  config.Consumer.Action,
		header:  config.Consumer.Header,
		log:     log.WithField("component", "consumer"),
		metrics: metrics,
	}
	if !config.Consumer.Enabled || config.Consumer.Endpoint == "" {
		return s
	}

	sign := config.Security.SignRequests
	var plugins []soap.Plugin
	if sign {
		auth, err := soap.NewWSSEAuthInfo(config.Keys.SigningCertPath, config.Keys.PrivateKeyPath)
		if err != nil {
			s.log.WithError(err).WithField("path", config.Keys.SigningCertPath).Warn("Unable to load the request signing key pair, Submit is unavailable")
			s.signErr = err
		} else {
			plugins = append(plugins, auth)
		}
	}
	plugins = append(plugins, soap.NewEncryptPlugin(soap.NewLegacyEnvelopeCipher(keys)))

	// A signed request carries the signing certificate as its token.
	header := soap.NewSecurityHeaderBuilder(config.Security.RequestWindow, keys, config.Security.EmbedToken && !sign)
	s.client = soap.NewClient(config.Consumer.Endpoint,
		soap.WithHeaderBuilders(header),
		soap.WithPlugins(plugins...),
	)
	// Transport stays nil so the default transport is used.
	s.client.SettHTTPClient(&http.Client{Timeout: config.Consumer.Timeout})
	return s
}

// Ready reports whether the outbound client is configured.
func (s *Service) Ready() bool {
	return s != nil && s.client != nil
}

// Header returns the SecureX business header for a request from initiatingIP.
func (s *Service) Header(initiatingIP string) *SecureXHeader {
	return &SecureXHeader{
		ConsumerBusinessUnit: s.header.ConsumerBusinessUnit,
		ConsumerReference:    s.header.ConsumerReference,
		ExchangeReference:    s.header.ExchangeReference,
		InitiatingIP:         initiatingIP,
		ProductID:            s.header.ProductID,
		ProviderBusinessUnit: s.header.ProviderBusinessUnit,
		ProviderReference:    s.header.ProviderReference,
		TransactionStatus:    s.header.TransactionStatus,
	}
}

// Submit sends req to the partner and returns the flattened response.
func (s *Service) Submit(ctx context.Context, req DownloadRequest, initiatingIP string) (*Result, error) {
	if !s.Ready() {
		return nil, ErrNotConfigured
	}
	if s.signErr != nil {
		return nil, errors.Wrap(s.signErr, "loading request signing key pair")
	}

	history := soap.NewHistoryPlugin()
	var resp SubmitResponse
	err := s.client.Do(ctx, s.action, NewSubmitMessage(req), &resp, []any{s.Header(initiatingIP)}, history)
	s.metrics.ObserveSubmission(err)

	debug := map[string]string{}
	if x := history.LastSent(); x != "" {
		debug["request_xml"] = x
	}
	if x := history.LastReceived(); x != "" {
		debug["response_xml"] = x
	}

	if err != nil {
		s.log.WithError(err).Error("Submit failed")
		return &Result{Debug: debug}, errors.Wrap(err, "submit")
	}

	s.log.WithField("account_number", req.AccountNumber).Info("Submit succeeded")
	return &Result{Data: resp.Data(), Debug: debug}, nil
}
