package cmd

import (
	"github.com/sirupsen/logrus"

	soap "github.com/merchantcapital/comcorp-idx-connector"
	"github.com/merchantcapital/comcorp-idx-connector/internal/conf"
	"github.com/merchantcapital/comcorp-idx-connector/internal/consumer"
	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
	"github.com/merchantcapital/comcorp-idx-connector/internal/provider"
)

// components are the long-lived collaborators shared by every request.
type components struct {
	keys     *soap.KeyMaterial
	metrics  *observability.Metrics
	verifier *soap.Verifier
	router   *provider.Router
	builder  *provider.ResponseBuilder
	consumer *consumer.Service
}

func newComponents(config *conf.GlobalConfiguration, log *logrus.Logger) *components {
	c := &components{
		keys:    soap.LoadKeyMaterial(config.Keys.PrivateKeyPath, config.Keys.PublicCertPath, log),
		metrics: observability.NewMetrics(),
	}

	c.verifier = soap.NewVerifier(c.keys, config.Security.VerifyFully, soap.WithLogger(log))
	c.router = provider.NewRouter(c.verifier,
		provider.WithRouterLogger(log.WithField("component", "router")),
		provider.WithMetrics(c.metrics),
	)
	c.builder = provider.NewResponseBuilder(
		soap.NewSecurityHeaderBuilder(config.Security.ResponseWindow, c.keys, config.Security.EmbedToken),
	)
	c.consumer = consumer.NewService(config, c.keys, log, c.metrics)
	return c
}
