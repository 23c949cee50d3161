package conf

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	soap "github.com/merchantcapital/comcorp-idx-connector"
)

const defaultSubmitAction = "http://IDX.Contract/V1/IConsumerDecryptedService/Submit"

// APIConfiguration holds the HTTP listener settings.
type APIConfiguration struct {
	Host            string
	Port            string        `envconfig:"PORT" default:"8000"`
	ReadTimeout     time.Duration `split_words:"true" default:"120s"`
	WriteTimeout    time.Duration `split_words:"true" default:"120s"`
	MaxBodyBytes    int64         `split_words:"true" default:"10485760"`
	RequestIDHeader string        `envconfig:"REQUEST_ID_HEADER"`
}

func (a *APIConfiguration) Validate() error {
	if a.Port == "" {
		return errors.New("conf: API port is required")
	}
	if a.MaxBodyBytes <= 0 {
		return fmt.Errorf("conf: API max body bytes must be positive, got %d", a.MaxBodyBytes)
	}
	return nil
}

// KeysConfiguration points at the key material files.
type KeysConfiguration struct {
	// PrivateKeyPath is the decryption key text and the request signing key.
	PrivateKeyPath string `split_words:"true" envconfig:"PRIVATE_KEY_FILE" default:"../certs/private_key.pem"`
	// PublicCertPath is the partner certificate: the encryption key text and
	// the certificate inbound signatures are validated against.
	PublicCertPath string `split_words:"true" envconfig:"PUBLIC_KEY_PATH" default:"../certs/comcorp_uat.crt"`
	// SigningCertPath is the PEM certificate paired with PrivateKeyPath and
	// embedded in signed consumer requests.
	SigningCertPath string `split_words:"true" envconfig:"PUBLIC_KEY_FILE" default:"../certs/comcorp.cer"`
}

// validateFor checks that the paths needed by the enabled security features are set.
// The files themselves may be missing at startup.
func (k *KeysConfiguration) validateFor(s *SecurityConfiguration, c *ConsumerConfiguration) error {
	if s.VerifyFully && k.PublicCertPath == "" {
		return errors.New("conf: full verification needs the partner certificate path")
	}
	if s.SignRequests && c.Enabled && (k.PrivateKeyPath == "" || k.SigningCertPath == "") {
		return errors.New("conf: request signing needs the private key and signing certificate paths")
	}
	return nil
}

// SecurityConfiguration controls the WS-Security header on both sides.
type SecurityConfiguration struct {
	// ResponseWindow is the timestamp validity on envelopes returned to the provider.
	ResponseWindow time.Duration `split_words:"true"`
	// RequestWindow is the timestamp validity on consumer requests.
	RequestWindow time.Duration `split_words:"true"`
	// VerifyFully enables signature validation and decryption of inbound
	// envelopes. Off means presence checks only.
	VerifyFully bool `split_words:"true" default:"false"`
	// EmbedToken adds the public key text as a BinarySecurityToken to unsigned envelopes.
	EmbedToken bool `split_words:"true" default:"true"`
	// SignRequests signs the Timestamp and Body of consumer requests.
	SignRequests bool `split_words:"true" default:"true"`
}

func (s *SecurityConfiguration) Validate() error {
	if s.ResponseWindow < 0 || s.RequestWindow < 0 {
		return errors.New("conf: timestamp windows must not be negative")
	}
	return nil
}

// SecureXHeaderConfiguration holds the static parts of the business header
// sent with every consumer request.
type SecureXHeaderConfiguration struct {
	ConsumerBusinessUnit string `split_words:"true"`
	ConsumerReference    string `split_words:"true"`
	ExchangeReference    string `split_words:"true"`
	ProductID            string `envconfig:"PRODUCT_ID"`
	ProviderBusinessUnit string `split_words:"true"`
	ProviderReference    string `split_words:"true"`
	TransactionStatus    string `split_words:"true"`
}

// ConsumerConfiguration configures the outbound Submit call.
type ConsumerConfiguration struct {
	Enabled  bool          `default:"true"`
	Endpoint string        `split_words:"true"`
	Action   string        `split_words:"true"`
	Timeout  time.Duration `default:"60s"`
	Header   SecureXHeaderConfiguration
}

func (c *ConsumerConfiguration) Validate() error {
	if !c.Enabled || c.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("conf: consumer endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("conf: consumer endpoint must be http or https, got %q", c.Endpoint)
	}
	return nil
}

// BasicAuthConfiguration protects the JSON download endpoint.
type BasicAuthConfiguration struct {
	Username string `envconfig:"BASIC_AUTH_USERNAME"`
	Password string `envconfig:"BASIC_AUTH_PASSWORD"`
}

// RateLimitConfiguration limits the JSON download endpoint per client IP.
type RateLimitConfiguration struct {
	// Requests per second per IP. Zero disables the limiter.
	Download float64 `default:"5"`
	Header   string
}

// CORSConfiguration lists the origins allowed to call the JSON endpoint.
type CORSConfiguration struct {
	AllowedOrigins []string `split_words:"true" default:"*"`
	AllowedHeaders []string `split_words:"true"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `default:"info"`
	File   string
	Fields map[string]string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `default:"true"`
	Path    string `default:"/metrics"`
}

// GlobalConfiguration holds all the configuration that applies to the connector.
type GlobalConfiguration struct {
	API       APIConfiguration
	Keys      KeysConfiguration
	Security  SecurityConfiguration
	Consumer  ConsumerConfiguration
	BasicAuth BasicAuthConfiguration
	RateLimit RateLimitConfiguration `split_words:"true"`
	CORS      CORSConfiguration
	Logging   LoggingConfig `envconfig:"LOG"`
	Metrics   MetricsConfig
}

func loadEnvironment(filename string) error {
	var err error
	if filename != "" {
		err = godotenv.Overload(filename)
	} else {
		err = godotenv.Load()
		// handle if .env file does not exist, this is OK
		if os.IsNotExist(err) {
			return nil
		}
	}
	return err
}

// LoadGlobal loads configuration from file and environment variables.
func LoadGlobal(filename string) (*GlobalConfiguration, error) {
	if err := loadEnvironment(filename); err != nil {
		return nil, err
	}

	config := new(GlobalConfiguration)
	if err := envconfig.Process("securex", config); err != nil {
		return nil, err
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyDefaults sets defaults for a GlobalConfiguration
func (config *GlobalConfiguration) ApplyDefaults() error {
	if config.Security.ResponseWindow == 0 {
		config.Security.ResponseWindow = soap.DefaultResponseWindow
	}
	if config.Security.RequestWindow == 0 {
		config.Security.RequestWindow = soap.DefaultRequestWindow
	}
	if config.Consumer.Action == "" {
		config.Consumer.Action = defaultSubmitAction
	}
	if config.Consumer.Timeout == 0 {
		config.Consumer.Timeout = 60 * time.Second
	}
	if config.API.MaxBodyBytes == 0 {
		config.API.MaxBodyBytes = 10 << 20
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	return nil
}

// Validate validates all of configuration.
func (c *GlobalConfiguration) Validate() error {
	validatables := []interface {
		Validate() error
	}{
		&c.API,
		&c.Security,
		&c.Consumer,
	}

	for _, validatable := range validatables {
		if err := validatable.Validate(); err != nil {
			return err
		}
	}

	return c.Keys.validateFor(&c.Security, &c.Consumer)
}
