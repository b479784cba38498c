package causality

import (
	"os"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. CAUSALITY_HMAC_SECRET
const EnvPrefix = "CAUSALITY"

// Settings is the file and environment backed Config implementation
type Settings struct {
	HMACSecret       string        `yaml:"hmac_secret" envconfig:"HMAC_SECRET"`
	PreviousSecrets  []string      `yaml:"previous_secrets" envconfig:"PREVIOUS_SECRETS"`
	Audience         string        `yaml:"audience" envconfig:"AUDIENCE"`
	DirectoryURL     string        `yaml:"directory_url" envconfig:"DIRECTORY_URL"`
	DirectoryTimeout time.Duration `yaml:"directory_timeout" envconfig:"DIRECTORY_TIMEOUT"`
	Addr             string        `yaml:"addr" envconfig:"ADDR"`
	TokenPath        string        `yaml:"token_path" envconfig:"TOKEN_PATH"`
}

var _ Config = (*Settings)(nil)

// DefaultSettings returns settings with every optional field populated
func DefaultSettings() *Settings {
	return &Settings{
		Audience:         DefaultAudience,
		DirectoryURL:     "http://localhost:3000",
		DirectoryTimeout: 5 * time.Second,
		Addr:             ":8080",
		TokenPath:        "/causality_jwt",
	}
}

// LoadSettings reads an optional YAML file, then applies environment
// overrides. An empty path skips the file.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to read config file").
				WithMetadata(map[string]any{"path": path})
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to read environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required settings
func (s *Settings) Validate() error {
	if s.HMACSecret == "" {
		return errors.New("hmac secret must be provided", errors.CategoryBadInput).
			WithTextCode("MISSING_HMAC_SECRET")
	}
	if s.DirectoryTimeout < 0 {
		return errors.New("directory timeout must be non-negative", errors.CategoryBadInput)
	}
	return nil
}

func (s *Settings) GetSigningKey() string {
	return s.HMACSecret
}

func (s *Settings) GetPreviousSigningKeys() []string {
	return s.PreviousSecrets
}

func (s *Settings) GetAudience() string {
	if s.Audience == "" {
		return DefaultAudience
	}
	return s.Audience
}

func (s *Settings) GetDirectoryURL() string {
	return s.DirectoryURL
}

func (s *Settings) GetDirectoryTimeout() time.Duration {
	return s.DirectoryTimeout
}

func (s *Settings) GetAddr() string {
	return s.Addr
}

func (s *Settings) GetTokenPath() string {
	if s.TokenPath == "" {
		return "/causality_jwt"
	}
	return s.TokenPath
}

// NewTokenServiceFromConfig builds a TokenService signing with the current
// secret and accepting the previous ones.
func NewTokenServiceFromConfig(cfg Config, logger Logger) TokenService {
	keys := make([][]byte, 0, len(cfg.GetPreviousSigningKeys()))
	for _, key := range cfg.GetPreviousSigningKeys() {
		keys = append(keys, []byte(key))
	}
	return NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetAudience(), logger, WithVerificationKeys(keys...))
}
