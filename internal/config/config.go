// Package config loads the application configuration from, in increasing
// priority: built-in defaults, a JSON config file, environment variables
// and command line flags.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config carries every runtime setting of the service.
type Config struct {
	RunAddr                    string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	ShortURLBase               string        `env:"BASE_URL" json:"base_url" validate:"url"`
	LogLevel                   string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	AuthCookieName             string        `env:"AUTH_COOKIE_NAME" json:"auth_cookie_name" validate:"required"`
	AuthCookieSigningSecretKey string        `env:"AUTH_COOKIE_SIGNING_SECRET_KEY" json:"auth_cookie_signing_secret_key" validate:"base64url"`
	SessionTTL                 time.Duration `env:"SESSION_TTL" json:"-"`
	ShortCodeLength            int           `env:"SHORT_CODE_LENGTH" json:"short_code_length" validate:"gte=1,lte=64"`
	ShortCodeMaxTries          int           `env:"SHORT_CODE_MAX_TRIES" json:"short_code_max_tries" validate:"gte=1"`
	BcryptCost                 int           `env:"BCRYPT_COST" json:"bcrypt_cost"`
	TrustedSubnet              string        `env:"TRUSTED_SUBNET" json:"trusted_subnet"`
	ConfigFile                 string        `env:"CONFIG" json:"-"`
}

var defaultConfig = Config{
	RunAddr:      ":8080",
	ShortURLBase: "http://localhost:8080",
	LogLevel:     "info",
	// The default signing key is for local development only; production
	// deployments must supply their own via AUTH_COOKIE_SIGNING_SECRET_KEY.
	AuthCookieSigningSecretKey: "c2VjcmV0LWtleS1mb3ItbG9jYWwtZGV2ZWxvcG1lbnQ=",
	AuthCookieName:             "tinylink_session",
	SessionTTL:                 24 * time.Hour,
	ShortCodeLength:            6,
	ShortCodeMaxTries:          10,
	BcryptCost:                 10,
	TrustedSubnet:              "",
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[fieldLevel.Field().String()]
}

func (c *Config) validate() error {
	validate := validator.New()

	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption customizes New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing disables command line flag parsing, which is
// needed when the config is constructed inside `go test`.
func WithDisableFlagsParsing(disable bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disable
	}
}

func applyDefaults(target *Config, defaults Config) {
	*target = defaults
}

func applyJSONFile(target *Config, fileName string) error {
	if fileName == "" {
		return nil
	}
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

func applyNonZero(target *Config, overrides Config) {
	if overrides.RunAddr != "" {
		target.RunAddr = overrides.RunAddr
	}
	if overrides.ShortURLBase != "" {
		target.ShortURLBase = overrides.ShortURLBase
	}
	if overrides.LogLevel != "" {
		target.LogLevel = overrides.LogLevel
	}
	if overrides.AuthCookieName != "" {
		target.AuthCookieName = overrides.AuthCookieName
	}
	if overrides.AuthCookieSigningSecretKey != "" {
		target.AuthCookieSigningSecretKey = overrides.AuthCookieSigningSecretKey
	}
	if overrides.SessionTTL != 0 {
		target.SessionTTL = overrides.SessionTTL
	}
	if overrides.ShortCodeLength != 0 {
		target.ShortCodeLength = overrides.ShortCodeLength
	}
	if overrides.ShortCodeMaxTries != 0 {
		target.ShortCodeMaxTries = overrides.ShortCodeMaxTries
	}
	if overrides.BcryptCost != 0 {
		target.BcryptCost = overrides.BcryptCost
	}
	if overrides.TrustedSubnet != "" {
		target.TrustedSubnet = overrides.TrustedSubnet
	}
}

// New builds the effective configuration. Priority, lowest to highest:
// defaults, JSON config file, environment variables, command line flags.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	configFile := os.Getenv("CONFIG")

	var fromFlags Config
	if !options.disableFlagsParsing {
		flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
		flags.StringVar(&fromFlags.RunAddr, "a", "", "address and port to run server")
		flags.StringVar(&fromFlags.ShortURLBase, "b", "", "base address of the resulting shortened URL")
		flags.StringVar(&fromFlags.LogLevel, "l", "", "logger level")
		flags.IntVar(&fromFlags.ShortCodeLength, "s", 0, "length of generated short codes")
		flags.StringVar(&fromFlags.TrustedSubnet, "t", "", "trusted subnet for internal endpoints, CIDR notation")
		flags.StringVar(&fromFlags.ConfigFile, "c", "", "path to a JSON config file")
		if err := flags.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
		if fromFlags.ConfigFile != "" {
			configFile = fromFlags.ConfigFile
		}
	}

	if err := applyJSONFile(values, configFile); err != nil {
		return nil, err
	}

	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, err
	}
	applyNonZero(values, fromEnv)

	applyNonZero(values, fromFlags)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
