// Package config loads the issuer configuration from defaults, an optional
// YAML file, VCI_ environment variables and command line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/labstack/gommon/bytes"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/pilacorp/go-vc-issuer/credential/common/proof"
	"github.com/pilacorp/go-vc-issuer/credential/common/rdf"
	"github.com/pilacorp/go-vc-issuer/credential/common/urdna2015"
)

const (
	defaultPrefix            = "VCI_"
	defaultDelimiter         = "."
	configValueListSeparator = ","
	configFileFlag           = "configfile"
	defaultConfigFile        = "vc-issuer.yaml"
)

// Config holds every setting of the issuer.
type Config struct {
	Verbosity        string           `koanf:"verbosity"`
	LoggerFormat     string           `koanf:"loggerformat"`
	HTTP             HTTPConfig       `koanf:"http"`
	Key              KeyConfig        `koanf:"key"`
	Proof            ProofConfig      `koanf:"proof"`
	Canonicalization urdna2015.Budget `koanf:"canonicalization"`
	JSONLD           rdf.LoaderConfig `koanf:"jsonld"`
	DID              DIDConfig        `koanf:"did"`
	configMap        *koanf.Koanf
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	// Address is the host:port the server listens on.
	Address string `koanf:"address"`
	// BodyLimit caps request bodies, in echo's size notation (e.g. 1M).
	BodyLimit string `koanf:"bodylimit"`
}

// KeyConfig points to the private key file.
type KeyConfig struct {
	File string `koanf:"file"`
}

// ProofConfig holds the proof defaults applied when a request does not set them.
type ProofConfig struct {
	Type    string `koanf:"type"`
	Purpose string `koanf:"purpose"`
}

// DIDConfig configures the optional verification method check.
type DIDConfig struct {
	// ResolverURL is the base URL of a DID resolver. Empty disables the check.
	ResolverURL string `koanf:"resolverurl"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Verbosity:    "info",
		LoggerFormat: "text",
		HTTP: HTTPConfig{
			Address:   ":2021",
			BodyLimit: "1M",
		},
		Key: KeyConfig{File: "privkey.pem"},
		Proof: ProofConfig{
			Type:    proof.JsonWebSignature2020,
			Purpose: proof.AssertionMethod,
		},
		Canonicalization: urdna2015.DefaultBudget(),
		JSONLD:           rdf.DefaultLoaderConfig(),
	}
}

// NewConfig creates a config holding the defaults.
func NewConfig() *Config {
	cfg := DefaultConfig()
	cfg.configMap = koanf.New(defaultDelimiter)
	return &cfg
}

// loadConfigMap populates the configMap with values from the defaults, config file, environment and pFlags
func (c *Config) loadConfigMap(flags *pflag.FlagSet) error {
	defaults := DefaultConfig()
	if err := c.configMap.Load(structs.ProviderWithDelim(&defaults, "koanf", defaultDelimiter), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := loadFromFile(c.configMap, resolveConfigFilePath(flags)); err != nil {
		return err
	}
	if err := loadFromEnv(c.configMap); err != nil {
		return err
	}
	// only flags that were set on the command line override, the defaults were loaded first
	return c.configMap.Load(posflag.Provider(flags, defaultDelimiter, c.configMap), nil)
}

// Load loads the config, following the load order of defaults, config file, env vars and then commandline params.
// It also configures the logrus standard logger.
func (c *Config) Load(flags *pflag.FlagSet) error {
	if err := c.loadConfigMap(flags); err != nil {
		return err
	}
	if err := c.configMap.UnmarshalWithConf("", c, koanf.UnmarshalConf{
		FlatPaths: false,
	}); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	lvl, err := logrus.ParseLevel(c.Verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	switch c.LoggerFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

// Validate checks values that cannot be expressed by their type.
func (c *Config) Validate() error {
	if c.LoggerFormat != "text" && c.LoggerFormat != "json" {
		return fmt.Errorf("invalid formatter: '%s'", c.LoggerFormat)
	}
	if c.HTTP.BodyLimit != "" {
		if _, err := bytes.Parse(c.HTTP.BodyLimit); err != nil {
			return fmt.Errorf("invalid http.bodylimit '%s': %w", c.HTTP.BodyLimit, err)
		}
	}
	if c.Key.File == "" {
		return errors.New("key.file must be set")
	}
	if !slices.Contains(proof.SupportedTypes(), c.Proof.Type) {
		return fmt.Errorf("invalid proof.type '%s', supported: %s", c.Proof.Type, strings.Join(proof.SupportedTypes(), ", "))
	}
	if c.Proof.Purpose == "" {
		return errors.New("proof.purpose must be set")
	}
	if c.Canonicalization.MaxWork < 0 || c.Canonicalization.Timeout < 0 {
		return errors.New("canonicalization limits must not be negative")
	}
	if c.JSONLD.FetchTimeout < 0 {
		return errors.New("jsonld.fetchtimeout must not be negative")
	}
	return nil
}

// PrintConfig returns the current config in string form
func (c *Config) PrintConfig() string {
	return c.configMap.Sprint()
}

// resolveConfigFilePath resolves the path of the config file using the following sources:
// 1. commandline params (using the given flags)
// 2. environment vars,
// 3. default location.
func resolveConfigFilePath(flags *pflag.FlagSet) string {
	k := koanf.New(defaultDelimiter)

	e := env.Provider(defaultPrefix, defaultDelimiter, envKey)
	// can't return error
	_ = k.Load(e, nil)

	// without a parser, no error can be returned
	_ = k.Load(posflag.Provider(flags, defaultDelimiter, k), nil)

	return k.String(configFileFlag)
}

func loadFromFile(configMap *koanf.Koanf, filepath string) error {
	if filepath == "" {
		return nil
	}
	if err := configMap.Load(file.Provider(filepath), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load config file %s: %w", filepath, err)
		}
	}
	return nil
}

func loadFromEnv(configMap *koanf.Koanf) error {
	e := env.ProviderWithValue(defaultPrefix, defaultDelimiter, func(rawKey string, rawValue string) (string, interface{}) {
		key := envKey(rawKey)

		// Support multiple values separated by a comma
		if strings.Contains(rawValue, configValueListSeparator) {
			values := strings.Split(rawValue, configValueListSeparator)
			for i, value := range values {
				values[i] = strings.TrimSpace(value)
			}
			return key, values
		}
		return key, rawValue
	})
	// errors can't occur for this provider
	return configMap.Load(e, nil)
}

func envKey(rawKey string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(rawKey, defaultPrefix)), "_", defaultDelimiter, -1)
}

// FlagSet returns the flags of the issuer.
func FlagSet() *pflag.FlagSet {
	defs := DefaultConfig()
	flagSet := pflag.NewFlagSet("vc-issuer", pflag.ContinueOnError)
	flagSet.String(configFileFlag, defaultConfigFile, "Config file (YAML)")
	flagSet.String("verbosity", defs.Verbosity, "Log level (trace, debug, info, warn, error)")
	flagSet.String("loggerformat", defs.LoggerFormat, "Log format (text, json)")
	flagSet.String("http.address", defs.HTTP.Address, "Address and port the server will be listening to")
	flagSet.String("http.bodylimit", defs.HTTP.BodyLimit, "Maximum request body size, e.g. 512K or 1M")
	flagSet.String("key.file", defs.Key.File, "PEM (or hex secp256k1) file holding the signing key")
	flagSet.String("proof.type", defs.Proof.Type, fmt.Sprintf("Default proof type (%s)", strings.Join(proof.SupportedTypes(), ", ")))
	flagSet.String("proof.purpose", defs.Proof.Purpose, "Default proof purpose")
	flagSet.Duration("canonicalization.timeout", defs.Canonicalization.Timeout, "Maximum time spent canonicalizing one document")
	flagSet.Int("canonicalization.maxwork", defs.Canonicalization.MaxWork, "Maximum number of blank node tie-break steps per document")
	flagSet.Bool("jsonld.allowunlisted", defs.JSONLD.AllowUnlisted, "Allow fetching any remote JSON-LD context")
	flagSet.StringSlice("jsonld.remoteallowlist", defs.JSONLD.RemoteAllowList, "Remote JSON-LD context URLs that may be fetched")
	flagSet.Duration("jsonld.fetchtimeout", defs.JSONLD.FetchTimeout, "Maximum time spent fetching one remote JSON-LD context")
	flagSet.String("did.resolverurl", defs.DID.ResolverURL, "DID resolver base URL; when set the key must match the verification method")
	return flagSet
}
