// Copyright 2026 Blindspot Software
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BlindspotSoftware/streambridge/internal/template"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrConfigValidation is wrapped by all configuration validation failures.
var ErrConfigValidation = errors.New("validation error")

//nolint:gochecknoglobals
var validate = validator.New()

// configTemplate is the YAML document an engine is started with. Config
// objects are rendered through it, so that RunWithConfig and RunWithYAML
// end up on the same code path.
const configTemplate = `insecure: ${insecure}
connect_timeout: ${connect_timeout}
idle_timeout: ${idle_timeout}
ca_file: ${ca_file}
user_agent: ${user_agent}
alt_svc_cache: ${alt_svc_cache}
`

// Config configures an engine.
type Config struct {
	// Insecure selects HTTP/2 over cleartext (h2c) instead of TLS.
	Insecure bool `yaml:"insecure"`
	// ConnectTimeout bounds dialing a new connection. Zero means no limit.
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0"`
	// IdleTimeout closes connections that were idle for this long. Zero means never.
	IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string `yaml:"ca_file" validate:"omitempty,file"`
	// UserAgent is added to requests that do not carry one.
	UserAgent string `yaml:"user_agent" validate:"omitempty,printascii"`
	// AltSvcCache enables persisting alt-svc advertisements in the engine's
	// key-value store.
	AltSvcCache bool `yaml:"alt_svc_cache"`
}

// DefaultConfig returns the configuration used for keys a document omits.
func DefaultConfig() *Config {
	return &Config{
		Insecure:       false,
		ConnectTimeout: 30 * time.Second,
		IdleTimeout:    5 * time.Minute,
		UserAgent:      "streambridge",
	}
}

// configAlias is used when parsing YAML to avoid recursion.
type configAlias Config

// UnmarshalYAML decodes a Config and validates it.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	alias := configAlias(*c)
	if err := node.Decode(&alias); err != nil {
		return err
	}

	cfg := Config(alias)
	if err := wrapValidatorErrors(validate.Struct(&cfg), node); err != nil {
		return err
	}

	*c = cfg

	return nil
}

// ParseConfig parses engine configuration YAML on top of DefaultConfig.
func ParseConfig(text string) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(text), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration without a YAML document at hand.
func (c *Config) Validate() error {
	return wrapValidatorErrors(validate.Struct(c), nil)
}

// Render produces the YAML document for c.
func (c *Config) Render() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	return template.Parse(configTemplate).Expand(map[string]string{
		"insecure":        strconv.FormatBool(c.Insecure),
		"connect_timeout": c.ConnectTimeout.String(),
		"idle_timeout":    c.IdleTimeout.String(),
		"ca_file":         strconv.Quote(c.CAFile),
		"user_agent":      strconv.Quote(c.UserAgent),
		"alt_svc_cache":   strconv.FormatBool(c.AltSvcCache),
	})
}

func wrapValidatorErrors(err error, node *yaml.Node) error {
	if err == nil {
		return nil
	}

	var valErrors validator.ValidationErrors
	if !errors.As(err, &valErrors) {
		// not of type ValidationErrors
		return err
	}

	errMsg := make([]string, 0, len(valErrors))

	for _, valErr := range valErrors {
		if node != nil {
			errMsg = append(errMsg,
				fmt.Sprintf("yaml: line %d: Field validation for '%s' failed on the '%s' tag",
					node.Line, valErr.Field(), valErr.Tag()))
		} else {
			errMsg = append(errMsg,
				fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", valErr.Field(), valErr.Tag()))
		}
	}

	return fmt.Errorf("%w:\n%s", ErrConfigValidation, strings.Join(errMsg, "\n"))
}
