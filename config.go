// Copyright The JmxTrans Authors
// SPDX-License-Identifier: MIT

package elasticwriter // import "github.com/yxydde/jmxtrans"

import (
	"errors"

	"github.com/mitchellh/mapstructure"
)

// defaultRootPrefix value is used as the index name prefix when
// Config.RootPrefix is not set.
const defaultRootPrefix = "jmxtrans"

// Config defines configuration for the Elasticsearch output writer.
type Config struct {
	// ConnectionURL is the base URL of the Elasticsearch backend, without
	// the bulk endpoint suffix. Required.
	ConnectionURL string `mapstructure:"connectionUrl"`

	// RootPrefix is prepended to the current date to form the destination
	// index name. If not specified, the default value `jmxtrans` will be
	// used.
	RootPrefix string `mapstructure:"rootPrefix"`

	// Username and Password configure basic authentication on the backend
	// connection.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Debug enables payload and response logging at debug level.
	Debug bool `mapstructure:"debug"`
}

var errConfigNoConnectionURL = errors.New("connectionUrl must be specified")

// Validate validates the writer configuration.
func (cfg *Config) Validate() error {
	if cfg.ConnectionURL == "" {
		return errConfigNoConnectionURL
	}
	return nil
}

func withDefaultConfig(fns ...func(*Config)) *Config {
	cfg := &Config{
		RootPrefix: defaultRootPrefix,
	}
	for _, fn := range fns {
		fn(cfg)
	}
	return cfg
}

// FromSettings decodes a generic settings map, as delivered by the host's
// configuration loader, into a Config. Keys not recognized by the writer are
// ignored; defaults are applied for options left unset.
func FromSettings(settings map[string]any) (*Config, error) {
	cfg := withDefaultConfig()
	if err := mapstructure.Decode(settings, cfg); err != nil {
		return nil, err
	}
	if cfg.RootPrefix == "" {
		cfg.RootPrefix = defaultRootPrefix
	}
	return cfg, nil
}
