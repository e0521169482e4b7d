// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/luxfi/ids"
)

const (
	HTTPHostKey        = "http-host"
	HTTPPortKey        = "http-port"
	ConfigFileKey      = "config-file"
	IssuerKey          = "issuer"
	DBDirKey           = "db-dir"
	AllowedOriginsKey  = "http-allowed-origins"
	ShutdownTimeoutKey = "http-shutdown-timeout"
	ReadTimeoutKey     = "http-read-timeout"
	WriteTimeoutKey    = "http-write-timeout"
	IdleTimeoutKey     = "http-idle-timeout"
)

var (
	errInvalidPort = errors.New("invalid http port")
	errBadIssuer   = errors.New("invalid issuer")
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(HTTPHostKey, "127.0.0.1", "Address of the HTTP server")
	flags.Uint16(HTTPPortKey, 9650, "Port of the HTTP server")
	flags.String(ConfigFileKey, "", "JSON file holding the VM configuration. Defaults are used when empty")
	flags.String(IssuerKey, "", "Address allowed to mint and lock collateral. Overrides the issuer of the config file")
	flags.String(DBDirKey, "", "Directory of the on-disk database. The state is kept in memory when empty")
	flags.StringSlice(AllowedOriginsKey, []string{"*"}, "Origins allowed to make cross-origin requests")
	flags.Duration(ShutdownTimeoutKey, 10*time.Second, "Maximum duration to wait for in-flight requests on shutdown")
	flags.Duration(ReadTimeoutKey, 30*time.Second, "Maximum duration for reading a request")
	flags.Duration(WriteTimeoutKey, 30*time.Second, "Maximum duration before timing out writes of the response")
	flags.Duration(IdleTimeoutKey, 120*time.Second, "Maximum duration to wait for the next request with keep-alives enabled")
}

type Config struct {
	HTTPHost        string
	HTTPPort        uint16
	ConfigBytes     []byte
	DBDir           string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

func ParseFlags(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	host, err := flags.GetString(HTTPHostKey)
	if err != nil {
		return nil, err
	}

	port, err := flags.GetUint16(HTTPPortKey)
	if err != nil {
		return nil, err
	}
	if port == 0 {
		return nil, errInvalidPort
	}

	configFile, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}

	var configBytes []byte
	if configFile != "" {
		configBytes, err = os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}

	issuerStr, err := flags.GetString(IssuerKey)
	if err != nil {
		return nil, err
	}
	if issuerStr != "" {
		issuer, err := ids.ShortFromString(issuerStr)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", errBadIssuer, issuerStr, err)
		}
		configBytes, err = withIssuer(configBytes, issuer)
		if err != nil {
			return nil, err
		}
	}

	dbDir, err := flags.GetString(DBDirKey)
	if err != nil {
		return nil, err
	}

	allowedOrigins, err := flags.GetStringSlice(AllowedOriginsKey)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := flags.GetDuration(ShutdownTimeoutKey)
	if err != nil {
		return nil, err
	}

	readTimeout, err := flags.GetDuration(ReadTimeoutKey)
	if err != nil {
		return nil, err
	}

	writeTimeout, err := flags.GetDuration(WriteTimeoutKey)
	if err != nil {
		return nil, err
	}

	idleTimeout, err := flags.GetDuration(IdleTimeoutKey)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPHost:        host,
		HTTPPort:        port,
		ConfigBytes:     configBytes,
		DBDir:           dbDir,
		AllowedOrigins:  allowedOrigins,
		ShutdownTimeout: shutdownTimeout,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
	}, nil
}

// withIssuer returns [configBytes] with its issuer replaced by [issuer].
func withIssuer(configBytes []byte, issuer ids.ShortID) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	issuerBytes, err := json.Marshal(issuer)
	if err != nil {
		return nil, err
	}
	fields["issuer"] = issuerBytes
	return json.Marshal(fields)
}
