package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/radiantone/emerge/errors"
)

// ClientINI is the file name the CLI looks for in the working
// directory.
const ClientINI = "emerge.ini"

// ClientConfig points the CLI at a node's broker.
type ClientConfig struct {
	Host string `ini:"host"`
	Port int    `ini:"port"`
}

// DefaultClientConfig targets a local broker.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{Host: "localhost", Port: 4222}
}

// URL renders the broker address for dialing.
func (c ClientConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

// LoadClientINI reads emerge.ini. A missing file is not an error;
// the defaults are returned so the CLI works against localhost.
func LoadClientINI(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	f, err := ini.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return ClientConfig{}, errors.WrapKind(errors.KindInternal, err,
			"Config", "LoadClientINI", "read "+path)
	}
	if err := f.Section("emerge").MapTo(&cfg); err != nil {
		return ClientConfig{}, errors.WrapKind(errors.KindInternal, err,
			"Config", "LoadClientINI", "parse "+path)
	}
	if cfg.Host == "" {
		return ClientConfig{}, errors.Internal("Config", "LoadClientINI",
			"host cannot be empty")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return ClientConfig{}, errors.Internal("Config", "LoadClientINI",
			fmt.Sprintf("port %d out of range", cfg.Port))
	}
	return cfg, nil
}

// WriteClientINI writes emerge.ini, creating parent directories as
// needed. Used by the init command.
func WriteClientINI(path string, cfg ClientConfig) error {
	f := ini.Empty()
	if err := f.Section("emerge").ReflectFrom(&cfg); err != nil {
		return errors.WrapKind(errors.KindInternal, err,
			"Config", "WriteClientINI", "encode "+path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapKind(errors.KindInternal, err,
				"Config", "WriteClientINI", "create "+dir)
		}
	}
	if err := f.SaveTo(path); err != nil {
		return errors.WrapKind(errors.KindInternal, err,
			"Config", "WriteClientINI", "write "+path)
	}
	return nil
}
