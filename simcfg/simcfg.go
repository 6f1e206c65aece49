// Package simcfg persists simulator run parameters to an INI file, the
// same configuration format the teacher stack uses for EDS files (see
// gopkg.in/ini.v1 in pkg/od).
package simcfg

import (
	"encoding/hex"
	"time"

	"gopkg.in/ini.v1"
)

const section = "simulator"

// Config holds everything a simulator run needs beyond the protocol
// engine defaults.
type Config struct {
	Payload       []byte
	DropClient    []int
	DropServer    []int
	ClientTimeout time.Duration
	ServerTimeout time.Duration
	Transcript    string
}

// Load reads a Config from an INI file at path. A missing file is not an
// error; it returns a zero-value Config so callers can layer command-line
// overrides on top of it.
func Load(path string) (Config, error) {
	var cfg Config
	f, err := ini.LooseLoad(path)
	if err != nil {
		return cfg, err
	}
	sec := f.Section(section)

	payloadHex := sec.Key("payload").String()
	if payloadHex != "" {
		decoded, err := hex.DecodeString(payloadHex)
		if err != nil {
			return cfg, err
		}
		cfg.Payload = decoded
	}

	cfg.DropClient = parseIntList(sec.Key("drop_client").String())
	cfg.DropServer = parseIntList(sec.Key("drop_server").String())
	cfg.Transcript = sec.Key("transcript").String()

	if v := sec.Key("client_timeout_ms").MustInt(0); v > 0 {
		cfg.ClientTimeout = time.Duration(v) * time.Millisecond
	}
	if v := sec.Key("server_timeout_ms").MustInt(0); v > 0 {
		cfg.ServerTimeout = time.Duration(v) * time.Millisecond
	}
	return cfg, nil
}

// Save writes cfg to path as an INI file, creating it if necessary.
func Save(path string, cfg Config) error {
	f := ini.Empty()
	sec, err := f.NewSection(section)
	if err != nil {
		return err
	}
	if _, err := sec.NewKey("payload", hex.EncodeToString(cfg.Payload)); err != nil {
		return err
	}
	if _, err := sec.NewKey("drop_client", formatIntList(cfg.DropClient)); err != nil {
		return err
	}
	if _, err := sec.NewKey("drop_server", formatIntList(cfg.DropServer)); err != nil {
		return err
	}
	if _, err := sec.NewKey("transcript", cfg.Transcript); err != nil {
		return err
	}
	if cfg.ClientTimeout > 0 {
		if _, err := sec.NewKey("client_timeout_ms", itoa(cfg.ClientTimeout.Milliseconds())); err != nil {
			return err
		}
	}
	if cfg.ServerTimeout > 0 {
		if _, err := sec.NewKey("server_timeout_ms", itoa(cfg.ServerTimeout.Milliseconds())); err != nil {
			return err
		}
	}
	return f.SaveTo(path)
}
