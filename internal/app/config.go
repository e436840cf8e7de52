package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"sastrust/internal/crypto"
	"sastrust/internal/log"
)

const (
	defaultLogLevel = "NOTICE"
	defaultHomeDir  = ".sastrust"
)

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool
	// File specifies the log file, if omitted stderr will be used.
	File string
	// Level specifies the log level.
	Level string
}

func (l *Logging) validate() error {
	if !log.ValidLevel(l.Level) {
		return fmt.Errorf("config: Logging: Level '%v' is invalid", l.Level)
	}
	return nil
}

// Protocol is the trust establishment configuration.
type Protocol struct {
	// SASDigits is the full SAS length; each user compares half of it.
	SASDigits int
}

func (p *Protocol) validate() error {
	if err := crypto.ValidateSASDigits(p.SASDigits); err != nil {
		return fmt.Errorf("config: Protocol: SASDigits: %w", err)
	}
	return nil
}

// Config holds the configuration of one device.
type Config struct {
	// Home is the device directory holding the database and keystore.
	Home string
	// RelayURL is the relay base URL, e.g. http://127.0.0.1:8080.
	RelayURL string

	Logging  *Logging
	Protocol *Protocol
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration.
func (c *Config) FixupAndValidate() error {
	if c.Home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("config: Home is not set: %w", err)
		}
		c.Home = filepath.Join(dir, defaultHomeDir)
	}
	if c.Logging == nil {
		c.Logging = &Logging{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Protocol == nil {
		c.Protocol = &Protocol{}
	}
	if c.Protocol.SASDigits == 0 {
		c.Protocol.SASDigits = crypto.DefaultSASDigits
	}

	if err := c.Logging.validate(); err != nil {
		return err
	}
	return c.Protocol.validate()
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
