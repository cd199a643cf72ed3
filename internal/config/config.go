// Package config loads the settings of the pivcard tool from a YAML file.
package config

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gregLibert/pivcard/pkg/piv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Reader ReaderConfig `yaml:"reader"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
}

type ReaderConfig struct {
	Index int    `yaml:"index"`
	Name  string `yaml:"name,omitempty"`
}

// AuthConfig describes the management key. Authentication is skipped when
// ManagementKeyFile is empty.
type AuthConfig struct {
	ManagementKeyFile string `yaml:"management_key_file,omitempty"`
	Algorithm         string `yaml:"algorithm"`
	Mutual            bool   `yaml:"mutual"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var algorithms = map[string]piv.KeyType{
	"3des":   piv.KeyTypeTripleDES,
	"aes128": piv.KeyTypeAES128,
	"aes192": piv.KeyTypeAES192,
	"aes256": piv.KeyTypeAES256,
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{Algorithm: "3des", Mutual: true},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path on top of Default. Relative key file paths are resolved
// against the directory holding the configuration file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	cfg := Default()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Reader.Index < 0 {
		return fmt.Errorf("config.reader.index must be >= 0")
	}

	if _, ok := algorithms[strings.ToLower(c.Auth.Algorithm)]; !ok {
		return fmt.Errorf("config.auth.algorithm %q is not one of 3des, aes128, aes192, aes256", c.Auth.Algorithm)
	}
	if strings.TrimSpace(c.Auth.ManagementKeyFile) != "" {
		if err := validateReadableFile(c.Auth.ManagementKeyFile, "config.auth.management_key_file"); err != nil {
			return err
		}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config.log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format %q must be text or json", c.Log.Format)
	}

	return nil
}

// KeyType returns the management key algorithm.
func (c *Config) KeyType() piv.KeyType {
	return algorithms[strings.ToLower(c.Auth.Algorithm)]
}

// ManagementKey reads the management key file. The file holds the key in hex;
// whitespace and line breaks are ignored. The caller owns the returned buffer
// and should clear it after use.
func (c *Config) ManagementKey() ([]byte, error) {
	if strings.TrimSpace(c.Auth.ManagementKeyFile) == "" {
		return nil, fmt.Errorf("config.auth.management_key_file is not set")
	}

	f, err := os.Open(c.Auth.ManagementKeyFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var digits []byte
	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		digits = append(digits, scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	defer clear(digits)

	if len(digits) == 0 {
		return nil, fmt.Errorf("management key file is empty")
	}

	key := make([]byte, hex.DecodedLen(len(digits)))
	if _, err := hex.Decode(key, digits); err != nil {
		clear(key)
		return nil, fmt.Errorf("invalid hex key: %v", err)
	}
	if want := c.KeyType().KeySize() / 8; len(key) != want {
		clear(key)
		return nil, fmt.Errorf("management key must be %d bytes for %s, got %d", want, c.KeyType(), len(key))
	}
	return key, nil
}

// ConfigureLogger applies the level and formatter to log.
func (c *Config) ConfigureLogger(log *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.Auth.ManagementKeyFile = resolvePath(configDir, c.Auth.ManagementKeyFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path string, field string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got directory", field)
	}
	return nil
}
