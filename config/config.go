package config

import (
	"os"

	"github.com/jinzhu/configor"
)

// Config - Application configuration
type Config struct {
	Server struct {
		Host            string `yaml:"host" default:"0.0.0.0" env:"SERVER_HOST"`
		Port            int    `yaml:"port" default:"8080" env:"SERVER_PORT"`
		ProxyPath       string `yaml:"proxy_path" default:"/proxy" env:"SERVER_PROXY_PATH"` // Endpoint that rewritten links point at
		ShutdownTimeout int    `yaml:"shutdown_timeout" default:"10" env:"SERVER_SHUTDOWN_TIMEOUT"` // Seconds
		Development     bool   `yaml:"development" default:"false" env:"SERVER_DEVELOPMENT"`       // gin debug mode
	} `yaml:"server"`

	Fetch struct {
		Timeout      int    `yaml:"timeout" default:"30" env:"FETCH_TIMEOUT"` // Timeout in seconds
		UserAgent    string `yaml:"user_agent" default:"Mozilla/5.0 (compatible; rigil-proxy/1.0)" env:"FETCH_USER_AGENT"`
		MaxRedirects int    `yaml:"max_redirects" default:"10" env:"FETCH_MAX_REDIRECTS"`
		MaxBodyBytes int64  `yaml:"max_body_bytes" default:"10485760" env:"FETCH_MAX_BODY_BYTES"`
		MaxURLs      int    `yaml:"max_urls" default:"20" env:"FETCH_MAX_URLS"`       // Upper bound for batch requests
		MaxWorkers   int    `yaml:"max_workers" default:"20" env:"FETCH_MAX_WORKERS"` // Workers used for batch requests
	} `yaml:"fetch"`

	Transducer struct {
		MaxLabelLength      int  `yaml:"max_label_length" default:"50" env:"TRANSDUCER_MAX_LABEL_LENGTH"`
		LegacyAbsoluteCheck bool `yaml:"legacy_absolute_check" default:"false" env:"TRANSDUCER_LEGACY_ABSOLUTE_CHECK"`
		Readability         bool `yaml:"readability" default:"false" env:"TRANSDUCER_READABILITY"`
	} `yaml:"transducer"`

	Ledger struct {
		Driver     string `yaml:"driver" default:"json" env:"LEDGER_DRIVER"` // json, sqlite or memory
		Path       string `yaml:"path" default:"api_keys.json" env:"LEDGER_PATH"`
		RequireKey bool   `yaml:"require_key" default:"false" env:"LEDGER_REQUIRE_KEY"`
	} `yaml:"ledger"`

	Admin struct {
		// Empty disables every admin endpoint.
		Key string `yaml:"key" env:"ADMIN_KEY"`
	} `yaml:"admin"`

	Log struct {
		Level       string `yaml:"level" default:"info" env:"LOG_LEVEL"`
		Development bool   `yaml:"development" default:"false" env:"LOG_DEVELOPMENT"`
		File        string `yaml:"file" env:"LOG_FILE"`
		MaxSizeMB   int    `yaml:"max_size_mb" default:"100" env:"LOG_MAX_SIZE_MB"`
		MaxBackups  int    `yaml:"max_backups" default:"3" env:"LOG_MAX_BACKUPS"`
		MaxAgeDays  int    `yaml:"max_age_days" default:"28" env:"LOG_MAX_AGE_DAYS"`
	} `yaml:"log"`
}

// LoadConfig - Load configuration file. A missing file leaves defaults and
// environment overrides in place.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	var files []string
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}

	err := configor.New(&configor.Config{
		Debug:      false,
		Verbose:    false,
		Silent:     true,
		AutoReload: false,
	}).Load(cfg, files...)
	return cfg, err
}
