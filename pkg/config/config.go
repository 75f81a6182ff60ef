package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as duration
// fragments ("2s", "10s", "500ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all recognized options.
type Config struct {
	Port      int    `yaml:"port"`
	Hostname  string `yaml:"hostname"`
	DBDir     string `yaml:"db.dir"`
	NotaryDir string `yaml:"notary.dir"`

	CacheTimeout     Duration `yaml:"cache.timeout"`
	ParamUpdateDelay Duration `yaml:"paramUpdate.delay"`
	NetworkMapDelay  Duration `yaml:"networkMap.delay"`
	NotaryScan       Duration `yaml:"notary.scan.interval"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	TLS         bool   `yaml:"tls"`
	TLSCertPath string `yaml:"tls.cert.path"`
	TLSKeyPath  string `yaml:"tls.key.path"`

	// Feature toggles for the outer enrolment surfaces. Parsed and surfaced
	// but outside the map processor core.
	Doorman bool `yaml:"doorman"`
	Certman bool `yaml:"certman"`
	PKIX    bool `yaml:"pkix"`

	// MongoConnectionString accepts only the literal "embed"; the embedded
	// document store is the only supported backend.
	MongoConnectionString string `yaml:"mongodb.connectionString"`

	LogLevel string `yaml:"log.level"`
	LogJSON  bool   `yaml:"log.json"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Port:                  8080,
		DBDir:                 ".db",
		NotaryDir:             "notary-certificates",
		CacheTimeout:          Duration(2 * time.Second),
		ParamUpdateDelay:      Duration(10 * time.Second),
		NetworkMapDelay:       Duration(1 * time.Second),
		NotaryScan:            Duration(2 * time.Second),
		Username:              "admin",
		Password:              "admin",
		MongoConnectionString: "embed",
		LogLevel:              "info",
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects option combinations the service cannot honor.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MongoConnectionString != "" && c.MongoConnectionString != "embed" {
		return fmt.Errorf("only the embedded document store is supported; got mongodb.connectionString=%q", c.MongoConnectionString)
	}
	if c.TLS && (c.TLSCertPath == "" || c.TLSKeyPath == "") {
		return fmt.Errorf("tls enabled but tls.cert.path or tls.key.path missing")
	}
	return nil
}
