package sqldao

import (
	"database/sql"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultCommandTimeout applies when command timeouts are enabled but no
	// timeout is configured.
	DefaultCommandTimeout = 900 * time.Second

	// DefaultIsolation is the isolation level of transactions when none is
	// configured.
	DefaultIsolation = sql.LevelRepeatableRead

	defaultConnectAttempts = 3
	defaultConnectBackoff  = time.Second
)

// Config holds the settings of a DB.
type Config struct {
	// DefaultTarget names the target used when none is given.
	DefaultTarget string `yaml:"default-target"`

	Targets map[string]TargetConfig `yaml:"targets"`

	// UseCommandTimeout enables command timeouts. CommandTimeout is in
	// seconds; zero selects DefaultCommandTimeout.
	UseCommandTimeout bool `yaml:"use-command-timeout"`
	CommandTimeout    int  `yaml:"command-timeout"`

	// Isolation is the transaction isolation level, for example
	// "read-committed" or "serializable".
	Isolation string `yaml:"isolation"`

	// ConnectAttempts bounds the attempts to reach a target when it is first
	// used. Attempts are spaced by a linearly growing multiple of
	// ConnectBackoff.
	ConnectAttempts int           `yaml:"connect-attempts"`
	ConnectBackoff  time.Duration `yaml:"connect-backoff"`

	// Schema is used by schema operations called with an empty schema. If it
	// is also empty the current schema of the connection is used.
	Schema string `yaml:"schema"`

	Logger *slog.Logger `yaml:"-"`
}

// TargetConfig describes how to reach a database.
type TargetConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Dialect overrides the dialect derived from Driver.
	Dialect string `yaml:"dialect,omitempty"`
}

// ReadConfig decodes a YAML configuration.
func ReadConfig(r io.Reader) (Config, error) {
	var cfg Config
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, errors.Wrap(err, "cannot read config")
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "cannot parse config")
	}
	return cfg, nil
}

// LoadConfig reads the YAML configuration file at path.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "cannot open config")
	}
	defer f.Close()
	return ReadConfig(f)
}

// ParseIsolation parses an isolation level name such as "repeatable read",
// "READ_COMMITTED" or "serializable". The empty string selects
// DefaultIsolation.
func ParseIsolation(s string) (sql.IsolationLevel, error) {
	want := normaliseLevel(s)
	if want == "" {
		return DefaultIsolation, nil
	}
	for l := sql.LevelDefault; l <= sql.LevelLinearizable; l++ {
		if normaliseLevel(l.String()) == want {
			return l, nil
		}
	}
	return 0, errors.Errorf("unknown isolation level %q", s)
}

func normaliseLevel(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(s))
}

// normaliseDSN adjusts data source names for the driver. MySQL connections
// must parse DATETIME columns into time.Time.
func normaliseDSN(driverName, dsn string) (string, error) {
	if driverName != "mysql" {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "cannot parse mysql dsn")
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// policy is a setting resolved from configuration the first time it is read.
// It can be overridden at any time.
type policy[T any] struct {
	once    sync.Once
	mu      sync.RWMutex
	value   T
	resolve func() T
}

func (p *policy[T]) get() T {
	p.once.Do(func() {
		v := p.resolve()
		p.mu.Lock()
		p.value = v
		p.mu.Unlock()
	})
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

func (p *policy[T]) set(v T) {
	p.once.Do(func() {})
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
}
