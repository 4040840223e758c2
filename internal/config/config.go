package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Fault selects what bcctest does to the second backend while the
// benchmark runs.
type Fault string

// Supported faults.
const (
	FaultNone  Fault = "none"
	FaultKill  Fault = "kill"
	FaultBlock Fault = "block"
)

// Duration is a time.Duration that reads and writes as a Go duration string
// ("60s", "1m30s") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Backend is one postgres server. Port 0 means "pick a free port".
type Backend struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Binaries names the executables bcctest spawns. Bare names are looked up
// in PATH.
type Binaries struct {
	Initdb    string `toml:"initdb"`
	Postgres  string `toml:"postgres"`
	Pgbouncer string `toml:"pgbouncer"`
	Pgbench   string `toml:"pgbench"`
	Psql      string `toml:"psql"`
	Sudo      string `toml:"sudo"`
	Iptables  string `toml:"iptables"`
}

// Bench configures the timed pgbench run.
type Bench struct {
	Duration Duration `toml:"duration"`
	Jobs     int      `toml:"jobs"`
	Clients  int      `toml:"clients"`
}

// Timeouts bounds the waits of the workflow.
type Timeouts struct {
	// Startup bounds each daemon's wait for its readiness line.
	Startup Duration `toml:"startup"`
	// Settle is how long nothing may die after the bench is launched and
	// after it finished.
	Settle Duration `toml:"settle"`
	// Reap bounds the wait for killed processes at teardown.
	Reap Duration `toml:"reap"`
}

// Config is the complete bcctest configuration.
type Config struct {
	Primary     Backend  `toml:"primary"`
	Secondary   Backend  `toml:"secondary"`
	BouncerHost string   `toml:"bouncer_host"`
	BouncerPort int      `toml:"bouncer_port"`
	Database    string   `toml:"database"`
	User        string   `toml:"user"`
	Binaries    Binaries `toml:"binaries"`
	Bench       Bench    `toml:"bench"`
	Timeouts    Timeouts `toml:"timeouts"`
	Fault       Fault    `toml:"fault"`

	// PgbouncerLog is the logfile written into the pgbouncer config.
	PgbouncerLog string `toml:"pgbouncer_log"`
	// OutputDir receives <name>.output files when the results differ.
	OutputDir string `toml:"output_dir"`
	// TranscriptDir, if set, keeps one log file per spawned process.
	TranscriptDir string `toml:"transcript_dir"`
	// HistoryDB is the sqlite file runs are recorded in; empty disables it.
	HistoryDB string `toml:"history_db"`
	// LockFile serialises bcctest runs on one host.
	LockFile string `toml:"lock_file"`
}

// Default returns the configuration bcctest runs with when nothing is
// configured: two local backends on 5432 and 5433 behind pgbouncer on 6543,
// benchmarked for a minute.
func Default() Config {
	return Config{
		Primary:     Backend{Host: "127.0.0.1", Port: 5432},
		Secondary:   Backend{Host: "127.0.0.1", Port: 5433},
		BouncerHost: "127.0.0.1",
		BouncerPort: 6543,
		Database:    "postgres",
		User:        currentUser(),
		Binaries: Binaries{
			Initdb:    "initdb",
			Postgres:  "postgres",
			Pgbouncer: "./pgbouncer",
			Pgbench:   "pgbench",
			Psql:      "psql",
			Sudo:      "sudo",
			Iptables:  "iptables",
		},
		Bench: Bench{
			Duration: Duration(60 * time.Second),
			Jobs:     5,
			Clients:  5,
		},
		Timeouts: Timeouts{
			Startup: Duration(60 * time.Second),
			Settle:  Duration(3 * time.Second),
			Reap:    Duration(10 * time.Second),
		},
		Fault:        FaultNone,
		PgbouncerLog: "/tmp/pgbouncer.log",
		OutputDir:    os.TempDir(),
		HistoryDB:    filepath.Join(stateDir(), "history.db"),
		LockFile:     filepath.Join(os.TempDir(), "bcctest.lock"),
	}
}

// Load reads the TOML file at path over Default. Unknown keys are errors so
// a misspelt option does not silently fall back to its default.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path) //nolint:gosec // G304: path is the operator's config file
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

// Validate checks that cfg can drive a run. All problems are reported
// together.
func (c Config) Validate() error {
	var errs []error

	errs = append(errs, validateBackend("primary", c.Primary)...)
	errs = append(errs, validateBackend("secondary", c.Secondary)...)
	if c.BouncerHost == "" {
		errs = append(errs, errors.New("bouncer host must not be empty"))
	}
	if c.BouncerPort < 0 || c.BouncerPort > 65535 {
		errs = append(errs, fmt.Errorf("bouncer port %d out of range", c.BouncerPort))
	}
	if c.Primary.Port != 0 && c.Primary == c.Secondary {
		errs = append(errs, fmt.Errorf("primary and secondary must differ, both are %s:%d", c.Primary.Host, c.Primary.Port))
	}
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if c.User == "" {
		errs = append(errs, errors.New("user must not be empty"))
	}

	for name, bin := range map[string]string{
		"initdb":    c.Binaries.Initdb,
		"postgres":  c.Binaries.Postgres,
		"pgbouncer": c.Binaries.Pgbouncer,
		"pgbench":   c.Binaries.Pgbench,
		"psql":      c.Binaries.Psql,
	} {
		if bin == "" {
			errs = append(errs, fmt.Errorf("%s binary must not be empty", name))
		}
	}

	if c.Bench.Duration.Std() < time.Second {
		errs = append(errs, fmt.Errorf("bench duration must be at least 1s, got %s", c.Bench.Duration.Std()))
	}
	if c.Bench.Jobs <= 0 {
		errs = append(errs, fmt.Errorf("bench jobs must be positive, got %d", c.Bench.Jobs))
	}
	if c.Bench.Clients <= 0 {
		errs = append(errs, fmt.Errorf("bench clients must be positive, got %d", c.Bench.Clients))
	}
	if c.Timeouts.Startup <= 0 {
		errs = append(errs, errors.New("startup timeout must be positive"))
	}
	if c.Timeouts.Settle <= 0 {
		errs = append(errs, errors.New("settle timeout must be positive"))
	}
	if c.Timeouts.Reap <= 0 {
		errs = append(errs, errors.New("reap timeout must be positive"))
	}

	switch c.Fault {
	case FaultNone, FaultKill:
	case FaultBlock:
		if c.Binaries.Sudo == "" || c.Binaries.Iptables == "" {
			errs = append(errs, errors.New("fault \"block\" needs the sudo and iptables binaries"))
		}
		if c.Secondary.Port == 0 {
			errs = append(errs, errors.New("fault \"block\" needs a fixed secondary port"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown fault %q (want none, kill or block)", c.Fault))
	}

	if c.OutputDir == "" {
		errs = append(errs, errors.New("output dir must not be empty"))
	}
	if c.LockFile == "" {
		errs = append(errs, errors.New("lock file must not be empty"))
	}

	return errors.Join(errs...)
}

func validateBackend(role string, b Backend) []error {
	var errs []error
	if b.Host == "" {
		errs = append(errs, fmt.Errorf("%s host must not be empty", role))
	}
	if b.Port < 0 || b.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s port %d out of range", role, b.Port))
	}
	return errs
}

// currentUser returns the login name postgres roles default to.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// stateDir is where bcctest keeps its history database.
func stateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "bcctest")
	}
	return filepath.Join(os.TempDir(), "bcctest")
}
