package bcc

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/giantswarm/procexpect/internal/fileutil"
)

// PgbouncerConfig is the part of a pgbouncer.ini the check needs.
type PgbouncerConfig struct {
	ListenHost string
	ListenPort int
	// Backends lists the servers of the database: the first one is the
	// regular target, every further one becomes a bcc_host/bcc_port pair.
	Backends []Backend
	Database string
	User     string
	LogFile  string
}

// ConnString returns the [databases] entry pointing pgbouncer at the
// backends.
func (c PgbouncerConfig) ConnString() (string, error) {
	if len(c.Backends) == 0 {
		return "", errors.New("pgbouncer config needs at least one backend")
	}
	primary := c.Backends[0]
	s := fmt.Sprintf("host=%s port=%d dbname=%s user=%s", primary.Host, primary.Port, c.Database, c.User)
	for _, b := range c.Backends[1:] {
		s += fmt.Sprintf(" bcc_host=%s bcc_port=%d", b.Host, b.Port)
	}
	return s, nil
}

// Render returns the config as INI text with a [databases] and a
// [pgbouncer] section.
func (c PgbouncerConfig) Render() ([]byte, error) {
	conn, err := c.ConnString()
	if err != nil {
		return nil, err
	}

	f := ini.Empty()
	sections := []struct {
		name string
		keys [][2]string
	}{
		{name: "databases", keys: [][2]string{{c.Database, conn}}},
		{name: "pgbouncer", keys: [][2]string{
			{"listen_port", strconv.Itoa(c.ListenPort)},
			{"listen_addr", c.ListenHost},
			{"auth_type", "any"},
			{"logfile", c.LogFile},
		}},
	}
	for _, sec := range sections {
		s, err := f.NewSection(sec.name)
		if err != nil {
			return nil, fmt.Errorf("pgbouncer config section %s: %w", sec.name, err)
		}
		for _, kv := range sec.keys {
			if _, err := s.NewKey(kv[0], kv[1]); err != nil {
				return nil, fmt.Errorf("pgbouncer config key %s.%s: %w", sec.name, kv[0], err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render pgbouncer config: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the config to path.
func (c PgbouncerConfig) Write(path string) error {
	data, err := c.Render()
	if err != nil {
		return err
	}
	if err := fileutil.WriteFile(path, data); err != nil {
		return fmt.Errorf("write pgbouncer config: %w", err)
	}
	return nil
}
