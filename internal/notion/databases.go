package notion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultDatabaseName is the preferred database when no selection is given.
	DefaultDatabaseName = "Finance 2026"

	// legacyDatabaseName labels a configuration given as a bare database id.
	legacyDatabaseName = "Default"
)

var (
	ErrNoDatabases           = errors.New("NOTION_DATABASE_ID is not configured")
	ErrInvalidDatabaseConfig = errors.New("invalid NOTION_DATABASE_ID configuration")
	ErrNoDatabaseID          = errors.New("no database ID found")
)

// DatabaseConfig maps display names to database ids, keeping the order in
// which they were configured.
type DatabaseConfig struct {
	names []string
	ids   map[string]string
}

// NewDatabaseConfig builds a config from ordered name/id pairs.
func NewDatabaseConfig(pairs ...[2]string) DatabaseConfig {
	c := DatabaseConfig{ids: make(map[string]string)}
	for _, p := range pairs {
		c.add(p[0], p[1])
	}
	return c
}

func (c *DatabaseConfig) add(name, id string) {
	if c.ids == nil {
		c.ids = make(map[string]string)
	}
	if _, ok := c.ids[name]; !ok {
		c.names = append(c.names, name)
	}
	c.ids[name] = id
}

// ParseDatabaseConfig reads NOTION_DATABASE_ID: either a JSON object of
// name to id, or a bare id registered under "Default".
func ParseDatabaseConfig(raw string) (DatabaseConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DatabaseConfig{}, ErrNoDatabases
	}

	if !json.Valid([]byte(raw)) {
		return NewDatabaseConfig([2]string{legacyDatabaseName, raw}), nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	tok, err := dec.Token()
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("ParseDatabaseConfig: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return DatabaseConfig{}, ErrInvalidDatabaseConfig
	}

	var c DatabaseConfig
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("ParseDatabaseConfig: %w", err)
		}
		var id string
		if err := dec.Decode(&id); err != nil {
			return DatabaseConfig{}, fmt.Errorf("%w: value for %q: %v", ErrInvalidDatabaseConfig, keyTok, err)
		}
		c.add(keyTok.(string), id)
	}

	if len(c.names) == 0 {
		return DatabaseConfig{}, ErrNoDatabases
	}
	return c, nil
}

// Names returns the configured names in order.
func (c DatabaseConfig) Names() []string {
	return append([]string(nil), c.names...)
}

// ID returns the id configured for name.
func (c DatabaseConfig) ID(name string) (string, bool) {
	id, ok := c.ids[name]
	return id, ok
}

func (c DatabaseConfig) Len() int {
	return len(c.names)
}

// ResolveDatabaseID picks the database to read. A non-empty param is tried as a
// configured name, then as a configured id, and is otherwise used verbatim as an
// id. Without a param, "Finance 2026" is preferred, then the first configured entry.
func ResolveDatabaseID(c DatabaseConfig, param string) (string, error) {
	if param != "" {
		if id, ok := c.ids[param]; ok {
			return id, nil
		}
		for _, name := range c.names {
			if c.ids[name] == param {
				return param, nil
			}
		}
		return param, nil
	}

	if id, ok := c.ids[DefaultDatabaseName]; ok {
		return id, nil
	}
	if len(c.names) > 0 {
		return c.ids[c.names[0]], nil
	}
	return "", ErrNoDatabaseID
}

// MarshalJSON encodes the config as a JSON object in configured order.
func (c DatabaseConfig) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.ids[name])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
