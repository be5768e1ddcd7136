// Package CREDENTIALS resolves the database login for one test session. A
// Resolver picks exactly one Source, local file or vault, according to the
// Environment it was built with, and remembers the outcome.
package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Shoowa/cotejo/logging"
)

// DefaultPort applies when a vault payload carries no port.
const DefaultPort = 1433

// Credentials is a complete database login. It is a value; copies are
// independent and nothing mutates one after resolution.
type Credentials struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	AuthMode string
}

// Missing names the first required field that is empty, in the order host,
// username, password, database_name. It returns "" when none is.
func (c Credentials) Missing() string {
	switch {
	case c.Host == "":
		return "host"
	case c.Username == "":
		return "username"
	case c.Password == "":
		return "password"
	case c.Database == "":
		return "database_name"
	}
	return ""
}

// Target identifies the database without any secret material.
func (c Credentials) Target() string {
	if c.Port > 0 {
		return c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.Database
	}
	return c.Host + "/" + c.Database
}

func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Target())
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("database", c.Database),
		slog.String("username", c.Username),
		slog.Any("password", logging.Secret(c.Password)),
		slog.String("auth_mode", c.AuthMode),
	)
}

// Source produces Credentials from one place.
type Source interface {
	Name() string
	Load(ctx context.Context) (Credentials, error)
}
