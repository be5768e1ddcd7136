// Package RDBMS turns resolved credentials into a driver DSN, checks that the
// database answers, and holds the single connection a test session queries
// through.
package rdbms

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/azuread"

	"github.com/Shoowa/cotejo/config"
	"github.com/Shoowa/cotejo/credentials"
	"github.com/Shoowa/cotejo/fault"
)

const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "pgx"
	DriverMySQL     = "mysql"

	TIMEOUT_PROBE = time.Second * 5
)

// ConnectionConfig carries everything needed to open the database. DSN holds
// the password and must not be logged; String leaves it out.
type ConnectionConfig struct {
	Driver       string
	DSN          string
	Target       string
	ProbeTimeout time.Duration
}

func (c ConnectionConfig) String() string {
	return fmt.Sprintf("%s://%s", c.Driver, c.Target)
}

// Options select the driver and its transport settings.
type Options struct {
	Driver       string
	Sslmode      string
	ClientID     string
	ProbeTimeout time.Duration
}

// OptionsFrom reads Options from the data section of the config file.
func OptionsFrom(cfg *config.Data) Options {
	return Options{
		Driver:       cfg.Driver,
		Sslmode:      cfg.Sslmode,
		ClientID:     cfg.ClientID,
		ProbeTimeout: time.Duration(cfg.ProbeTimeout) * time.Millisecond,
	}
}

// Build is pure: it only formats the DSN for the chosen driver. The first
// empty required field yields a *fault.ValidationError.
func Build(creds credentials.Credentials, opts Options) (ConnectionConfig, error) {
	const op = "rdbms.Build"

	if field := creds.Missing(); field != "" {
		return ConnectionConfig{}, &fault.ValidationError{Op: op, Field: field}
	}

	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = TIMEOUT_PROBE
	}

	cfg := ConnectionConfig{Target: creds.Target(), ProbeTimeout: timeout}

	switch strings.ToLower(opts.Driver) {
	case "", DriverSQLServer, "mssql":
		cfg.Driver, cfg.DSN = sqlServerDSN(creds, opts)
	case DriverPostgres, "postgres", "postgresql":
		cfg.Driver, cfg.DSN = DriverPostgres, postgresDSN(creds, opts)
	case DriverMySQL, "mariadb":
		cfg.Driver, cfg.DSN = DriverMySQL, mysqlDSN(creds)
	default:
		return ConnectionConfig{}, &fault.ConfigError{
			Op:     op,
			Key:    "data.driver",
			Reason: fmt.Sprintf("unsupported driver %q", opts.Driver),
		}
	}

	return cfg, nil
}

// sqlServerDSN switches to the Azure AD driver when the credentials name an
// authentication mode.
func sqlServerDSN(creds credentials.Credentials, opts Options) (string, string) {
	host := creds.Host
	if creds.Port > 0 {
		host = net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))
	}

	query := url.Values{}
	query.Set("database", creds.Database)

	driver := DriverSQLServer
	if creds.AuthMode != "" {
		driver = azuread.DriverName
		query.Set("fedauth", creds.AuthMode)
		if opts.ClientID != "" {
			query.Set("applicationclientid", opts.ClientID)
		}
	}
	if opts.Sslmode != "" {
		query.Set("encrypt", opts.Sslmode)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(creds.Username, creds.Password),
		Host:     host,
		RawQuery: query.Encode(),
	}
	return driver, u.String()
}

func postgresDSN(creds credentials.Credentials, opts Options) string {
	sslmode := opts.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		"host=" + quote(creds.Host),
		"dbname=" + quote(creds.Database),
		"user=" + quote(creds.Username),
		"password=" + quote(creds.Password),
		"sslmode=" + quote(sslmode),
	}
	if creds.Port > 0 {
		parts = append(parts, "port="+strconv.Itoa(creds.Port))
	}
	return strings.Join(parts, " ")
}

// quote wraps a keyword/value setting so spaces and quotes survive parsing.
func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func mysqlDSN(creds credentials.Credentials) string {
	port := creds.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = creds.Username
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(creds.Host, strconv.Itoa(port))
	cfg.DBName = creds.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}
