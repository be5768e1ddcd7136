package credentials

import (
	"context"
	"errors"
	"io/fs"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/Shoowa/cotejo/fault"
)

// Keys read from the local file's section.
const (
	keyServer   = "server"
	keyDatabase = "database"
	keyUsername = "username"
	keyPassword = "password"
	keyPort     = "port"
	keyAuth     = "authentication"
)

// LocalSource reads an INI file kept on a developer's machine. It never
// reaches the network and can be called any number of times.
type LocalSource struct {
	Path    string
	Section string
}

func NewLocalSource(path, section string) *LocalSource {
	if section == "" {
		section = "database"
	}
	return &LocalSource{Path: path, Section: section}
}

func (l *LocalSource) Name() string { return "local" }

// Load requires server, database, username and password. Port and
// authentication are optional; no port default is substituted.
func (l *LocalSource) Load(ctx context.Context) (Credentials, error) {
	const op = "local.Load"

	// Passwords may contain ';' or '#'. Key and section names ignore case.
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true, Insensitive: true}, l.Path)
	if err != nil {
		reason := "unparsable"
		if errors.Is(err, fs.ErrNotExist) {
			reason = "file not found"
		}
		return Credentials{}, &fault.ConfigError{Op: op, Path: l.Path, Reason: reason, Err: err}
	}

	section, err := file.GetSection(l.Section)
	if err != nil {
		return Credentials{}, &fault.ConfigError{Op: op, Path: l.Path, Key: l.Section, Reason: "section missing"}
	}

	values := make(map[string]string)
	for _, key := range []string{keyServer, keyDatabase, keyUsername, keyPassword} {
		if !section.HasKey(key) || strings.TrimSpace(section.Key(key).String()) == "" {
			return Credentials{}, &fault.ConfigError{Op: op, Path: l.Path, Key: l.Section + "." + key, Reason: "required key missing"}
		}
		values[key] = strings.TrimSpace(section.Key(key).String())
	}

	creds := Credentials{
		Host:     values[keyServer],
		Database: values[keyDatabase],
		Username: values[keyUsername],
		Password: values[keyPassword],
		AuthMode: strings.TrimSpace(section.Key(keyAuth).String()),
	}

	if raw := strings.TrimSpace(section.Key(keyPort).String()); raw != "" {
		port, convErr := strconv.Atoi(raw)
		if convErr != nil || port <= 0 {
			return Credentials{}, &fault.ConfigError{Op: op, Path: l.Path, Key: l.Section + "." + keyPort, Reason: "port is not a positive number"}
		}
		creds.Port = port
	}

	return creds, nil
}
