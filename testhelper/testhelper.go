package testhelper

import (
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// Assert fails the test if the condition is false.
func Assert(tb testing.TB, condition bool, msg string, v ...interface{}) {
	tb.Helper()
	require.Truef(tb, condition, msg, v...)
}

// Ok fails the test if an err is not nil.
func Ok(tb testing.TB, err error) {
	tb.Helper()
	require.NoError(tb, err)
}

// Equals fails the test if exp is not equal to act.
func Equals(tb testing.TB, exp, act interface{}) {
	tb.Helper()
	require.Equal(tb, exp, act)
}

// Change_to_project_root walks up from the test binary's directory until it
// finds go.mod, so tests can read files under config/.
func Change_to_project_root() {
	wd, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			panic("go.mod not found above test directory")
		}
		wd = parent
	}
	changeErr := os.Chdir(wd)
	if changeErr != nil {
		panic(changeErr)
	}
}

// QuietLogger discards output unless COTEJO_TEST_LOG is set.
func QuietLogger() *slog.Logger {
	if os.Getenv("COTEJO_TEST_LOG") != "" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// NewMockDB creates a sqlmock database that matches queries verbatim. The
// expectations are checked when the test ends.
func NewMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	return newMockDB(t, false)
}

// NewPingMockDB is NewMockDB with pings treated as expectations, so a test
// can fail one with ExpectPing().WillReturnError.
func NewPingMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	return newMockDB(t, true)
}

func newMockDB(t *testing.T, pings bool) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual),
		sqlmock.MonitorPingsOption(pings),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
	})
	return db, mock
}

// MockOpener returns an open func that hands out db and records the driver
// and DSN it was asked for.
func MockOpener(db *sql.DB, calls *[]string) func(driver, dsn string) (*sql.DB, error) {
	return func(driver, dsn string) (*sql.DB, error) {
		if calls != nil {
			*calls = append(*calls, driver+"|"+dsn)
		}
		return db, nil
	}
}

// WriteFile writes content to name inside a fresh temp dir and returns the
// path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
