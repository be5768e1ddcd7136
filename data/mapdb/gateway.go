// Package MAPDB holds the queries the test suite runs against the MAP schema.
// The Gateway borrows the session connection from an rdbms.Manager for the
// length of one call.
package mapdb

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/Shoowa/cotejo/config"
	"github.com/Shoowa/cotejo/data/rdbms"
	"github.com/Shoowa/cotejo/fault"
	"github.com/Shoowa/cotejo/logging"
	"github.com/Shoowa/cotejo/metrics"
)

// Statements agreed with the owners of the MAP schema.
const (
	QueryUserEmails = "SELECT UM.UserEmail FROM MAP.User_Master UM JOIN MAP.User_Access UA ON UM.UserID = UA.UserID"
	QueryFieldName  = "SELECT Field_Name FROM MAP.Field_Master"
)

// Release policies.
const (
	ReleaseSession = "session"
	ReleaseQuery   = "query"
)

const (
	nameUserEmails = "user_emails"
	nameFieldName  = "field_name"
)

// Connector is the part of rdbms.Manager the Gateway needs.
type Connector interface {
	Querier() (rdbms.DBTX, error)
	Reopen(ctx context.Context) error
	Close() error
	Target() string
}

type Gateway struct {
	conn      Connector
	logger    *slog.Logger
	emailsSQL string
	fieldSQL  string
	perQuery  bool
}

type Option func(*Gateway)

// WithQueries replaces the built-in statements with any non-empty ones.
func WithQueries(q config.Queries) Option {
	return func(g *Gateway) {
		if q.UserEmails != "" {
			g.emailsSQL = q.UserEmails
		}
		if q.FieldName != "" {
			g.fieldSQL = q.FieldName
		}
	}
}

// WithRelease selects ReleaseQuery to connect and disconnect around every
// call. Anything else keeps the session connection.
func WithRelease(policy string) Option {
	return func(g *Gateway) {
		g.perQuery = policy == ReleaseQuery
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logging.Component(logger, "gateway")
	}
}

func New(conn Connector, opts ...Option) *Gateway {
	g := &Gateway{
		conn:      conn,
		logger:    logging.Discard(),
		emailsSQL: QueryUserEmails,
		fieldSQL:  QueryFieldName,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchUserEmails returns one email per authorised user in result order,
// duplicates included. A NULL email comes back as "".
func (g *Gateway) FetchUserEmails(ctx context.Context) (emails []string, err error) {
	const op = "mapdb.FetchUserEmails"
	defer g.record(nameUserEmails, &err)

	q, release, err := g.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := q.QueryContext(ctx, g.emailsSQL)
	if err != nil {
		return nil, g.connectionError(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var email sql.NullString
		if err := rows.Scan(&email); err != nil {
			return nil, g.connectionError(op, err)
		}
		emails = append(emails, email.String)
	}
	if err := rows.Err(); err != nil {
		return nil, g.connectionError(op, err)
	}

	if len(emails) == 0 {
		return nil, &fault.NotFoundError{Op: op, What: "user emails"}
	}
	g.logger.Debug("Fetched user emails", "count", len(emails))
	return emails, nil
}

// FetchFieldName expects one row. When the table holds more, the first row
// wins and the ambiguity is logged and counted.
func (g *Gateway) FetchFieldName(ctx context.Context) (name string, err error) {
	const op = "mapdb.FetchFieldName"
	defer g.record(nameFieldName, &err)

	q, release, err := g.acquire(ctx, op)
	if err != nil {
		return "", err
	}
	defer release()

	rows, err := q.QueryContext(ctx, g.fieldSQL)
	if err != nil {
		return "", g.connectionError(op, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
		if count > 1 {
			continue
		}
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			return "", g.connectionError(op, err)
		}
		name = value.String
	}
	if err := rows.Err(); err != nil {
		return "", g.connectionError(op, err)
	}

	switch {
	case count == 0:
		return "", &fault.NotFoundError{Op: op, What: "field name"}
	case count > 1:
		metrics.AmbiguousRows.WithLabelValues(nameFieldName).Inc()
		g.logger.Warn("Field lookup returned more than one row; using the first", "rows", count)
	}
	return name, nil
}

// acquire lends the connection for one call. Under ReleaseQuery it connects
// first and the returned release closes again.
func (g *Gateway) acquire(ctx context.Context, op string) (rdbms.DBTX, func(), error) {
	release := func() {}

	if g.perQuery {
		if err := g.conn.Reopen(ctx); err != nil {
			return nil, release, err
		}
		release = func() {
			if err := g.conn.Close(); err != nil {
				g.logger.Warn("Release after query failed", "op", op, "err", err.Error())
			}
		}
	}

	q, err := g.conn.Querier()
	if err != nil {
		release()
		return nil, func() {}, err
	}
	return q, release, nil
}

func (g *Gateway) connectionError(op string, err error) error {
	g.logger.Error("Query failed", "op", op, "err", err.Error())
	return &fault.ConnectionError{Op: op, Target: g.conn.Target(), Err: err}
}

func (g *Gateway) record(query string, err *error) {
	metrics.Queries.WithLabelValues(query, metrics.Outcome(*err)).Inc()
}
