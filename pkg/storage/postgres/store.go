package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/smsrelay/db"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"

	// database/sql driver registered as "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DriverName is the database/sql driver used for PostgreSQL.
const DriverName = "pgx"

// store contains all PostgreSQL based sub-stores for managing the models
type store struct {
	messages     *messageStore
	statusEvents *statusEventStore
	callLogs     *callLogStore
	tokens       *tokenStore
}

// NewStore creates a new PostgreSQL based Storage interface
func NewStore(db *sqlx.DB) storage.Interface {
	return &store{
		messages:     newMessageStore(db),
		statusEvents: newStatusEventStore(db),
		callLogs:     newCallLogStore(db),
		tokens:       newTokenStore(db),
	}
}

// Messages returns a sub-store for managing the Message model
func (s *store) Messages() storage.MessageStore {
	return s.messages
}

// StatusEvents returns a sub-store for the status event log
func (s *store) StatusEvents() storage.StatusEventStore {
	return s.statusEvents
}

// CallLogs returns a sub-store for managing the CallLog model
func (s *store) CallLogs() storage.CallLogStore {
	return s.callLogs
}

// Tokens returns the shared secret store
func (s *store) Tokens() storage.TokenStore {
	return s.tokens
}

// Open connects to PostgreSQL and checks the connection.
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, DriverName, url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}
	return conn, nil
}

// Migrate applies all pending schema migrations and returns how many were
// applied.
func Migrate(conn *sqlx.DB) (int, error) {
	n, err := migrate.Exec(conn.DB, "postgres", db.MigrationSource(), migrate.Up)
	if err != nil {
		return n, errors.Wrap(err, "failed to apply migrations")
	}
	return n, nil
}

// EnsureMigrated fails when the schema is behind the embedded migration
// plan. It is used at startup when automatic migration is disabled.
func EnsureMigrated(conn *sqlx.DB) error {
	planned, _, err := migrate.PlanMigration(conn.DB, "postgres", db.MigrationSource(), migrate.Up, 0)
	if err != nil {
		return errors.Wrap(err, "failed to plan migrations")
	}
	if len(planned) > 0 {
		return errors.Errorf("database schema is outdated: %d pending migrations, run 'smsrelay migrate sql'", len(planned))
	}
	return nil
}

func now() time.Time {
	return time.Now().Round(time.Second).UTC()
}

func withoutID(params []string) []string {
	out := make([]string, 0, len(params))
	for _, s := range params {
		if s != "id" {
			out = append(out, s)
		}
	}
	return out
}
