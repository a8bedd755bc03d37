package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/pkg/errors"
)

func newStatusEventStore(db *sqlx.DB) *statusEventStore {
	return &statusEventStore{
		db: db,
	}
}

type statusEventStore struct {
	db *sqlx.DB
}

type sqlDataStatusEvent struct {
	ID        int64              `db:"id"`
	MessageID sql.NullString     `db:"message_id"`
	Status    string             `db:"status"`
	Error     sql.NullString     `db:"error"`
	Raw       types.NullJSONText `db:"raw"`
	CreatedAt time.Time          `db:"created_at"`
}

var sqlParamsStatusEvent = []string{
	"id",
	"message_id",
	"status",
	"error",
	"raw",
	"created_at",
}

func (d *sqlDataStatusEvent) Scan(m *model.StatusEvent) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = now()
	}

	d.ID = m.ID
	d.MessageID = nullString(m.MessageID)
	d.Status = string(m.Status)
	d.Error = nullString(m.Error)
	d.Raw = nullJSON(m.Raw)
	d.CreatedAt = createdAt

	return nil
}

func (d *sqlDataStatusEvent) Model() (*model.StatusEvent, error) {
	return &model.StatusEvent{
		ID:        d.ID,
		MessageID: d.MessageID.String,
		Status:    model.Status(d.Status),
		Error:     d.Error.String,
		Raw:       rawJSON(d.Raw),
		CreatedAt: d.CreatedAt,
	}, nil
}

func (s *statusEventStore) Append(ctx context.Context, e *model.StatusEvent) error {
	d := sqlDataStatusEvent{}
	if err := d.Scan(e); err != nil {
		return errors.Wrap(err, "failed to convert status event model to SQL data")
	}

	cols := withoutID(sqlParamsStatusEvent)
	query := fmt.Sprintf(
		"INSERT INTO status_events (%s) VALUES (%s) RETURNING id",
		strings.Join(cols, ", "),
		":"+strings.Join(cols, ", :"),
	)
	rows, err := s.db.NamedQueryContext(ctx, query, d)
	if err != nil {
		return errors.Wrap(err, "failed to append status event")
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&e.ID); err != nil {
			return errors.Wrap(err, "failed to scan status event id")
		}
	}
	e.CreatedAt = d.CreatedAt

	return errors.Wrap(rows.Err(), "failed to append status event")
}

func (s *statusEventStore) FindByMessageID(ctx context.Context, messageID string) ([]model.StatusEvent, error) {
	rows := make([]sqlDataStatusEvent, 0)
	query := fmt.Sprintf("SELECT %s FROM status_events WHERE message_id=$1 ORDER BY id", strings.Join(sqlParamsStatusEvent, ", "))
	if err := s.db.SelectContext(ctx, &rows, query, messageID); err != nil {
		return nil, errors.Wrap(err, "failed to fetch status events")
	}

	out := make([]model.StatusEvent, 0, len(rows))
	for _, d := range rows {
		m, err := d.Model()
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert SQL data to status event model")
		}
		out = append(out, *m)
	}

	return out, nil
}
