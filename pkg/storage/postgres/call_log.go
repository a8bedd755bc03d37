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

func newCallLogStore(db *sqlx.DB) *callLogStore {
	return &callLogStore{
		db: db,
	}
}

type callLogStore struct {
	db *sqlx.DB
}

type sqlDataCallLog struct {
	ID              int64              `db:"id"`
	EndpointRef     string             `db:"endpoint_ref"`
	FromAddress     string             `db:"from_address"`
	ToAddress       string             `db:"to_address"`
	Direction       string             `db:"direction"`
	DurationSeconds sql.NullInt64      `db:"duration_seconds"`
	StartedAt       sql.NullTime       `db:"started_at"`
	EndedAt         sql.NullTime       `db:"ended_at"`
	Raw             types.NullJSONText `db:"raw"`
	CreatedAt       time.Time          `db:"created_at"`
}

var sqlParamsCallLog = []string{
	"id",
	"endpoint_ref",
	"from_address",
	"to_address",
	"direction",
	"duration_seconds",
	"started_at",
	"ended_at",
	"raw",
	"created_at",
}

func (d *sqlDataCallLog) Scan(m *model.CallLog) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = now()
	}

	d.ID = m.ID
	d.EndpointRef = m.EndpointRef
	d.FromAddress = m.FromAddress
	d.ToAddress = m.ToAddress
	d.Direction = string(m.Direction)
	if m.DurationSeconds != nil {
		d.DurationSeconds = sql.NullInt64{Int64: *m.DurationSeconds, Valid: true}
	}
	if m.StartedAt != nil {
		d.StartedAt = sql.NullTime{Time: *m.StartedAt, Valid: true}
	}
	if m.EndedAt != nil {
		d.EndedAt = sql.NullTime{Time: *m.EndedAt, Valid: true}
	}
	d.Raw = nullJSON(m.Raw)
	d.CreatedAt = createdAt

	return nil
}

func (s *callLogStore) Create(ctx context.Context, m *model.CallLog) error {
	d := sqlDataCallLog{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert call log model to SQL data")
	}

	cols := withoutID(sqlParamsCallLog)
	query := fmt.Sprintf(
		"INSERT INTO call_logs (%s) VALUES (%s) RETURNING id",
		strings.Join(cols, ", "),
		":"+strings.Join(cols, ", :"),
	)
	rows, err := s.db.NamedQueryContext(ctx, query, d)
	if err != nil {
		return errors.Wrap(err, "failed to create call log")
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&m.ID); err != nil {
			return errors.Wrap(err, "failed to scan call log id")
		}
	}
	m.CreatedAt = d.CreatedAt

	return errors.Wrap(rows.Err(), "failed to create call log")
}
