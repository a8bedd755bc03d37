package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/pkg/errors"
)

func newMessageStore(db *sqlx.DB) *messageStore {
	return &messageStore{
		db: db,
	}
}

type messageStore struct {
	db *sqlx.DB
}

type sqlDataMessage struct {
	ID          int64              `db:"id"`
	MessageID   sql.NullString     `db:"message_id"`
	Direction   string             `db:"direction"`
	Kind        string             `db:"kind"`
	EndpointRef string             `db:"endpoint_ref"`
	FromAddress string             `db:"from_address"`
	ToAddress   string             `db:"to_address"`
	Line        string             `db:"line"`
	Body        string             `db:"body"`
	Status      string             `db:"status"`
	Error       sql.NullString     `db:"error"`
	ElapsedMs   sql.NullInt64      `db:"elapsed_ms"`
	Payload     types.NullJSONText `db:"payload"`
	CreatedAt   time.Time          `db:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at"`
}

var sqlParamsMessage = []string{
	"id",
	"message_id",
	"direction",
	"kind",
	"endpoint_ref",
	"from_address",
	"to_address",
	"line",
	"body",
	"status",
	"error",
	"elapsed_ms",
	"payload",
	"created_at",
	"updated_at",
}

// Columns replaced when a row with the same message_id already exists.
var sqlParamsMessageMutable = []string{
	"status",
	"error",
	"endpoint_ref",
	"elapsed_ms",
	"updated_at",
}

func (d *sqlDataMessage) Scan(m *model.Message) error {
	var createdAt, updatedAt = m.CreatedAt, m.UpdatedAt

	if m.CreatedAt.IsZero() {
		createdAt = now()
	}

	if m.UpdatedAt.IsZero() {
		updatedAt = now()
	}

	d.ID = m.ID
	d.MessageID = nullString(m.MessageID)
	d.Direction = string(m.Direction)
	d.Kind = string(m.Kind)
	if d.Kind == "" {
		d.Kind = string(model.KindSMS)
	}
	d.EndpointRef = m.EndpointRef
	d.FromAddress = m.FromAddress
	d.ToAddress = m.ToAddress
	d.Line = m.Line
	d.Body = m.Body
	d.Status = string(m.Status)
	d.Error = nullString(m.Error)
	if m.ElapsedMs != nil {
		d.ElapsedMs = sql.NullInt64{Int64: *m.ElapsedMs, Valid: true}
	}
	d.Payload = nullJSON(m.Payload)
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt

	return nil
}

func (d *sqlDataMessage) Model() (*model.Message, error) {
	m := &model.Message{
		ID:          d.ID,
		MessageID:   d.MessageID.String,
		Direction:   model.Direction(d.Direction),
		Kind:        model.Kind(d.Kind),
		EndpointRef: d.EndpointRef,
		FromAddress: d.FromAddress,
		ToAddress:   d.ToAddress,
		Line:        d.Line,
		Body:        d.Body,
		Status:      model.Status(d.Status),
		Error:       d.Error.String,
		Payload:     rawJSON(d.Payload),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.ElapsedMs.Valid {
		elapsed := d.ElapsedMs.Int64
		m.ElapsedMs = &elapsed
	}

	return m, nil
}

func (s *messageStore) Upsert(ctx context.Context, m *model.Message) error {
	return upsertMessage(ctx, s.db, m)
}

func (s *messageStore) UpdateStatus(ctx context.Context, messageID string, status model.Status, errText string) (int64, error) {
	return updateMessageStatus(ctx, s.db, messageID, status, errText)
}

func (s *messageStore) FindByMessageID(ctx context.Context, messageID string) (*model.Message, error) {
	return findMessageByMessageID(ctx, s.db, messageID)
}

func upsertMessage(ctx context.Context, db *sqlx.DB, m *model.Message) error {
	d := sqlDataMessage{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert message model to SQL data")
	}

	cols := withoutID(sqlParamsMessage)
	updates := make([]string, 0, len(sqlParamsMessageMutable))
	for _, c := range sqlParamsMessageMutable {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	// The conflict target matches the partial unique index, rows without a
	// message_id never conflict.
	query := fmt.Sprintf(
		"INSERT INTO messages (%s) VALUES (%s) "+
			"ON CONFLICT (message_id) WHERE message_id IS NOT NULL DO UPDATE SET %s "+
			"RETURNING id, created_at, updated_at",
		strings.Join(cols, ", "),
		":"+strings.Join(cols, ", :"),
		strings.Join(updates, ", "),
	)
	rows, err := db.NamedQueryContext(ctx, query, d)
	if err != nil {
		return errors.Wrap(err, "failed to upsert message")
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return errors.Wrap(err, "failed to scan upserted message")
		}
	}

	return errors.Wrap(rows.Err(), "failed to upsert message")
}

func updateMessageStatus(ctx context.Context, db *sqlx.DB, messageID string, status model.Status, errText string) (int64, error) {
	if messageID == "" {
		return 0, nil
	}

	query := "UPDATE messages SET status=$1, error=$2, updated_at=$3 WHERE message_id=$4"
	res, err := db.ExecContext(ctx, query, string(status), nullString(errText), now(), messageID)
	if err != nil {
		return 0, errors.Wrap(err, "failed to update message status")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read affected rows")
	}

	return n, nil
}

func findMessageByMessageID(ctx context.Context, db *sqlx.DB, messageID string) (*model.Message, error) {
	d := sqlDataMessage{}
	query := fmt.Sprintf("SELECT %s FROM messages WHERE message_id=$1", strings.Join(sqlParamsMessage, ", "))
	if err := db.GetContext(ctx, &d, query, messageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find message")
	}

	return d.Model()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(raw json.RawMessage) types.NullJSONText {
	if len(raw) == 0 {
		return types.NullJSONText{}
	}
	return types.NullJSONText{JSONText: types.JSONText(raw), Valid: true}
}

func rawJSON(n types.NullJSONText) json.RawMessage {
	if !n.Valid || len(n.JSONText) == 0 {
		return nil
	}
	return json.RawMessage(n.JSONText)
}
