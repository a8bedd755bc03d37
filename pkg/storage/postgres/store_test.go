package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStoreTest(t *testing.T) (storage.Interface, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewStore(sqlx.NewDb(mockDB, "postgres")), mock
}

func TestMessageStore_Upsert(t *testing.T) {
	s, mock := setupStoreTest(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO messages \(message_id, direction, .*\) VALUES \(\$1, \$2, .*\) ON CONFLICT \(message_id\) WHERE message_id IS NOT NULL DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error, endpoint_ref = EXCLUDED.endpoint_ref, elapsed_ms = EXCLUDED.elapsed_ms, updated_at = EXCLUDED.updated_at RETURNING id, created_at, updated_at`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), created, created))

	m := &model.Message{MessageID: "m-1", Direction: model.DirectionOut, Status: model.StatusQueued, ToAddress: "+15551234567", Payload: []byte(`{"to":"+15551234567"}`)}
	require.NoError(t, s.Messages().Upsert(context.Background(), m))

	assert.Equal(t, int64(7), m.ID)
	assert.Equal(t, created, m.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageStore_UpsertError(t *testing.T) {
	s, mock := setupStoreTest(t)

	mock.ExpectQuery(`INSERT INTO messages`).WillReturnError(assert.AnError)

	err := s.Messages().Upsert(context.Background(), &model.Message{Status: model.StatusReceived})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert message")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageStore_UpdateStatus(t *testing.T) {
	t.Run("Matched", func(t *testing.T) {
		s, mock := setupStoreTest(t)
		mock.ExpectExec(`UPDATE messages SET status=\$1, error=\$2, updated_at=\$3 WHERE message_id=\$4`).
			WithArgs("delivered", nil, sqlmock.AnyArg(), "m-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := s.Messages().UpdateStatus(context.Background(), "m-1", "delivered", "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown", func(t *testing.T) {
		s, mock := setupStoreTest(t)
		mock.ExpectExec(`UPDATE messages SET status`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		n, err := s.Messages().UpdateStatus(context.Background(), "missing", "failed", "rejected")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyMessageID", func(t *testing.T) {
		s, mock := setupStoreTest(t)
		n, err := s.Messages().UpdateStatus(context.Background(), "", "failed", "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMessageStore_FindByMessageID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		s, mock := setupStoreTest(t)
		ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		rows := sqlmock.NewRows(sqlParamsMessage).
			AddRow(int64(3), "m-3", "out", "sms", "conn-1", "", "+15551234567", "1", "hello", "device_ack", nil, int64(120), []byte(`{"to":"+15551234567"}`), ts, ts)
		mock.ExpectQuery(`SELECT .* FROM messages WHERE message_id=\$1`).WithArgs("m-3").WillReturnRows(rows)

		m, err := s.Messages().FindByMessageID(context.Background(), "m-3")
		require.NoError(t, err)
		assert.Equal(t, model.StatusDeviceAck, m.Status)
		assert.Equal(t, "", m.Error)
		require.NotNil(t, m.ElapsedMs)
		assert.Equal(t, int64(120), *m.ElapsedMs)
		assert.JSONEq(t, `{"to":"+15551234567"}`, string(m.Payload))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		s, mock := setupStoreTest(t)
		mock.ExpectQuery(`SELECT .* FROM messages WHERE message_id=\$1`).WillReturnRows(sqlmock.NewRows(sqlParamsMessage))

		_, err := s.Messages().FindByMessageID(context.Background(), "nope")
		assert.Equal(t, storage.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStatusEventStore_AppendOrphan(t *testing.T) {
	s, mock := setupStoreTest(t)
	mock.ExpectQuery(`INSERT INTO status_events \(message_id, status, error, raw, created_at\) VALUES \(\$1, \$2, \$3, \$4, \$5\) RETURNING id`).
		WithArgs("orphan", "delivered", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	e := &model.StatusEvent{MessageID: "orphan", Status: "delivered", Raw: []byte(`{"status":"delivered"}`)}
	require.NoError(t, s.StatusEvents().Append(context.Background(), e))
	assert.Equal(t, int64(11), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallLogStore_CreateWithoutStartTime(t *testing.T) {
	s, mock := setupStoreTest(t)
	mock.ExpectQuery(`INSERT INTO call_logs`).
		WithArgs("conn-1", "+15550001111", "", "in", nil, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

	m := &model.CallLog{EndpointRef: "conn-1", FromAddress: "+15550001111", Direction: model.DirectionIn, Raw: []byte(`{}`)}
	require.NoError(t, s.CallLogs().Create(context.Background(), m))
	assert.Equal(t, int64(2), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenStore(t *testing.T) {
	t.Run("Current", func(t *testing.T) {
		s, mock := setupStoreTest(t)
		mock.ExpectQuery(`SELECT value FROM settings WHERE key=\$1`).WithArgs("relay_token").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("s3cret"))

		token, err := s.Tokens().Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "s3cret", token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CurrentMissing", func(t *testing.T) {
		s, mock := setupStoreTest(t)
		mock.ExpectQuery(`SELECT value FROM settings`).WillReturnRows(sqlmock.NewRows([]string{"value"}))

		token, err := s.Tokens().Current(context.Background())
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("Set", func(t *testing.T) {
		s, mock := setupStoreTest(t)
		mock.ExpectExec(`INSERT INTO settings \(key, value, updated_at\) VALUES \(\$1, \$2, \$3\) ON CONFLICT \(key\)`).
			WithArgs("relay_token", "rotated", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Tokens().Set(context.Background(), "rotated"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
