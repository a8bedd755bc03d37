package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nsyszr/smsrelay/pkg/authority"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/registry"
	"github.com/nsyszr/smsrelay/pkg/ingest"
	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/relay"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/nsyszr/smsrelay/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret"

type mockRelayer struct {
	mock.Mock
}

func (m *mockRelayer) Send(ctx context.Context, to, body, lineHint, messageID string) relay.Result {
	args := m.Called(to, body, lineHint, messageID)
	return args.Get(0).(relay.Result)
}

func (m *mockRelayer) PlaceCall(ctx context.Context, to, messageID string) relay.Result {
	args := m.Called(to, messageID)
	return args.Get(0).(relay.Result)
}

type apiTest struct {
	e     *echo.Echo
	relay *mockRelayer
	store storage.Interface
	reg   *registry.Registry
}

func setupAPITest(t *testing.T) *apiTest {
	store := memory.NewStore()
	require.NoError(t, store.Tokens().Set(context.Background(), testToken))

	at := &apiTest{
		e:     echo.New(),
		relay: &mockRelayer{},
		store: store,
		reg:   registry.New(),
	}
	h := NewHandler(authority.NewGate(store.Tokens(), nil), at.relay, ingest.NewService(store, nil), store, at.reg, nil)
	h.RegisterRoutes(at.e)
	return at
}

func (at *apiTest) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+testToken)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	at.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAPI_RejectsMissingOrWrongToken(t *testing.T) {
	at := setupAPITest(t)

	for _, auth := range []string{"", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inbound/messages", strings.NewReader(`{"from":"+1","message":"x"}`))
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		at.e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	}

	m, err := at.store.Messages().FindByMessageID(context.Background(), "x")
	assert.Nil(t, m)
	assert.Equal(t, storage.ErrNotFound, err)
}

func TestAPI_TokenQueryParameter(t *testing.T) {
	at := setupAPITest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connections?token="+testToken, nil)
	rec := httptest.NewRecorder()
	at.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_SendMessage(t *testing.T) {
	at := setupAPITest(t)
	at.relay.On("Send", "+15550100", "hello", "", "").Return(relay.Result{
		OK:        true,
		MessageID: "generated",
		Status:    model.StatusDeviceAck,
		Attempts:  1,
	}).Once()

	rec := at.do(http.MethodPost, "/api/v1/messages", `{"to":"+15550100","message":"hello"}`)

	at.relay.AssertExpectations(t)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "generated", body["messageId"])
}

func TestAPI_SendMessageFailures(t *testing.T) {
	tests := []struct {
		reason relay.Reason
		code   int
	}{
		{relay.ReasonNoDevice, http.StatusServiceUnavailable},
		{relay.ReasonNoAck, http.StatusBadGateway},
		{relay.ReasonDeviceNack, http.StatusBadGateway},
		{relay.ReasonLoopbackClient, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			at := setupAPITest(t)
			at.relay.On("Send", "+15550100", "hello", "", "m1").Return(relay.Result{Error: tt.reason, MessageID: "m1"})

			rec := at.do(http.MethodPost, "/api/v1/messages", `{"to":"+15550100","message":"hello","messageId":"m1"}`)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, string(tt.reason), decode(t, rec)["error"])
		})
	}
}

func TestAPI_SendMessageValidation(t *testing.T) {
	at := setupAPITest(t)

	rec := at.do(http.MethodPost, "/api/v1/messages", `{"message":"hello"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	at.relay.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAPI_PlaceCall(t *testing.T) {
	at := setupAPITest(t)
	at.relay.On("PlaceCall", "+15550100", "").Return(relay.Result{OK: true, MessageID: "c1"}).Once()

	rec := at.do(http.MethodPost, "/api/v1/calls", `{"to":"+15550100"}`)

	at.relay.AssertExpectations(t)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_InboundMessageAndReadBack(t *testing.T) {
	at := setupAPITest(t)

	rec := at.do(http.MethodPost, "/api/v1/inbound/messages",
		`{"messageId":"in-1","from":"+15550100","message":"hello"}`, HeaderEndpointRef, "gw1")
	require.Equal(t, http.StatusCreated, rec.Code)

	// Re-delivery does not create a second row.
	rec = at.do(http.MethodPost, "/api/v1/inbound/messages",
		`{"messageId":"in-1","from":"+15550100","message":"hello"}`, HeaderEndpointRef, "gw1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["id"])

	rec = at.do(http.MethodGet, "/api/v1/messages/in-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "received", body["status"])
	assert.Equal(t, "gw1", body["endpointRef"])
}

func TestAPI_InboundValidation(t *testing.T) {
	at := setupAPITest(t)

	rec := at.do(http.MethodPost, "/api/v1/inbound/messages", `{"message":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = at.do(http.MethodPost, "/api/v1/inbound/status", `[]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_InboundStatusForUnknownMessage(t *testing.T) {
	at := setupAPITest(t)

	rec := at.do(http.MethodPost, "/api/v1/inbound/status", `{"messageId":"nope","status":"delivered"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["matched"])

	events, err := at.store.StatusEvents().FindByMessageID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestAPI_InboundCallLog(t *testing.T) {
	at := setupAPITest(t)

	rec := at.do(http.MethodPost, "/api/v1/inbound/calls", `{"from":"+15550100","duration":42}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(42), body["durationSeconds"])
	assert.True(t, strings.HasPrefix(body["endpointRef"].(string), "http:"))
}

func TestAPI_GetMessageNotFound(t *testing.T) {
	at := setupAPITest(t)

	rec := at.do(http.MethodGet, "/api/v1/messages/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Connections(t *testing.T) {
	at := setupAPITest(t)
	at.reg.Register("c1", model.ConnectionKindDevice, nil, nil)
	at.reg.Register("c2", model.ConnectionKindEphemeralClient, nil, nil)

	rec := at.do(http.MethodGet, "/api/v1/connections", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["members"], 2)
	assert.Equal(t, map[string]interface{}{"total": float64(2), "devices": float64(1), "ephemeral": float64(1)}, body["counts"])
	assert.NotNil(t, body["connectedSince"])
}

func TestAPI_RealtimeEventsDisabledWithoutNATS(t *testing.T) {
	at := setupAPITest(t)

	rec := at.do(http.MethodGet, "/api/v1/realtime-events", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_Metrics(t *testing.T) {
	at := setupAPITest(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	at.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
