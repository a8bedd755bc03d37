package natsio

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nsyszr/smsrelay/pkg/message"
	"github.com/nsyszr/smsrelay/pkg/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

func setupResponderTest() (*Responder, *mockRelayer) {
	r := &mockRelayer{}
	return NewResponder(r), r
}

func TestResponder_HandleSend(t *testing.T) {
	resp, r := setupResponderTest()
	r.On("Send", "+15550100", "hi", "2", "m1").Return(relay.Result{
		OK:         true,
		MessageID:  "m1",
		ElapsedMs:  12,
		AckPayload: map[string]interface{}{"ok": true},
	})

	data, _ := json.Marshal(message.SendRequest{To: "+15550100", Message: "hi", Line: "2", MessageID: "m1"})
	rep := resp.HandleSend(context.Background(), data)

	r.AssertExpectations(t)
	assert.Equal(t, message.ReplyStatusSuccess, rep.Status)
	assert.True(t, rep.OK)
	assert.Equal(t, "m1", rep.MessageID)
	assert.Equal(t, int64(12), rep.ElapsedMs)
	assert.JSONEq(t, `{"ok":true}`, string(rep.AckPayload))
}

func TestResponder_HandleCallNoDevice(t *testing.T) {
	resp, r := setupResponderTest()
	r.On("PlaceCall", "+15550100", "").Return(relay.Result{
		Error:     relay.ReasonNoDevice,
		MessageID: "generated",
	})

	rep := resp.HandleCall(context.Background(), []byte(`{"to":"+15550100"}`))

	assert.Equal(t, message.ReplyStatusSuccess, rep.Status)
	assert.False(t, rep.OK)
	assert.Equal(t, "no_device", rep.Error)
	assert.Empty(t, rep.AckPayload)
}

func TestResponder_InvalidPayload(t *testing.T) {
	resp, r := setupResponderTest()

	rep := resp.HandleSend(context.Background(), []byte(`not json`))

	r.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, message.ReplyStatusError, rep.Status)
	assert.Equal(t, "ERR_INVALID_REQUEST", rep.ErrorReason)
}

func TestDecodeReply(t *testing.T) {
	rep, err := decodeReply([]byte(`{"status":0,"ok":false,"error":"no_ack","messageId":"m1","elapsedMs":16000}`))
	require.NoError(t, err)
	assert.Equal(t, "no_ack", rep.Error)
	assert.Equal(t, int64(16000), rep.ElapsedMs)

	rep, err = decodeReply([]byte(`{"status":1,"error_reason":"ERR_INVALID_REQUEST"}`))
	require.Error(t, err)
	assert.Equal(t, "ERR_INVALID_REQUEST", rep.ErrorReason)

	_, err = decodeReply([]byte(`{`))
	assert.Error(t, err)
}
