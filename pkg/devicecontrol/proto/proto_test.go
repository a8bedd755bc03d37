package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalMessage_Hello(t *testing.T) {
	msgType, msg, err := UnmarshalMessage([]byte(`[1,"smsrelay",{"token":"s3cret","kind":"device"}]`))
	require.NoError(t, err)
	assert.Equal(t, MessageTypeHello, msgType)

	hello, err := MustHelloMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "smsrelay", hello.Realm)
	assert.Equal(t, HelloDetails{Token: "s3cret", Kind: "device"}, ParseHelloDetails(hello.Details))
}

func TestUnmarshalMessage_Result(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		results interface{}
	}{
		{"void", `[11,7]`, nil},
		{"null", `[11,7,null]`, nil},
		{"object", `[11,7,{"ok":true}]`, map[string]interface{}{"ok": true}},
		{"string", `[11,7,"sent"]`, "sent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgType, msg, err := UnmarshalMessage([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, MessageTypeResult, msgType)

			res, err := MustResultMessage(msg)
			require.NoError(t, err)
			assert.Equal(t, int32(7), res.RequestID)
			assert.Equal(t, tt.results, res.Results)
		})
	}
}

func TestUnmarshalMessage_Errors(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`[]`,
		`["x"]`,
		`[99]`,
		`[11]`,
		`[11,"a",{}]`,
		`[20,1]`,
		`[1]`,
	} {
		_, _, err := UnmarshalMessage([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestUnmarshalMessage_PublishWithoutArguments(t *testing.T) {
	msgType, msg, err := UnmarshalMessage([]byte(`[20,3,"sms.status"]`))
	require.NoError(t, err)
	assert.Equal(t, MessageTypePublish, msgType)

	pub, err := MustPublishMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "sms.status", pub.Topic)
	assert.Nil(t, pub.Arguments)
}

func TestMarshal(t *testing.T) {
	out, err := MarshalNewCallMessage(4, "sms.send", map[string]interface{}{"to": "+1"})
	require.NoError(t, err)
	assert.JSONEq(t, `[10,4,"sms.send",{"to":"+1"}]`, string(out))

	out, err = MarshalNewWelcomeMessage("conn-1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[2,"conn-1",{}]`, string(out))

	out, err = MarshalNewAbortMessage(ErrReasonUnauthorized, NewAbortMessageDetails("unauthorized"))
	require.NoError(t, err)
	assert.JSONEq(t, `[3,"ERR_UNAUTHORIZED",{"message":"unauthorized"}]`, string(out))

	out, err = MarshalNewErrorMessage(MessageTypePublish, 9, ErrReasonValidation, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[9,20,9,"ERR_VALIDATION",{}]`, string(out))

	out, err = MarshalMessage(ResultMessage{RequestID: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `[11,2]`, string(out))

	_, err = MarshalMessage("nope")
	assert.Error(t, err)
}

func TestParseHelloDetails(t *testing.T) {
	assert.Equal(t, HelloDetails{}, ParseHelloDetails(nil))
	assert.Equal(t, HelloDetails{Kind: "test"}, ParseHelloDetails(map[string]interface{}{"client": "test"}))
	assert.Equal(t, HelloDetails{}, ParseHelloDetails(map[string]interface{}{"token": 42}))
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "PUBLISHED", MessageTypePublished.String())
	assert.Equal(t, "", MessageTypeInvalid.String())
}

func TestUnmarshalMessage_ErrorNamesField(t *testing.T) {
	_, _, err := UnmarshalMessage([]byte(`[20,1,5,{}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic")

	_, _, err = UnmarshalMessage([]byte(`[10,"x","sms.send"]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request ID")

	_, _, err = UnmarshalMessage([]byte(`[21,1,2,3]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete published")
}
