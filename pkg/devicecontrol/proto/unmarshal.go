package proto

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// envelope is a decoded frame. Its accessors report the element by name so
// that decode errors point at the offending field.
type envelope []interface{}

func (env envelope) arity(name string, min, max int) error {
	if len(env) < min || (max > 0 && len(env) > max) {
		return errors.Errorf("devicecontrol: incomplete %s message", name)
	}
	return nil
}

func (env envelope) str(i int, name, field string) (string, error) {
	s, ok := env[i].(string)
	if !ok {
		return "", errors.Errorf("devicecontrol: %s message contains invalid %s type", name, field)
	}
	return s, nil
}

func (env envelope) number(i int, name, field string) (float64, error) {
	n, ok := env[i].(float64)
	if !ok {
		return 0, errors.Errorf("devicecontrol: %s message contains invalid %s type", name, field)
	}
	return n, nil
}

func (env envelope) requestID(i int, name string) (int32, error) {
	n, err := env.number(i, name, "request ID")
	return int32(n), err
}

// optional returns the element at i or nil when the frame is shorter.
func (env envelope) optional(i int) interface{} {
	if len(env) > i {
		return env[i]
	}
	return nil
}

func unmarshalMessageType(v interface{}) (MessageType, error) {
	i, ok := v.(float64)
	if !ok {
		return MessageTypeInvalid, errors.New("devicecontrol: invalid message type given")
	}

	msgType := MessageType(int(i))
	if _, ok := messageTypeNames[msgType]; !ok {
		return MessageTypeInvalid, errors.New("devicecontrol: unknown message type given")
	}

	return msgType, nil
}

type decodeFunc func(env envelope) (interface{}, error)

var decoders = map[MessageType]decodeFunc{
	MessageTypeHello:     decodeHello,
	MessageTypeWelcome:   decodeWelcome,
	MessageTypeAbort:     decodeAbort,
	MessageTypePing:      decodePing,
	MessageTypePong:      decodePong,
	MessageTypeError:     decodeError,
	MessageTypeCall:      decodeCall,
	MessageTypeResult:    decodeResult,
	MessageTypePublish:   decodePublish,
	MessageTypePublished: decodePublished,
}

// UnmarshalMessage decodes one frame. The returned message is a value of
// the matching *Message type, e.g. HelloMessage for MessageTypeHello.
func UnmarshalMessage(data []byte) (MessageType, interface{}, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return MessageTypeInvalid, nil, errors.Wrap(err, "devicecontrol: invalid message data")
	}
	if len(env) < 1 {
		return MessageTypeInvalid, nil, errors.New("devicecontrol: message does not contain a message type")
	}

	msgType, err := unmarshalMessageType(env[0])
	if err != nil {
		return msgType, nil, err
	}

	decode, ok := decoders[msgType]
	if !ok {
		return MessageTypeInvalid, nil, errors.Errorf("devicecontrol: unhandled message type %s", msgType)
	}

	msg, err := decode(env)
	if err != nil {
		return MessageTypeInvalid, nil, err
	}
	return msgType, msg, nil
}

func decodeHello(env envelope) (interface{}, error) {
	if err := env.arity("hello", 2, 3); err != nil {
		return nil, err
	}
	realm, err := env.str(1, "hello", "realm")
	if err != nil {
		return nil, err
	}
	return HelloMessage{Realm: realm, Details: env.optional(2)}, nil
}

func decodeWelcome(env envelope) (interface{}, error) {
	if err := env.arity("welcome", 2, 3); err != nil {
		return nil, err
	}
	connID, err := env.str(1, "welcome", "connection ID")
	if err != nil {
		return nil, err
	}
	return WelcomeMessage{ConnectionID: connID, Details: env.optional(2)}, nil
}

func decodeAbort(env envelope) (interface{}, error) {
	if err := env.arity("abort", 2, 3); err != nil {
		return nil, err
	}
	reason, err := env.str(1, "abort", "reason")
	if err != nil {
		return nil, err
	}
	return AbortMessage{Reason: reason, Details: env.optional(2)}, nil
}

func decodePing(env envelope) (interface{}, error) {
	if err := env.arity("ping", 1, 2); err != nil {
		return nil, err
	}
	return PingMessage{Details: env.optional(1)}, nil
}

func decodePong(env envelope) (interface{}, error) {
	if err := env.arity("pong", 1, 2); err != nil {
		return nil, err
	}
	return PongMessage{Details: env.optional(1)}, nil
}

func decodeCall(env envelope) (interface{}, error) {
	if err := env.arity("call", 3, 4); err != nil {
		return nil, err
	}
	reqID, err := env.requestID(1, "call")
	if err != nil {
		return nil, err
	}
	op, err := env.str(2, "call", "operation")
	if err != nil {
		return nil, err
	}
	return CallMessage{RequestID: reqID, Operation: op, Arguments: env.optional(3)}, nil
}

// decodeResult accepts a missing payload as a void acknowledgement.
func decodeResult(env envelope) (interface{}, error) {
	if err := env.arity("result", 2, 3); err != nil {
		return nil, err
	}
	reqID, err := env.requestID(1, "result")
	if err != nil {
		return nil, err
	}
	return ResultMessage{RequestID: reqID, Results: env.optional(2)}, nil
}

func decodeError(env envelope) (interface{}, error) {
	if err := env.arity("error", 4, 5); err != nil {
		return nil, err
	}
	msgType, err := unmarshalMessageType(env[1])
	if err != nil {
		return nil, errors.New("devicecontrol: error message contains invalid or unknown message type")
	}
	reqID, err := env.requestID(2, "error")
	if err != nil {
		return nil, err
	}
	reason, err := env.str(3, "error", "error")
	if err != nil {
		return nil, err
	}
	return ErrorMessage{
		MessageType: msgType,
		RequestID:   reqID,
		Error:       reason,
		Details:     env.optional(4),
	}, nil
}

func decodePublish(env envelope) (interface{}, error) {
	if err := env.arity("publish", 3, 4); err != nil {
		return nil, err
	}
	reqID, err := env.requestID(1, "publish")
	if err != nil {
		return nil, err
	}
	topic, err := env.str(2, "publish", "topic")
	if err != nil {
		return nil, err
	}
	return PublishMessage{RequestID: reqID, Topic: topic, Arguments: env.optional(3)}, nil
}

func decodePublished(env envelope) (interface{}, error) {
	if err := env.arity("published", 3, 3); err != nil {
		return nil, err
	}
	reqID, err := env.requestID(1, "published")
	if err != nil {
		return nil, err
	}
	pubID, err := env.number(2, "published", "publication ID")
	if err != nil {
		return nil, err
	}
	return PublishedMessage{RequestID: reqID, PublicationID: int64(pubID)}, nil
}
