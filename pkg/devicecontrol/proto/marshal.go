package proto

import (
	"encoding/json"
	"fmt"
)

func (m HelloMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypeHello), m.Realm, ensureEmptyDictIfNil(m.Details)})
}

func (m WelcomeMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypeWelcome), m.ConnectionID, ensureEmptyDictIfNil(m.Details)})
}

func (m AbortMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypeAbort), m.Reason, ensureEmptyDictIfNil(m.Details)})
}

func (m PingMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypePing), ensureEmptyDictIfNil(m.Details)})
}

func (m PongMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypePong), ensureEmptyDictIfNil(m.Details)})
}

func (m CallMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypeCall), m.RequestID, m.Operation, ensureEmptyDictIfNil(m.Arguments)})
}

func (m ResultMessage) Marshal() ([]byte, error) {
	if m.Results == nil {
		return json.Marshal([]interface{}{int(MessageTypeResult), m.RequestID})
	}
	return json.Marshal([]interface{}{int(MessageTypeResult), m.RequestID, m.Results})
}

func (m ErrorMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypeError), int(m.MessageType), m.RequestID, m.Error, ensureEmptyDictIfNil(m.Details)})
}

func (m PublishMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypePublish), m.RequestID, m.Topic, ensureEmptyDictIfNil(m.Arguments)})
}

func (m PublishedMessage) Marshal() ([]byte, error) {
	return json.Marshal([]interface{}{int(MessageTypePublished), m.RequestID, m.PublicationID})
}

type marshaler interface {
	Marshal() ([]byte, error)
}

// MarshalMessage encodes any protocol message into its JSON array envelope.
func MarshalMessage(v interface{}) ([]byte, error) {
	switch v.(type) {
	case HelloMessage, WelcomeMessage, AbortMessage, PingMessage, PongMessage,
		CallMessage, ResultMessage, ErrorMessage, PublishMessage, PublishedMessage:
		return v.(marshaler).Marshal()
	}
	return nil, fmt.Errorf("cannot marshal an invalid message")
}

func ensureEmptyDictIfNil(v interface{}) interface{} {
	type emptyDict struct{}
	if v == nil {
		return emptyDict{}
	}
	return v
}

func MarshalNewAbortMessage(reason ErrorReason, details interface{}) ([]byte, error) {
	return MarshalMessage(AbortMessage{Reason: reason.String(), Details: details})
}

func MarshalNewWelcomeMessage(connectionID string, details interface{}) ([]byte, error) {
	return MarshalMessage(WelcomeMessage{ConnectionID: connectionID, Details: details})
}

func MarshalNewPingMessage() ([]byte, error) {
	return MarshalMessage(PingMessage{})
}

func MarshalNewPongMessage() ([]byte, error) {
	return MarshalMessage(PongMessage{})
}

func MarshalNewCallMessage(requestID int32, operation string, arguments interface{}) ([]byte, error) {
	return MarshalMessage(CallMessage{RequestID: requestID, Operation: operation, Arguments: arguments})
}

func MarshalNewErrorMessage(msgType MessageType, requestID int32, reason ErrorReason, details interface{}) ([]byte, error) {
	return MarshalMessage(ErrorMessage{MessageType: msgType, RequestID: requestID, Error: reason.String(), Details: details})
}

func MarshalNewPublishedMessage(requestID int32, publicationID int64) ([]byte, error) {
	return MarshalMessage(PublishedMessage{RequestID: requestID, PublicationID: publicationID})
}
