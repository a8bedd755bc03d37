// Package ingest normalises inbound device events into store writes. Every
// path validates first and persists nothing for a rejected payload.
package ingest

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nsyszr/smsrelay/pkg/metrics"
	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Ingestion paths, used as metric labels and channel topics.
const (
	PathMessage = "sms.received"
	PathStatus  = "sms.status"
	PathCallLog = "call.log"
)

// Notifier is told about inbound status transitions.
type Notifier interface {
	MessageStatusChanged(m *model.Message)
}

// StatusReceipt is the outcome of a status callback. Matched is zero when no
// local message carries the id, which is not an error.
type StatusReceipt struct {
	Matched int64              `json:"matched"`
	Event   *model.StatusEvent `json:"-"`
}

// Service is safe for concurrent use.
type Service struct {
	store    storage.Interface
	notifier Notifier
}

// NewService creates an ingestion service. notifier may be nil.
func NewService(store storage.Interface, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
	}
}

// ReceiveMessage records an inbound SMS. With a message id the write is an
// upsert, so re-delivery from a device does not create duplicates.
func (s *Service) ReceiveMessage(ctx context.Context, endpointRef string, raw json.RawMessage) (*model.Message, error) {
	in := InboundMessage{}
	if err := decode(raw, &in); err != nil {
		return nil, s.done(PathMessage, err)
	}
	if strings.TrimSpace(in.From) == "" {
		return nil, s.done(PathMessage, newValidationError("from", "is required"))
	}
	if in.Body == "" {
		return nil, s.done(PathMessage, newValidationError("message", "is required"))
	}

	line := in.Line
	if line == "" {
		line = in.Device
	}

	m := &model.Message{
		MessageID:   in.MessageID,
		Direction:   model.DirectionIn,
		Kind:        model.KindSMS,
		EndpointRef: endpointRef,
		FromAddress: in.From,
		ToAddress:   in.To,
		Line:        line,
		Body:        in.Body,
		Status:      model.StatusReceived,
		Payload:     raw,
	}
	if err := s.store.Messages().Upsert(ctx, m); err != nil {
		return nil, s.done(PathMessage, errors.Wrap(err, "failed to store inbound message"))
	}

	log.WithFields(log.Fields{
		"message_id":   m.MessageID,
		"endpoint_ref": endpointRef,
	}).Info("ingest stored inbound message")

	return m, s.done(PathMessage, nil)
}

// ReceiveStatus applies a delivery receipt. The status event is appended
// whether or not a local message matched.
func (s *Service) ReceiveStatus(ctx context.Context, endpointRef string, raw json.RawMessage) (*StatusReceipt, error) {
	in := StatusCallback{}
	if err := decode(raw, &in); err != nil {
		return nil, s.done(PathStatus, err)
	}
	if strings.TrimSpace(in.MessageID) == "" {
		return nil, s.done(PathStatus, newValidationError("messageId", "is required"))
	}

	status := model.Status(in.Status)
	if status == "" {
		status = "unknown"
	}

	matched, updateErr := s.store.Messages().UpdateStatus(ctx, in.MessageID, status, in.Error)
	if updateErr != nil {
		log.WithError(updateErr).WithField("message_id", in.MessageID).Error("ingest failed to update message status")
	}

	event := &model.StatusEvent{
		MessageID: in.MessageID,
		Status:    status,
		Error:     in.Error,
		Raw:       raw,
	}
	if err := s.store.StatusEvents().Append(ctx, event); err != nil {
		return nil, s.done(PathStatus, errors.Wrap(err, "failed to append status event"))
	}
	if updateErr != nil {
		return nil, s.done(PathStatus, errors.Wrap(updateErr, "failed to update message status"))
	}

	log.WithFields(log.Fields{
		"message_id":   in.MessageID,
		"status":       status,
		"matched":      matched,
		"endpoint_ref": endpointRef,
	}).Info("ingest recorded status callback")

	if s.notifier != nil {
		s.notifier.MessageStatusChanged(&model.Message{
			MessageID:   in.MessageID,
			Direction:   model.DirectionOut,
			EndpointRef: endpointRef,
			Status:      status,
			Error:       in.Error,
		})
	}

	return &StatusReceipt{Matched: matched, Event: event}, s.done(PathStatus, nil)
}

// ReceiveCallLog records a call. Only the origin address is required.
func (s *Service) ReceiveCallLog(ctx context.Context, endpointRef string, raw json.RawMessage) (*model.CallLog, error) {
	in := CallLogEntry{}
	if err := decode(raw, &in); err != nil {
		return nil, s.done(PathCallLog, err)
	}
	if strings.TrimSpace(in.From) == "" {
		return nil, s.done(PathCallLog, newValidationError("from", "is required"))
	}

	m := &model.CallLog{
		EndpointRef:     endpointRef,
		FromAddress:     in.From,
		ToAddress:       in.To,
		Direction:       model.Direction(parseDirection(in.Direction)),
		DurationSeconds: parseDuration(in.Duration),
		StartedAt:       parseTime(in.StartedAt),
		EndedAt:         parseTime(in.EndedAt),
		Raw:             raw,
	}
	if err := s.store.CallLogs().Create(ctx, m); err != nil {
		return nil, s.done(PathCallLog, errors.Wrap(err, "failed to store call log"))
	}

	return m, s.done(PathCallLog, nil)
}

func (s *Service) done(path string, err error) error {
	result := "ok"
	switch {
	case err == nil:
	case IsValidationError(err):
		result = "invalid"
	default:
		result = "error"
	}
	metrics.IngestedTotal.WithLabelValues(path, result).Inc()
	return err
}
