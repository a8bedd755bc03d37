// Package relay delivers outbound commands to exactly one responsive device
// link. Candidates are tried one at a time with a bounded wait each; the
// first positive acknowledgement wins and the outcome is persisted.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/proto"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/registry"
	"github.com/nsyszr/smsrelay/pkg/metrics"
	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Reason is the machine readable cause of a failed relay.
type Reason string

const (
	ReasonNoDevice       Reason = "no_device"
	ReasonNoAck          Reason = "no_ack"
	ReasonDeviceNack     Reason = "device_nack"
	ReasonLoopbackClient Reason = "loopback_client"
	ReasonInvalidRequest Reason = "invalid_request"
)

// Operations sent to devices.
const (
	OperationSendSMS   = "sms.send"
	OperationPlaceCall = "call.place"
)

// DefaultAckTimeout bounds the wait for one candidate.
const DefaultAckTimeout = 16 * time.Second

var errNoCaller = errors.New("connection is not reachable")

// Candidates lists the links that may receive a command.
type Candidates interface {
	ListByClassification(kind model.ConnectionKind) []registry.ConnectionRef
}

// Notifier is told about every persisted status transition.
type Notifier interface {
	MessageStatusChanged(m *model.Message)
}

// Command is one outbound operator action.
type Command struct {
	MessageID string
	Kind      model.Kind
	To        string
	Body      string
	Line      string
}

// Result is the caller visible outcome of a relay. Expected failures are
// reported here and never as errors.
type Result struct {
	OK           bool         `json:"ok"`
	Error        Reason       `json:"error,omitempty"`
	Detail       string       `json:"detail,omitempty"`
	AckPayload   interface{}  `json:"ackPayload,omitempty"`
	ElapsedMs    int64        `json:"elapsedMs"`
	MessageID    string       `json:"messageId,omitempty"`
	ConnectionID string       `json:"connectionId,omitempty"`
	Attempts     int          `json:"attempts"`
	Status       model.Status `json:"status,omitempty"`
}

// Options configures a Relay.
type Options struct {
	AckTimeout time.Duration
	Notifier   Notifier
}

// Relay is safe for concurrent use.
type Relay struct {
	candidates Candidates
	store      storage.Interface
	ackTimeout time.Duration
	notifier   Notifier
	now        func() time.Time
}

// New creates a relay over the given candidate source and store.
func New(candidates Candidates, store storage.Interface, opts Options) *Relay {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	return &Relay{
		candidates: candidates,
		store:      store,
		ackTimeout: opts.AckTimeout,
		notifier:   opts.Notifier,
		now:        time.Now,
	}
}

// Send relays an SMS. An empty messageID gets a generated one.
func (r *Relay) Send(ctx context.Context, to, body, lineHint, messageID string) Result {
	return r.Relay(ctx, Command{
		MessageID: messageID,
		Kind:      model.KindSMS,
		To:        to,
		Body:      body,
		Line:      lineHint,
	})
}

// PlaceCall relays a call request.
func (r *Relay) PlaceCall(ctx context.Context, to, messageID string) Result {
	return r.Relay(ctx, Command{
		MessageID: messageID,
		Kind:      model.KindCall,
		To:        to,
	})
}

// Relay delivers cmd. It returns once a candidate acknowledged positively
// or every candidate failed; the total wait is bounded by the number of
// candidates times the ack timeout.
func (r *Relay) Relay(ctx context.Context, cmd Command) Result {
	start := r.now()

	if cmd.Kind == "" {
		cmd.Kind = model.KindSMS
	}
	if cmd.To == "" || (cmd.Kind == model.KindSMS && cmd.Body == "") {
		return Result{Error: ReasonInvalidRequest, Detail: "recipient and message body are required"}
	}
	if cmd.MessageID == "" {
		cmd.MessageID = uuid.NewString()
	}

	operation, args := commandArguments(cmd)
	payload, _ := json.Marshal(args)

	msg := &model.Message{
		MessageID: cmd.MessageID,
		Direction: model.DirectionOut,
		Kind:      cmd.Kind,
		ToAddress: cmd.To,
		Line:      cmd.Line,
		Body:      cmd.Body,
		Payload:   payload,
	}

	logger := log.WithFields(log.Fields{
		"message_id": cmd.MessageID,
		"kind":       cmd.Kind,
	})

	candidates := orderCandidates(r.candidates.ListByClassification(model.ConnectionKindDevice))
	if len(candidates) == 0 {
		logger.Warn("relay found no device connection")
		res := Result{Error: ReasonNoDevice, MessageID: cmd.MessageID, Status: model.StatusNoDevice}
		return r.finish(ctx, msg, res, start, nil)
	}

	msg.Status = model.StatusQueued
	r.persist(ctx, msg, nil)

	res := Result{MessageID: cmd.MessageID}
	var lastAck interface{}

	for _, c := range candidates {
		if ctx.Err() != nil {
			logger.WithError(ctx.Err()).Warn("relay stopped before trying every candidate")
			break
		}

		res.Attempts++
		res.ConnectionID = c.ID
		metrics.RelayAttemptsTotal.Inc()

		ack, err := r.call(ctx, c, operation, args)
		if callErr, ok := err.(*proto.CallError); ok {
			logger.WithFields(log.Fields{
				"connection_id": c.ID,
				"reason":        callErr.Reason,
			}).Warn("relay candidate refused the command")
			res.Error = ReasonDeviceNack
			res.Detail = callErrorDetail(callErr)
			continue
		} else if err != nil {
			logger.WithField("connection_id", c.ID).WithError(err).Warn("relay candidate did not acknowledge")
			res.Error = ReasonNoAck
			res.Detail = err.Error()
			continue
		}

		lastAck = ack
		classified := ClassifyAck(ack)
		if classified.OK {
			res.OK = true
			res.Error = ""
			res.Detail = ""
			break
		}

		logger.WithFields(log.Fields{
			"connection_id": c.ID,
			"reason":        classified.Reason,
			"rule":          classified.Kind.String(),
		}).Warn("relay candidate acknowledged negatively")
		res.Error = classified.Reason
		res.Detail = classified.Message
	}

	res.AckPayload = lastAck
	if res.OK {
		res.Status = model.StatusDeviceAck
	} else {
		res.Status = model.StatusDeviceNack
		if res.Error == "" {
			res.Error = ReasonNoAck
		}
	}

	return r.finish(ctx, msg, res, start, lastAck)
}

func (r *Relay) call(ctx context.Context, c registry.ConnectionRef, operation string, args interface{}) (interface{}, error) {
	if c.Caller == nil {
		return nil, errNoCaller
	}

	callCtx, cancel := context.WithTimeout(ctx, r.ackTimeout)
	defer cancel()

	ack, err := c.Caller.Call(callCtx, operation, args)
	if err != nil {
		if errors.Cause(err) == context.DeadlineExceeded {
			return nil, errors.Errorf("no acknowledgement within %s", r.ackTimeout)
		}
		return nil, err
	}
	return ack, nil
}

// callErrorDetail prefers the message the device put into its ERROR details
// and falls back to the error reason.
func callErrorDetail(e *proto.CallError) string {
	if details, ok := e.Details.(map[string]interface{}); ok {
		if msg := fieldMessage(details, "message"); msg != "" {
			return msg
		}
	}
	return e.Reason
}

// finish persists the terminal state. Persistence failures are logged and
// never change the result reported to the caller.
func (r *Relay) finish(ctx context.Context, msg *model.Message, res Result, start time.Time, ack interface{}) Result {
	res.ElapsedMs = r.now().Sub(start).Milliseconds()

	elapsed := res.ElapsedMs
	msg.Status = res.Status
	msg.Error = errorText(res.Error, res.Detail)
	msg.EndpointRef = res.ConnectionID
	msg.ElapsedMs = &elapsed

	raw, err := json.Marshal(map[string]interface{}{
		"ok":           res.OK,
		"error":        res.Error,
		"detail":       res.Detail,
		"ack":          ack,
		"connectionId": res.ConnectionID,
		"attempts":     res.Attempts,
		"elapsedMs":    res.ElapsedMs,
	})
	if err != nil {
		raw = nil
	}
	r.persist(ctx, msg, raw)

	metrics.RelayOutcomesTotal.WithLabelValues(string(msg.Kind), string(res.Status)).Inc()
	metrics.RelayDurationSeconds.WithLabelValues(string(msg.Kind)).Observe(float64(res.ElapsedMs) / 1000)

	return res
}

// persist writes the message row and its status event. The store context is
// detached from cancellation so a caller that gave up does not leave the
// row queued.
func (r *Relay) persist(ctx context.Context, msg *model.Message, raw json.RawMessage) {
	storeCtx := context.WithoutCancel(ctx)
	logger := log.WithFields(log.Fields{
		"message_id": msg.MessageID,
		"status":     msg.Status,
	})

	if err := r.store.Messages().Upsert(storeCtx, msg); err != nil {
		logger.WithError(err).Error("relay failed to persist message")
	}

	event := &model.StatusEvent{
		MessageID: msg.MessageID,
		Status:    msg.Status,
		Error:     msg.Error,
		Raw:       raw,
	}
	if err := r.store.StatusEvents().Append(storeCtx, event); err != nil {
		logger.WithError(err).Error("relay failed to append status event")
	}

	if r.notifier != nil {
		r.notifier.MessageStatusChanged(msg)
	}
}

// orderCandidates puts the most recently connected link first and keeps
// the remaining links in registry order.
func orderCandidates(in []registry.ConnectionRef) []registry.ConnectionRef {
	if len(in) < 2 {
		return in
	}

	newest := 0
	for i, c := range in {
		if !c.ConnectedAt.Before(in[newest].ConnectedAt) {
			newest = i
		}
	}

	out := make([]registry.ConnectionRef, 0, len(in))
	out = append(out, in[newest])
	for i, c := range in {
		if i != newest {
			out = append(out, c)
		}
	}
	return out
}

func commandArguments(cmd Command) (string, map[string]interface{}) {
	if cmd.Kind == model.KindCall {
		return OperationPlaceCall, map[string]interface{}{
			"messageId": cmd.MessageID,
			"to":        cmd.To,
		}
	}

	args := map[string]interface{}{
		"messageId": cmd.MessageID,
		"to":        cmd.To,
		"message":   cmd.Body,
	}
	if cmd.Line != "" {
		args["line"] = cmd.Line
	}
	return OperationSendSMS, args
}

func errorText(reason Reason, detail string) string {
	switch {
	case reason == "":
		return ""
	case detail == "":
		return string(reason)
	default:
		return fmt.Sprintf("%s: %s", reason, detail)
	}
}
