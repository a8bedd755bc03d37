package natsio

import (
	"context"
	"encoding/json"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/smsrelay/pkg/message"
	"github.com/nsyszr/smsrelay/pkg/relay"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Relayer is the relay operation set served over NATS.
type Relayer interface {
	Send(ctx context.Context, to, body, lineHint, messageID string) relay.Result
	PlaceCall(ctx context.Context, to, messageID string) relay.Result
}

// Responder answers operator requests arriving on NATS.
type Responder struct {
	relay Relayer
	subs  []*nats.Subscription
}

func NewResponder(r Relayer) *Responder {
	return &Responder{relay: r}
}

// Subscribe joins the relay queue group on the send and call subjects.
func (r *Responder) Subscribe(nc *nats.Conn) error {
	if nc == nil {
		return errors.New("responder: connection to nats is missing")
	}

	handlers := map[string]func(context.Context, []byte) message.RelayReply{
		message.SubjectSend: r.HandleSend,
		message.SubjectCall: r.HandleCall,
	}
	for subj, handle := range handlers {
		handle := handle
		sub, err := nc.QueueSubscribe(subj, message.QueueRelay, func(msg *nats.Msg) {
			// A relay blocks for up to one ack timeout per candidate, so the
			// subscription callback must not wait for it.
			go r.respond(msg, handle)
		})
		if err != nil {
			return errors.Wrapf(err, "failed to subscribe '%s'", subj)
		}
		r.subs = append(r.subs, sub)
	}

	return nil
}

// Unsubscribe leaves the queue group.
func (r *Responder) Unsubscribe() {
	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warnf("responder could not unsubscribe '%s': %v", sub.Subject, err)
		}
	}
	r.subs = nil
}

func (r *Responder) respond(msg *nats.Msg, handle func(context.Context, []byte) message.RelayReply) {
	start := time.Now()
	rep := handle(context.Background(), msg.Data)

	data, err := json.Marshal(rep)
	if err != nil {
		log.Errorf("responder failed to marshal reply: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Errorf("responder failed to respond on '%s': %v", msg.Subject, err)
		return
	}
	log.Debugf("responder answered '%s' in %s", msg.Subject, time.Since(start))
}

// HandleSend decodes a send request and relays it.
func (r *Responder) HandleSend(ctx context.Context, data []byte) message.RelayReply {
	req := message.SendRequest{}
	if err := json.Unmarshal(data, &req); err != nil {
		return replyFailed("ERR_INVALID_REQUEST", err.Error())
	}
	return replyFromResult(r.relay.Send(ctx, req.To, req.Message, req.Line, req.MessageID))
}

// HandleCall decodes a call request and relays it.
func (r *Responder) HandleCall(ctx context.Context, data []byte) message.RelayReply {
	req := message.CallRequest{}
	if err := json.Unmarshal(data, &req); err != nil {
		return replyFailed("ERR_INVALID_REQUEST", err.Error())
	}
	return replyFromResult(r.relay.PlaceCall(ctx, req.To, req.MessageID))
}

type errorDetails struct {
	Message string `json:"message"`
}

func replyFailed(reason, details string) message.RelayReply {
	return message.RelayReply{
		Status:       message.ReplyStatusError,
		ErrorReason:  reason,
		ErrorDetails: &errorDetails{Message: details},
	}
}

func replyFromResult(res relay.Result) message.RelayReply {
	rep := message.RelayReply{
		Status:    message.ReplyStatusSuccess,
		OK:        res.OK,
		Error:     string(res.Error),
		Detail:    res.Detail,
		MessageID: res.MessageID,
		ElapsedMs: res.ElapsedMs,
	}
	if res.AckPayload != nil {
		if raw, err := json.Marshal(res.AckPayload); err == nil {
			rep.AckPayload = raw
		}
	}
	return rep
}
