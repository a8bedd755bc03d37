// Package natsio implements the operator boundary over NATS request/reply.
package natsio

import (
	"context"
	"encoding/json"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/smsrelay/pkg/client"
	"github.com/nsyszr/smsrelay/pkg/message"
	"github.com/pkg/errors"
)

type Config struct {
	URL string
	// Timeout bounds a request when the context carries no deadline. It
	// has to cover every candidate the relay may try.
	Timeout time.Duration
}

type natsClient struct {
	cfg *Config
	nc  *nats.Conn
}

func New(cfg *Config) (client.Interface, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("smsrelay client"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to nats")
	}
	return &natsClient{
		cfg: cfg,
		nc:  nc,
	}, nil
}

func (c *natsClient) Send(ctx context.Context, req message.SendRequest) (*message.RelayReply, error) {
	return c.request(ctx, message.SubjectSend, req)
}

func (c *natsClient) PlaceCall(ctx context.Context, req message.CallRequest) (*message.RelayReply, error) {
	return c.request(ctx, message.SubjectCall, req)
}

func (c *natsClient) Close() {
	c.nc.Close()
}

func (c *natsClient) request(ctx context.Context, subj string, req interface{}) (*message.RelayReply, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	if _, ok := ctx.Deadline(); !ok && c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	msg, err := c.nc.RequestWithContext(ctx, subj, data)
	if err != nil {
		return nil, errors.Wrapf(err, "request on '%s' failed", subj)
	}

	return decodeReply(msg.Data)
}

func decodeReply(data []byte) (*message.RelayReply, error) {
	rep := &message.RelayReply{}
	if err := json.Unmarshal(data, rep); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal reply")
	}
	if rep.Status == message.ReplyStatusError {
		return rep, errors.Errorf("relay rejected the request: %s", rep.ErrorReason)
	}
	return rep, nil
}
