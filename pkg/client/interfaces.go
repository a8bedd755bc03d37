// Package client is the operator side of the relay: send an SMS or place a
// call and get the relay outcome back.
package client

import (
	"context"

	"github.com/nsyszr/smsrelay/pkg/message"
)

type Interface interface {
	Send(ctx context.Context, req message.SendRequest) (*message.RelayReply, error)
	PlaceCall(ctx context.Context, req message.CallRequest) (*message.RelayReply, error)
	Close()
}
