package controlchannel

import (
	"net/http"
	"time"

	"github.com/nsyszr/smsrelay/pkg/authority"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/controlchannel/websocket"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/registry"
	"github.com/nsyszr/smsrelay/pkg/ingest"
)

// Device status values passed to a Notifier.
const (
	DeviceStatusConnected    = "CONNECTED"
	DeviceStatusDisconnected = "DISCONNECTED"
)

// Transport carries frames of a single link. The websocket driver is the
// production implementation.
type Transport interface {
	Receive() <-chan *websocket.InboxMessage
	Send(msg *websocket.OutboxMessage) bool
	Done() <-chan struct{}
	Stop()
}

// Notifier is told when a link joins or leaves the registry.
type Notifier interface {
	DeviceStatusChanged(conn registry.Connection, status string)
}

// Options configure the session lifecycle of every link.
type Options struct {
	// RegistrationTimeout bounds the time between upgrade and HELLO.
	RegistrationTimeout time.Duration
	// SessionTimeout closes a registered link without any inbound frame.
	SessionTimeout time.Duration
	// PingInterval and PongTimeout are advertised to the device in WELCOME.
	PingInterval time.Duration
	PongTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.RegistrationTimeout <= 0 {
		o.RegistrationTimeout = 10 * time.Second
	}
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = 120 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 104 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 16 * time.Second
	}
	return o
}

// LinkInfo holds what is known about a link at upgrade time.
type LinkInfo struct {
	// Preauthorized is set when a valid token was presented with the
	// upgrade. Otherwise HELLO must carry it.
	Preauthorized bool
	Headers       http.Header
	Hint          string
	Diagnostics   authority.Diagnostics
	Metadata      map[string]string
}

type Controller struct {
	registry *registry.Registry
	gate     *authority.Gate
	ingest   *ingest.Service
	notifier Notifier
	opts     Options
}

// NewController creates the controller of all device links. notifier may be
// nil.
func NewController(reg *registry.Registry, gate *authority.Gate, ing *ingest.Service, notifier Notifier, opts Options) *Controller {
	return &Controller{
		registry: reg,
		gate:     gate,
		ingest:   ing,
		notifier: notifier,
		opts:     opts.withDefaults(),
	}
}

// NewControlChannel creates a control channel for a started transport. The
// caller runs Serve until the link ends.
func (ctrl *Controller) NewControlChannel(t Transport, info LinkInfo) *ControlChannel {
	return &ControlChannel{
		ctrl:           ctrl,
		transport:      t,
		info:           info,
		status:         StatusEstablished,
		registeredCh:   make(chan struct{}),
		activityCh:     make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		nextRequestID:  1,
		resultChannels: make(map[int32]chan interface{}),
	}
}
