package controlchannel

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/proto"
	"github.com/nsyszr/smsrelay/pkg/metrics"
	"github.com/nsyszr/smsrelay/pkg/model"
	log "github.com/sirupsen/logrus"
)

// authorizeTimeout bounds the token store lookup of a HELLO.
const authorizeTimeout = 5 * time.Second

// RegisterConnection authorizes a link that sent HELLO, adds it to the
// registry and returns the connection id and WELCOME details.
func (ctrl *Controller) RegisterConnection(cc *ControlChannel, realm string, hello proto.HelloDetails) (string, interface{}, error) {
	hint := hello.Kind
	if hint == "" {
		hint = cc.info.Hint
	}

	var kind model.ConnectionKind
	if cc.info.Preauthorized {
		kind = ctrl.gate.ClassifyLink(cc.info.Headers, hint)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), authorizeTimeout)
		ok, k := ctrl.gate.AuthorizeLink(ctx, hello.Token, cc.info.Headers, hint, cc.info.Diagnostics)
		cancel()
		if !ok {
			return "", nil, proto.NewRegistrationError(proto.ErrReasonUnauthorized, "token rejected")
		}
		kind = k
	}

	metadata := make(map[string]string, len(cc.info.Metadata)+1)
	for k, v := range cc.info.Metadata {
		metadata[k] = v
	}
	if realm != "" {
		metadata["realm"] = realm
	}

	id := uuid.NewString()

	// Tell the control channel that the registration is admitted before
	// the link becomes a relay candidate.
	cc.admitRegistration(id, kind)
	ctrl.registry.Register(id, kind, metadata, cc)
	metrics.Connections.WithLabelValues(string(kind)).Inc()

	log.WithFields(log.Fields{
		"connection_id": id,
		"kind":          kind,
		"remote_ip":     cc.info.Diagnostics.RemoteIP,
	}).Info("controller added a new control channel")

	ctrl.notify(id, DeviceStatusConnected)

	details := &proto.WelcomeDetails{
		Kind:           string(kind),
		SessionTimeout: int(ctrl.opts.SessionTimeout / time.Second),
		PingInterval:   int(ctrl.opts.PingInterval / time.Second),
		PongTimeout:    int(ctrl.opts.PongTimeout / time.Second),
	}
	return id, details, nil
}

// UnregisterConnection removes a link from the registry.
func (ctrl *Controller) UnregisterConnection(id string, kind model.ConnectionKind) {
	ctrl.notify(id, DeviceStatusDisconnected)
	ctrl.registry.Unregister(id)
	metrics.Connections.WithLabelValues(string(kind)).Dec()

	log.WithField("connection_id", id).Info("controller removed the control channel")
}

func (ctrl *Controller) notify(id, status string) {
	if ctrl.notifier == nil {
		return
	}
	if c, ok := ctrl.registry.Get(id); ok {
		ctrl.notifier.DeviceStatusChanged(c, status)
	}
}
