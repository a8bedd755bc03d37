// Package events publishes device and message status changes on NATS.
package events

import (
	"encoding/json"
	"time"

	"github.com/nsyszr/smsrelay/pkg/devicecontrol/registry"
	"github.com/nsyszr/smsrelay/pkg/message"
	"github.com/nsyszr/smsrelay/pkg/model"
	log "github.com/sirupsen/logrus"
)

// Publisher is the subset of *nats.Conn used to emit events.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Notifier publishes events. A Notifier without publisher drops every
// event, which is how a relay without NATS runs.
type Notifier struct {
	pub Publisher
	now func() time.Time
}

// New creates a notifier. pub may be nil.
func New(pub Publisher) *Notifier {
	return &Notifier{
		pub: pub,
		now: func() time.Time { return time.Now().Round(time.Second).UTC() },
	}
}

// DeviceStatusChanged publishes a connect or disconnect of a link.
func (n *Notifier) DeviceStatusChanged(conn registry.Connection, status string) {
	n.publish(message.SubjectDeviceStatus, message.EventMessage{
		SourceType: message.SourceTypeDevice,
		SourceID:   conn.ID,
		Timestamp:  n.now(),
		Details: &message.DeviceStatusDetails{
			Status:         status,
			Kind:           string(conn.Kind),
			ConnectedAt:    conn.ConnectedAt,
			LastActivityAt: conn.LastActivityAt,
		},
	})
}

// MessageStatusChanged publishes a status transition of a message.
func (n *Notifier) MessageStatusChanged(m *model.Message) {
	sourceType, sourceID := message.SourceTypeSystem, ""
	if m.Direction == model.DirectionIn || m.EndpointRef != "" {
		sourceType, sourceID = message.SourceTypeDevice, m.EndpointRef
	}

	n.publish(message.SubjectMessageStatus, message.EventMessage{
		SourceType: sourceType,
		SourceID:   sourceID,
		Timestamp:  n.now(),
		Details: &message.MessageStatusDetails{
			MessageID:   m.MessageID,
			Direction:   string(m.Direction),
			Kind:        string(m.Kind),
			Status:      string(m.Status),
			Error:       m.Error,
			EndpointRef: m.EndpointRef,
		},
	})
}

func (n *Notifier) publish(subj string, msg message.EventMessage) {
	if n == nil || n.pub == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("events could not marshal event for '%s': %v", subj, err)
		return
	}

	if err := n.pub.Publish(subj, data); err != nil {
		log.Errorf("events could not publish to '%s': %v", subj, err)
	}
}
