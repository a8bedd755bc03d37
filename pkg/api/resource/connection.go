package resource

import (
	"time"

	"github.com/nsyszr/smsrelay/pkg/devicecontrol/registry"
)

type ConnectionResource struct {
	ID             string            `json:"id"`
	Kind           string            `json:"kind"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ConnectedAt    time.Time         `json:"connectedAt"`
	LastActivityAt time.Time         `json:"lastActivityAt"`
}

type ConnectionListResource struct {
	Members        []*ConnectionResource `json:"members"`
	Counts         registry.Counts       `json:"counts"`
	ConnectedSince *time.Time            `json:"connectedSince,omitempty"`
}

func NewConnectionList(conns []registry.Connection, counts registry.Counts, since time.Time) (out *ConnectionListResource) {
	out = &ConnectionListResource{
		Members:        make([]*ConnectionResource, 0, len(conns)),
		Counts:         counts,
		ConnectedSince: timestamp(since),
	}

	for _, c := range conns {
		out.Members = append(out.Members, &ConnectionResource{
			ID:             c.ID,
			Kind:           string(c.Kind),
			Metadata:       c.Metadata,
			ConnectedAt:    c.ConnectedAt,
			LastActivityAt: c.LastActivityAt,
		})
	}

	return // out
}
