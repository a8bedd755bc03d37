package model

// ConnectionKind classifies a live link. The classification is a heuristic
// and callers must treat it as best effort.
type ConnectionKind string

const (
	ConnectionKindDevice          ConnectionKind = "device"
	ConnectionKindEphemeralClient ConnectionKind = "ephemeral_client"
)

// ParseConnectionKind returns the kind for a recognised hint. Hints are
// matched case sensitively and a few aliases used by test tooling are
// accepted.
func ParseConnectionKind(hint string) (ConnectionKind, bool) {
	switch hint {
	case "device", "phone", "gateway":
		return ConnectionKindDevice, true
	case "ephemeral_client", "ephemeral", "client", "test", "browser":
		return ConnectionKindEphemeralClient, true
	}
	return "", false
}
