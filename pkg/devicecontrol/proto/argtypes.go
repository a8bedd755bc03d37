package proto

type AbortMessageDetails struct {
	Message string `json:"message"`
}

func NewAbortMessageDetails(message string) *AbortMessageDetails {
	return &AbortMessageDetails{
		Message: message,
	}
}

// HelloDetails are the recognised HELLO details.
type HelloDetails struct {
	Token string
	Kind  string
}

// ParseHelloDetails reads the token and kind hint from HELLO details. The
// hint may be sent as "kind" or "client".
func ParseHelloDetails(details interface{}) HelloDetails {
	out := HelloDetails{}
	dict, ok := details.(map[string]interface{})
	if !ok {
		return out
	}
	if s, ok := dict["token"].(string); ok {
		out.Token = s
	}
	if s, ok := dict["kind"].(string); ok {
		out.Kind = s
	} else if s, ok := dict["client"].(string); ok {
		out.Kind = s
	}
	return out
}

// WelcomeDetails tell the device how to keep the session alive.
type WelcomeDetails struct {
	Kind           string `json:"kind"`
	SessionTimeout int    `json:"session_timeout,omitempty"`
	PingInterval   int    `json:"ping_interval,omitempty"`
	PongTimeout    int    `json:"pong_max_wait_time,omitempty"`
}
