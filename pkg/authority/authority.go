// Package authority decides whether an inbound link or request is trusted
// and classifies links. Trust is a single shared secret held by the token
// store; rotating it invalidates every previous token at once.
package authority

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/nsyszr/smsrelay/pkg/metrics"
	"github.com/nsyszr/smsrelay/pkg/model"
	"github.com/nsyszr/smsrelay/pkg/storage"
	log "github.com/sirupsen/logrus"
)

// Boundary names used in diagnostics and metrics.
const (
	BoundaryLink    = "link"
	BoundaryRequest = "request"
)

// Classifier decides the kind of a link from its headers and an optional
// caller declared hint.
type Classifier func(headers http.Header, hint string) model.ConnectionKind

// DefaultClassifier prefers a recognised hint. Without one, a link carrying
// a browser style Origin header is an ephemeral client and anything else is
// a device.
//
// The Origin rule assumes real devices never send Origin. That has not been
// verified for every client stack.
func DefaultClassifier(headers http.Header, hint string) model.ConnectionKind {
	if kind, ok := model.ParseConnectionKind(hint); ok {
		return kind
	}
	if headers != nil && headers.Get("Origin") != "" {
		return model.ConnectionKindEphemeralClient
	}
	return model.ConnectionKindDevice
}

// Diagnostics is the redacted context logged for a rejected caller. It never
// carries the presented token.
type Diagnostics struct {
	UserAgent string
	Origin    string
	RemoteIP  string
	Path      string
}

// DiagnosticsFromRequest collects the redacted context of an HTTP request.
func DiagnosticsFromRequest(r *http.Request, remoteIP string) Diagnostics {
	return Diagnostics{
		UserAgent: r.UserAgent(),
		Origin:    r.Header.Get("Origin"),
		RemoteIP:  remoteIP,
		Path:      r.URL.Path,
	}
}

// Gate validates tokens against the token store.
type Gate struct {
	tokens   storage.TokenStore
	classify Classifier
}

// NewGate creates a gate. A nil classifier selects DefaultClassifier.
func NewGate(tokens storage.TokenStore, classify Classifier) *Gate {
	if classify == nil {
		classify = DefaultClassifier
	}
	return &Gate{
		tokens:   tokens,
		classify: classify,
	}
}

// AuthorizeLink checks the token of a persistent link and classifies it.
// The classification is only meaningful when ok is true.
func (g *Gate) AuthorizeLink(ctx context.Context, token string, headers http.Header, hint string, diag Diagnostics) (bool, model.ConnectionKind) {
	if !g.check(ctx, token, BoundaryLink, diag) {
		return false, ""
	}
	return true, g.ClassifyLink(headers, hint)
}

// AuthorizeRequest checks the token of a stateless request.
func (g *Gate) AuthorizeRequest(ctx context.Context, token string, diag Diagnostics) bool {
	return g.check(ctx, token, BoundaryRequest, diag)
}

// ClassifyLink applies the configured classification strategy.
func (g *Gate) ClassifyLink(headers http.Header, hint string) model.ConnectionKind {
	return g.classify(headers, hint)
}

func (g *Gate) check(ctx context.Context, token, boundary string, diag Diagnostics) bool {
	current, err := g.tokens.Current(ctx)
	if err != nil {
		log.WithError(err).Error("authority could not read the current token, rejecting")
		reject(boundary, "token store unavailable", diag)
		return false
	}

	if token == "" || current == "" {
		reject(boundary, "token missing", diag)
		return false
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(current)) != 1 {
		reject(boundary, "token mismatch", diag)
		return false
	}

	return true
}

func reject(boundary, reason string, diag Diagnostics) {
	metrics.AuthFailuresTotal.WithLabelValues(boundary).Inc()
	log.WithFields(log.Fields{
		"boundary":   boundary,
		"reason":     reason,
		"user_agent": diag.UserAgent,
		"origin":     diag.Origin,
		"remote_ip":  diag.RemoteIP,
		"path":       diag.Path,
	}).Warn("authority rejected unauthorized caller")
}

// ExtractToken returns the token presented with an HTTP request. It accepts
// the token query parameter, a bearer Authorization header and the
// X-Relay-Token header, in that order.
func ExtractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			return strings.TrimSpace(auth[7:])
		}
		return strings.TrimSpace(auth)
	}
	return r.Header.Get("X-Relay-Token")
}
