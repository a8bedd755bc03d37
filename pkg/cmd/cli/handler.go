package cli

import "github.com/nsyszr/smsrelay/config"

type Handler struct {
	Migration *MigrateHandler
	Token     *TokenHandler
	Send      *SendHandler
	Watch     *WatchHandler
}

func NewHandler(c *config.Config) *Handler {
	return &Handler{
		Migration: newMigrateHandler(c),
		Token:     newTokenHandler(c),
		Send:      newSendHandler(c),
		Watch:     newWatchHandler(c),
	}
}
