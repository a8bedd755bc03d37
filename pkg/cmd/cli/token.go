package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nsyszr/smsrelay/config"
	"github.com/nsyszr/smsrelay/pkg/authority"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/nsyszr/smsrelay/pkg/storage/postgres"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type TokenHandler struct {
	c *config.Config
}

func newTokenHandler(c *config.Config) *TokenHandler {
	return &TokenHandler{c: c}
}

func (h *TokenHandler) Show(cmd *cobra.Command, args []string) {
	useColoredOutput()

	err := h.withTokenStore(func(ctx context.Context, tokens storage.TokenStore) error {
		token, err := tokens.Current(ctx)
		if err != nil {
			return err
		}
		if token == "" {
			log.Warn("No token is set. Every link and request is rejected until one is rotated in.")
			return nil
		}
		fmt.Println(token)
		return nil
	})
	if err != nil {
		log.Errorf("An error occurred while reading the token: %s", err)
		os.Exit(1)
	}
}

func (h *TokenHandler) Rotate(cmd *cobra.Command, args []string) {
	useColoredOutput()

	err := h.withTokenStore(func(ctx context.Context, tokens storage.TokenStore) error {
		token, err := RotateToken(ctx, tokens)
		if err != nil {
			return err
		}
		log.Info("Token rotated. Previous tokens are no longer accepted.")
		fmt.Println(token)
		return nil
	})
	if err != nil {
		log.Errorf("An error occurred while rotating the token: %s", err)
		os.Exit(1)
	}
}

// RotateToken stores a freshly generated token and returns it.
func RotateToken(ctx context.Context, tokens storage.TokenStore) (string, error) {
	token, err := authority.GenerateToken()
	if err != nil {
		return "", err
	}
	if err := tokens.Set(ctx, token); err != nil {
		return "", errors.Wrap(err, "failed to store token")
	}
	return token, nil
}

func (h *TokenHandler) withTokenStore(fn func(context.Context, storage.TokenStore) error) error {
	if h.c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set, the in-memory token store only lives inside a running relay")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, h.c.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.EnsureMigrated(db); err != nil {
		return err
	}

	return fn(ctx, postgres.NewStore(db).Tokens())
}
