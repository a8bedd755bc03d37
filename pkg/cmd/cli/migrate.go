package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	colorable "github.com/mattn/go-colorable"
	"github.com/nsyszr/smsrelay/config"
	"github.com/nsyszr/smsrelay/pkg/storage/postgres"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type MigrateHandler struct {
	c *config.Config
}

func newMigrateHandler(c *config.Config) *MigrateHandler {
	return &MigrateHandler{c: c}
}

// getDatabaseURL prefers the positional argument and falls back to the
// configured DATABASE_URL.
func getDatabaseURL(cmd *cobra.Command, args []string, position int, fallback string) (url string) {
	if len(args) > position {
		url = args[position]
	}
	if url == "" {
		url = fallback
	}
	if url == "" {
		fmt.Println(cmd.UsageString())
	}
	return
}

func useColoredOutput() {
	log.SetLevel(log.DebugLevel)
	log.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})
	log.SetOutput(colorable.NewColorableStdout())
}

func (h *MigrateHandler) MigrateSQL(cmd *cobra.Command, args []string) {
	url := getDatabaseURL(cmd, args, 0, h.c.DatabaseURL)
	if url == "" {
		os.Exit(2) // Return missing keyword or command
	}

	useColoredOutput()

	log.Info("Applying SQL migration...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, url)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	n, err := postgres.Migrate(db)
	if err != nil {
		log.Errorf("An error occurred while running the migrations: %s", err)
		os.Exit(1)
	}
	log.Infof("Migration successful! Applied a total of %d migrations.", n)
}
