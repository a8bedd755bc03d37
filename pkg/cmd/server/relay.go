package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/smsrelay/config"
	"github.com/nsyszr/smsrelay/pkg/api"
	"github.com/nsyszr/smsrelay/pkg/authority"
	"github.com/nsyszr/smsrelay/pkg/client/natsio"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/controlchannel"
	"github.com/nsyszr/smsrelay/pkg/devicecontrol/registry"
	"github.com/nsyszr/smsrelay/pkg/events"
	"github.com/nsyszr/smsrelay/pkg/ingest"
	"github.com/nsyszr/smsrelay/pkg/metrics"
	"github.com/nsyszr/smsrelay/pkg/relay"
	"github.com/nsyszr/smsrelay/pkg/storage"
	"github.com/nsyszr/smsrelay/pkg/storage/memory"
	"github.com/nsyszr/smsrelay/pkg/storage/postgres"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type relayServer struct {
	c *config.Config

	quitCh chan bool
	doneCh chan bool

	db        *sqlx.DB
	nc        *nats.Conn
	store     storage.Interface
	responder *natsio.Responder
}

// configureLogging applies LOG_LEVEL and LOG_FORMAT to the global logger.
func configureLogging(c *config.Config) {
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func newRelayServer(c *config.Config) (*relayServer, error) {
	s := &relayServer{
		c:      c,
		quitCh: make(chan bool),
		doneCh: make(chan bool),
	}

	if err := s.openStore(); err != nil {
		return nil, err
	}

	if err := s.seedToken(); err != nil {
		s.close()
		return nil, err
	}

	if c.NATSServerURL != "" {
		nc, err := nats.Connect(c.NATSServerURL,
			nats.Name("smsrelay"),
			nats.DrainTimeout(10*time.Second),
			nats.MaxReconnects(-1),
			nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
				if sub != nil {
					log.Errorf("nats error on subject '%s': %s", sub.Subject, err)
					return
				}
				log.Errorf("nats error: %s", err)
			}),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					log.Warnf("nats disconnected: %s", err)
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Infof("nats reconnected to %s", nc.ConnectedUrl())
			}))
		if err != nil {
			s.close()
			return nil, errors.Wrap(err, "failed to connect to nats")
		}
		s.nc = nc
	} else {
		log.Warn("NATS_URL is not set, events and the NATS operator interface are disabled")
	}

	return s, nil
}

func (s *relayServer) openStore() error {
	if s.c.DatabaseURL == "" {
		log.Warn("DATABASE_URL is not set, using the in-memory store")
		s.store = memory.NewStore()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, s.c.DatabaseURL)
	if err != nil {
		return err
	}

	if s.c.MigrateOnStart {
		n, err := postgres.Migrate(db)
		if err != nil {
			db.Close()
			return err
		}
		log.Infof("applied %d migrations", n)
	} else if err := postgres.EnsureMigrated(db); err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.store = postgres.NewStore(db)
	return nil
}

// seedToken stores RELAY_TOKEN when the store holds no secret yet. A stored
// secret always wins so that rotations survive restarts.
func (s *relayServer) seedToken() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens := s.store.Tokens()
	current, err := tokens.Current(ctx)
	if err != nil {
		return err
	}
	if current != "" {
		return nil
	}
	if s.c.RelayToken == "" {
		log.Warn("no token configured, every link and request is rejected until one is rotated in")
		return nil
	}
	return tokens.Set(ctx, s.c.RelayToken)
}

func (s *relayServer) Serve() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(logger())

	metrics.MustRegister()

	var pub events.Publisher
	if s.nc != nil {
		pub = s.nc
	}
	notifier := events.New(pub)

	reg := registry.New()
	gate := authority.NewGate(s.store.Tokens(), nil)
	ing := ingest.NewService(s.store, notifier)
	rel := relay.New(reg, s.store, relay.Options{
		AckTimeout: s.c.AckTimeout,
		Notifier:   notifier,
	})

	ctrl := controlchannel.NewController(reg, gate, ing, notifier, controlchannel.Options{
		RegistrationTimeout: config.Seconds(s.c.RegistrationTimeout),
		SessionTimeout:      config.Seconds(s.c.SessionTimeout),
		PingInterval:        config.Seconds(s.c.PingInterval),
		PongTimeout:         config.Seconds(s.c.PongTimeout),
	})

	// Register the device link endpoint
	deviceControlHandler := devicecontrol.NewHandler(ctrl, gate)
	deviceControlHandler.RegisterRoutes(e)

	// Register API endpoints
	apiHandler := api.NewHandler(gate, rel, ing, s.store, reg, s.nc)
	apiHandler.RegisterRoutes(e)

	if s.nc != nil {
		s.responder = natsio.NewResponder(rel)
		if err := s.responder.Subscribe(s.nc); err != nil {
			log.Errorf("failed to subscribe the operator interface: %s", err)
		}
	}

	go func() {
		log.WithFields(log.Fields{
			"host":    s.c.BindHost,
			"port":    s.c.BindPort,
			"version": s.c.BuildVersion,
		}).Info("Starting server")

		if err := e.Start(fmt.Sprintf("%s:%d", s.c.BindHost, s.c.BindPort)); err != nil {
			log.Info("Shutting down the server")
		}
	}()

	// Wait until receiving the quit signal
	<-s.quitCh
	log.Info("Shutdown signal received")

	// Create a 10 second timeout context
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown the echo web server
	if err := e.Shutdown(ctx); err != nil {
		log.Error(err)
	}

	// We've done!
	s.doneCh <- true
}

func (s *relayServer) Shutdown() {
	if s.responder != nil {
		s.responder.Unsubscribe()
	}

	// Send the quit signal to the server.Serve() routine
	s.quitCh <- true

	// Wait up to 10 seconds
	select {
	case <-s.doneCh:
		log.Info("Shutdown server successful")
	case <-time.After(10 * time.Second):
		log.Error("Shutdown server failed")
	}

	s.close()
}

func (s *relayServer) close() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Warnf("failed to drain nats connection: %s", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}
}

func RunServeRelay(c *config.Config) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		configureLogging(c)

		s, err := newRelayServer(c)
		if err != nil {
			log.Error("failed to create new server instance: ", err)
			os.Exit(1)
		}

		go s.Serve()

		// Wait for interrupt signal to gracefully shutdown the server
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGTERM)
		<-quitCh

		// Shutdown the server
		s.Shutdown()
	}
}
