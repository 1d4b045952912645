package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/amqpwire/internal/admin"
	"github.com/danmuck/amqpwire/internal/client"
	"github.com/danmuck/amqpwire/internal/config"
	"github.com/danmuck/amqpwire/internal/logging"
	"github.com/danmuck/amqpwire/internal/observability"
	"github.com/danmuck/amqpwire/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	app := cli.NewApp()
	app.Name = "amqpctl"
	app.Usage = "Hold a supervised AMQP 0-9-1 connection and expose its write pipeline state."
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "cmd/amqpctl/config.toml",
			Usage:   "the amqpctl config file",
		},
		&cli.StringFlag{
			Name:  "admin-addr",
			Usage: "the admin HTTP listen address, overrides admin_addr",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "the log level (trace|debug|info|warn|error)",
		},
	}
	app.Before = setupLogging
	app.Action = runCmd
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Connect to the broker and serve the admin API",
			Action: runCmd,
		},
		{
			Name:  "config",
			Usage: "Write or validate config files",
			Subcommands: []*cli.Command{
				{
					Name:   "init",
					Usage:  "Write a config template",
					Action: configInitCmd,
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "kind",
							Value: "client",
							Usage: "the template kind: client|tool",
						},
						&cli.StringFlag{
							Name:     "output",
							Aliases:  []string{"o"},
							Required: true,
							Usage:    "the output path",
						},
						&cli.BoolFlag{
							Name:  "force",
							Usage: "overwrite an existing file",
						},
					},
				},
				{
					Name:   "validate",
					Usage:  "Validate a client config file",
					Action: configValidateCmd,
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:     "input",
							Aliases:  []string{"i"},
							Required: true,
							Usage:    "the client config path",
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "amqpctl: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) error {
	raw := c.String("log-level")
	if raw == "" {
		logging.ConfigureRuntime()
		return nil
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return fmt.Errorf("parse log-level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	observability.InitLogger("amqpctl", level)
	return nil
}

func runCmd(c *cli.Context) error {
	toolCfg, err := loadToolConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("admin-addr") {
		toolCfg.AdminAddr = c.String("admin-addr")
	}
	clientCfg, err := config.LoadClientConfig(toolCfg.ClientConfig)
	if err != nil {
		return err
	}

	dcfg := dialerConfig(toolCfg, clientCfg)
	dialer, err := client.NewDialer(dcfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := client.NewSupervisor(dialer, client.SupervisorOptions{
		OnRecovered: func(conn *session.Connection) {
			log.Info().Str("conn", conn.ID()).Msg("amqpctl connection replaced")
		},
		OnGiveUp: func(err error) {
			log.Error().Err(err).Msg("amqpctl giving up on broker")
			stop()
		},
	})
	if err := sup.Start(ctx); err != nil {
		return err
	}
	defer sup.Close()

	hb := client.Heartbeater{Sender: sup, Interval: dcfg.Session.HeartbeatInterval}
	errCh := make(chan error, 2)
	go func() { errCh <- hb.Run(ctx) }()

	var srv *admin.Server
	if toolCfg.AdminAddr != "" {
		srv = admin.NewServer(clientCfg.Name, toolCfg.AdminAddr, sup, toolCfg.CorsOrigins)
		go func() { errCh <- srv.Serve() }()
	}

	log.Info().
		Str("name", clientCfg.Name).
		Str("broker", clientCfg.Address).
		Str("admin", toolCfg.AdminAddr).
		Msg("amqpctl running")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("amqpctl admin shutdown")
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func dialerConfig(toolCfg toolConfig, clientCfg config.ClientConfig) client.DialerConfig {
	dcfg := client.DialerConfig{
		Address:            clientCfg.Address,
		Session:            clientCfg.SessionConfig(),
		MaxConnectAttempts: clientCfg.MaxConnectAttempts,
	}
	if toolCfg.Heartbeat > 0 {
		dcfg.Session.HeartbeatInterval = toolCfg.Heartbeat
	}
	if toolCfg.MaxConnectAttempts != nil {
		dcfg.MaxConnectAttempts = *toolCfg.MaxConnectAttempts
	}
	return dcfg
}

func configInitCmd(c *cli.Context) error {
	if err := config.WriteTemplate(c.String("output"), c.String("kind"), c.Bool("force")); err != nil {
		return err
	}
	log.Info().Str("kind", c.String("kind")).Str("path", c.String("output")).Msg("amqpctl wrote config template")
	return nil
}

func configValidateCmd(c *cli.Context) error {
	cfg, err := config.LoadClientConfig(c.String("input"))
	if err != nil {
		return err
	}
	log.Info().Str("path", c.String("input")).Str("address", cfg.Address).Msg("amqpctl config valid")
	return nil
}
