package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syncup-api/core/config"
	"syncup-api/core/logger"
	"syncup-api/core/server"
	"syncup-api/modules/event/service"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "syncup-api",
		Usage: "Group scheduling grid backend: events, availability, live heatmap.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Optional config file (yaml, json, toml)", EnvVars: []string{"SYNCUP_CONFIG"}},
		},
		Commands: []*cli.Command{
			serveCommand(),
			workerCommand(),
			migrateCommand(),
			slotsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("Main:Run", "error", err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Init(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Options{Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})
	return cfg, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "with-worker", Usage: "Also process queued tasks in this process."},
			&cli.BoolFlag{Name: "migrate", Usage: "Apply pending migrations before serving."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := setup(c)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(c)
			defer stop()
			return server.Run(ctx, cfg, server.Options{WithWorker: c.Bool("with-worker"), Migrate: c.Bool("migrate")})
		},
	}
}

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Process availability writes and scheduled housekeeping.",
		Action: func(c *cli.Context) error {
			cfg, err := setup(c)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(c)
			defer stop()
			return server.RunWorker(ctx, cfg)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations.",
		Action: func(c *cli.Context) error {
			cfg, err := setup(c)
			if err != nil {
				return err
			}
			return server.Migrate(cfg)
		},
	}
}

func slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "Print the 15-minute time axis for an hour range.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "start", Value: "09:00"},
			&cli.StringFlag{Name: "end", Value: "18:00"},
		},
		Action: func(c *cli.Context) error {
			axis := service.GenerateSlots(c.String("start"), c.String("end"))
			if len(axis) == 0 {
				return fmt.Errorf("empty axis for %s-%s", c.String("start"), c.String("end"))
			}
			for i, slot := range axis {
				if i%service.SlotsPerHour == 0 {
					fmt.Fprintf(c.App.Writer, "%s  %s\n", slot, service.FormatTo12Hour(slot))
					continue
				}
				fmt.Fprintln(c.App.Writer, slot)
			}
			return nil
		},
	}
}
