package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-causality"
	"github.com/goliatone/go-causality/activitymap"
	"github.com/goliatone/go-causality/directory"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "causalityd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("causalityd", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config file")
	addr := flags.String("addr", "", "listen address, overrides config")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := causality.LoadSettings(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := causality.DefaultLogger()
	metrics := causality.NewMetrics()

	dir := directory.NewClient(
		cfg.GetDirectoryURL(),
		directory.WithTimeout(cfg.GetDirectoryTimeout()),
		directory.WithLogger(logger),
	)

	resolver := causality.NewResolver(
		dir,
		causality.NewTokenServiceFromConfig(cfg, logger),
		causality.WithResolverLogger(logger),
		causality.WithResolverMetrics(metrics),
		causality.WithResolverActivitySink(activitymap.Sink(func(record activitymap.Normalized) error {
			logger.Debug("activity %s", print.MaybePrettyJSON(record))
			return nil
		})),
	)

	controller := causality.NewTokenController(
		resolver,
		causality.WithControllerLogger(logger),
		causality.WithControllerMetrics(metrics),
		causality.WithControllerTokenPath(cfg.GetTokenPath()),
	)

	var app *fiber.App
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app = router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "causalityd",
			DisableStartupMessage: true,
			ReadTimeout:           15 * time.Second,
			WriteTimeout:          15 * time.Second,
		}))
		return app
	})

	causality.RegisterRoutes(srv.Router(), controller)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("causalityd listening on %s", cfg.GetAddr())
		errCh <- srv.Serve(cfg.GetAddr())
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("causalityd shutting down on %s", sig)
	}

	if app == nil {
		return nil
	}
	return app.ShutdownWithTimeout(10 * time.Second)
}
