// TableBot - table-service gadget daemon
// Serves the companion link, HTTP API and dashboard stream, and optionally
// takes directives over MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-tablebot/internal/config"
	"github.com/teslashibe/go-tablebot/internal/log"
	"github.com/teslashibe/go-tablebot/pkg/ev3"
	"github.com/teslashibe/go-tablebot/pkg/gadget"
	"github.com/teslashibe/go-tablebot/pkg/metrics"
	"github.com/teslashibe/go-tablebot/pkg/mqttlink"
	"github.com/teslashibe/go-tablebot/pkg/robot"
	"github.com/teslashibe/go-tablebot/pkg/web"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "tablebot",
		Short:        "Table-service gadget daemon",
		Long:         "TableBot drives a condiment rack on command from a paired companion, over WebSocket, HTTP or MQTT.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file.")
	config.AddFlags(cmd.Flags())
	return cmd
}

// run wires the gadget to its transports and serves until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	log.Setup(log.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		log.Warn("failed to set GOMAXPROCS", "error", err)
	}

	hw, err := buildHardware(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	g := gadget.New(hw, gadget.Options{
		Name:    cfg.Gadget.Name,
		Pause:   cfg.Gadget.Pause,
		Metrics: m,
	})

	srv := web.NewServer(cfg.Web.Addr, g, m)

	var mqtt *mqttlink.Link
	if cfg.MQTT.Broker != "" {
		mqtt, err = mqttlink.New(mqttlink.Config{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Gadget:      cfg.Gadget.Slug(),
		}, g)
		if err != nil {
			return err
		}
		unsubscribe := g.Subscribe(mqtt.Forward)
		defer unsubscribe()
	}

	log.Info("tablebot starting", "name", g.Name(), "backend", cfg.Backend, "addr", cfg.Web.Addr,
		"mqtt", cfg.MQTT.Broker != "")

	g.Startup()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Run(ctx)
	})
	if mqtt != nil {
		eg.Go(func() error {
			return mqtt.Run(ctx)
		})
	}

	err = eg.Wait()
	g.Shutdown()
	if err != nil {
		log.Error("tablebot stopped with error", "error", err)
		return err
	}
	log.Info("tablebot stopped")
	return nil
}

// buildHardware opens the configured actuator backend.
func buildHardware(cfg *config.Config) (robot.Hardware, error) {
	switch cfg.Backend {
	case config.BackendSim:
		return robot.HardwareFrom(robot.NewSim()), nil
	case config.BackendEV3:
		return robot.HardwareFrom(ev3.Open(cfg.EV3.MotorDriver)), nil
	case config.BackendHTTP:
		return robot.HardwareFrom(robot.NewHTTPController(cfg.HTTP.DaemonURL)), nil
	default:
		return robot.Hardware{}, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
