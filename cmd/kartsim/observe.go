package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kartracer/kartsim/internal/config"
	"github.com/kartracer/kartsim/internal/observer"
	"github.com/kartracer/kartsim/internal/transport"
	"github.com/spf13/cobra"
)

const frameInterval = 16 * time.Millisecond

func newObserveCmd() *cobra.Command {
	var (
		hubURL   string
		every    time.Duration
		commands []string
	)
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Connect to a running session and render its karts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runObserve(cmd.Context(), hubURL, every, commands)
		},
	}
	f := cmd.Flags()
	f.StringVar(&hubURL, "url", "", "hub websocket URL (default from transport config)")
	f.DurationVar(&every, "report", time.Second, "how often rendered poses are logged")
	f.StringArrayVar(&commands, "send", nil, `command sent to the hub after connecting, e.g. ":INTENT: 1 true false"`)
	return cmd
}

func defaultHubURL(cfg config.TransportConfig) string {
	u := url.URL{Scheme: "ws", Host: cfg.Listen, Path: cfg.Path}
	return u.String()
}

func runObserve(ctx context.Context, hubURL string, every time.Duration, commands []string) error {
	rt, err := setupRuntime("observe")
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logs.Component("observer")

	transportCfg := config.GetTransportConfig()
	if hubURL == "" {
		hubURL = defaultHubURL(transportCfg)
	}
	profile, err := config.GetHandlingProfile()
	if err != nil {
		return err
	}

	peer := observer.NewPeer(observer.VisualsFromProfile(profile), logger)
	client := transport.NewClient(transport.ClientConfig{URL: hubURL, Secret: transportCfg.Secret}, peer, rt.logs.Component("transport"))
	for _, line := range commands {
		if err := client.Send(line); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- client.Run(ctx) }()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	last := time.Now()
	lastReport := last

	for {
		select {
		case err := <-errCh:
			return err
		case now := <-ticker.C:
			states := peer.Frame(now.Sub(last))
			last = now
			if now.Sub(lastReport) < every {
				continue
			}
			lastReport = now
			for _, id := range peer.Vehicles() {
				rs := states[id]
				fmt.Printf("kart %d pos=(%.2f, %.2f, %.2f) yaw=%.1f lean=%.1f drift=%t interp=%t\n",
					id, rs.Position.X(), rs.Position.Y(), rs.Position.Z(), rs.BodyYaw, rs.LeanAngle, rs.Drift, rs.Interpolating)
			}
			s := client.Stats()
			logger.Debug("Observer stats", "received", s.Received, "stale", s.Stale, "invalid", s.Invalid, "vehicles", len(states))
		}
	}
}
