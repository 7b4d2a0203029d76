package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bookmark-cli/internal/background"
	"github.com/sells-group/bookmark-cli/internal/bridge"
	"github.com/sells-group/bookmark-cli/internal/channel"
	"github.com/sells-group/bookmark-cli/internal/classify"
	"github.com/sells-group/bookmark-cli/internal/clock"
	"github.com/sells-group/bookmark-cli/internal/popup"
	"github.com/sells-group/bookmark-cli/internal/scrape"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extension contexts and the dashboard bridge",
	Long: "Wires the scraper, background, popup and web page contexts over one message bus and serves\n" +
		"the dashboard bridge over HTTP. Scans are started through POST /popup/start.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		frames, _ := cmd.Flags().GetStringSlice("frames")
		snap, ext, closeSnap, mode, err := openSnapshot(ctx, frames)
		if err != nil {
			return err
		}
		defer closeSnap()

		bus := channel.NewBus()
		defer bus.Shutdown()

		svc := background.New(env.Gateway, env.Session, func(key string) classify.Classifier {
			return env.Factory.Gemini(key)
		})
		bus.Register(channel.Background, svc.Handler())

		// The page script classifies and syncs through the background
		// context; other providers are called directly.
		var cls classify.Classifier = background.Classifier{Bus: bus}
		if p := env.Factory.Provider(); p != "" && p != "gemini" {
			if cls, err = env.classifier(ctx); err != nil {
				return err
			}
		}

		loop := scrape.New(snap, ext, cls,
			scrape.WithConfig(loopConfig(mode)),
			scrape.WithSyncer(background.Syncer{Bus: bus}),
			scrape.WithLocalMirror(env.Store),
			scrape.WithSeenMirror(env.seenMirror()),
			scrape.WithRunLog(env.Store),
			scrape.WithNotifier(scrape.BusNotifier{
				Bus:     bus,
				Targets: []channel.Context{channel.Popup, channel.WebPage},
			}),
		)
		bus.Register(channel.Scraper, loop.Handler(ctx))

		ttl := time.Duration(cfg.Status.TTLSecs) * time.Second
		ctrl := popup.New(bus, env.Session, clock.Real{}, ttl)
		bus.Register(channel.Popup, ctrl.Handler())

		bridgeSrv := bridge.New(env.Session, cfg.Bridge.AllowedOrigins,
			bridge.WithLiveness(func() bool { return bus.Alive(channel.Background) }),
			bridge.WithPopup(ctrl),
		)
		bus.Register(channel.WebPage, bridgeSrv.Handler())

		port := servePort
		if port == 0 {
			port = cfg.Bridge.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           bridgeSrv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting bridge", zap.Int("port", port), zap.String("mode", mode))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "bridge listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down")
			loop.Stop()
			loop.Wait()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "bridge shutdown")
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "bridge port (default from config)")
	serveCmd.Flags().StringSlice("frames", nil, "saved HTML frames to replay instead of a live browser")
	rootCmd.AddCommand(serveCmd)
}
