package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rwkvd/internal/auth"
	"rwkvd/internal/config"
	"rwkvd/internal/httpapi"
	"rwkvd/internal/runtime"
	"rwkvd/internal/sched"
	"rwkvd/internal/state"
	"rwkvd/internal/tokenizer"
)

func buildServeCmd() *cobra.Command {
	var (
		cfgPath  string
		addr     string
		logLevel string
		pretty   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if addr != "" {
				cfg.Listen.Addr = addr
				cfg.Listen.Port = 0
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if pretty {
				cfg.Log.Pretty = true
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config.toml", "Path to the configuration file (.toml/.yaml/.json)")
	cmd.Flags().StringVar(&addr, "addr", "", "Override listen address, e.g. :65530")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Human-readable log output")
	return cmd
}

func newLogger(cfg config.Log) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(lvl).With().Timestamp().Logger()
}

func serve(cfg config.Config) error {
	log := newLogger(cfg.Log)

	tok, err := tokenizer.Load(cfg.Tokenizer.Path)
	if err != nil {
		return fmt.Errorf("tokenizer: %w", err)
	}

	rt := runtime.NewManager(runtime.Selection{
		Mode:  cfg.Adapter.Mode,
		Index: cfg.Adapter.Selection,
	}, cfg.Model.HeadChunkSize, log)

	desc := runtime.ModelDescriptor{
		Name:        cfg.Model.Name,
		Path:        cfg.Model.Path,
		Quant:       cfg.Model.Quant,
		QuantType:   runtime.QuantType(cfg.Model.QuantType),
		EmbedDevice: runtime.Device(strings.ToLower(cfg.Model.EmbedDevice)),
		Turbo:       cfg.Model.Turbo,
	}
	for _, l := range cfg.Lora {
		desc.Deltas = append(desc.Deltas, runtime.WeightDelta{Alpha: l.Alpha, Path: l.Path})
	}
	// Load errors are fatal at startup; the server does not serve until the
	// configuration is corrected.
	if err := rt.Load(desc); err != nil {
		return err
	}
	defer rt.Close()

	exec := rt.Executor()
	cache := state.NewCache(cfg.Model.MaxBatch, exec.StateSize(), exec.Layers(), cfg.Model.StateChunkSize)
	scheduler := sched.New(sched.Config{
		MaxRuntimeBatch: cfg.Model.MaxRuntimeBatch,
		TokenChunkSize:  cfg.Model.TokenChunkSize,
		Stop:            cfg.Model.Stop,
	}, rt, cache, tok, log)

	keys := auth.NewKeystore(cfg.AppKeys)
	api := httpapi.NewServer(scheduler, rt, keys, httpapi.Options{
		ModelName:       cfg.Model.Name,
		MaxBatch:        cfg.Model.MaxBatch,
		MaxRuntimeBatch: cfg.Model.MaxRuntimeBatch,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	if cfg.Listen.ACME {
		log.Warn().Str("domain", cfg.Listen.Domain).Msg("acme certificates are provisioned by the external front-end")
	}
	listen := cfg.Listen.Addr
	if cfg.Listen.Port > 0 {
		listen = fmt.Sprintf("%s:%d", cfg.Listen.Addr, cfg.Listen.Port)
	}
	srv := &http.Server{Addr: listen, Handler: api.Mux()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(ctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", listen).Str("model", cfg.Model.Name).Msg("rwkvd listening")
		var err error
		if cfg.Listen.TLS {
			cert := filepath.Join(cfg.Listen.CertsDir, "cert.pem")
			key := filepath.Join(cfg.Listen.CertsDir, "key.pem")
			err = srv.ListenAndServeTLS(cert, key)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}
