// Command annil serves a music library over the annil wire protocol:
// token-authorized album lists, covers and audio with range support and
// optional transcoding, backed by the providers the config file names.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/ProjectAnni/anni-go/internal/annil"
	"github.com/ProjectAnni/anni-go/internal/config"
	"github.com/ProjectAnni/anni-go/internal/errmsg"
	"github.com/ProjectAnni/anni-go/internal/provider"
	"github.com/ProjectAnni/anni-go/internal/repodb"
)

var version = "0.5.0"

func main() {
	configPath := flag.String("config", "", "path to annil.toml")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error(errmsg.Format(errmsg.OpLoadConfig, err))
		os.Exit(errmsg.ExitCode(errmsg.OpLoadConfig, err))
	}

	if err := run(ctx, cfg); err != nil {
		slog.Error(errmsg.Format(errmsg.OpListen, err))
		os.Exit(errmsg.ExitCode(errmsg.OpListen, err))
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	providers, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	slog.Info("providers ready", "count", len(providers))

	keys := annil.Keys{
		SignKey:    []byte(cfg.Server.HMACKey),
		ShareKey:   []byte(cfg.Server.GetShareKey()),
		ShareKeyID: cfg.Server.ShareKeyID,
		AdminToken: cfg.Server.ReloadToken,
	}
	app := annil.NewServer(version, keys, providers)
	app.SetTranscodeCodec(cfg.Server.GetTranscode())

	srv := &http.Server{
		Addr:        cfg.Server.GetListen(),
		Handler:     app.Router(),
		ReadTimeout: 15 * time.Second,
		// Audio responses stream for as long as a track lasts.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	slog.Info("listening", "name", cfg.Server.Name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// buildProviders assembles the configured backends in name order, wrapping
// each in its read-through cache when one is configured.
func buildProviders(cfg *config.Config) ([]annil.NamedProvider, error) {
	names := make([]string, 0, len(cfg.Backends))
	for name, backend := range cfg.Backends {
		if backend.Enable {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fs := afero.NewOsFs()
	providers := make([]annil.NamedProvider, 0, len(names))
	for _, name := range names {
		backend := cfg.Backends[name]
		p, err := buildBackend(fs, backend)
		if err != nil {
			return nil, err
		}
		if backend.Cache != nil {
			p, err = provider.NewCache(p, backend.Cache.Root, backend.Cache.GetMaxSize())
			if err != nil {
				return nil, err
			}
		}
		slog.Info("backend ready", "name", name, "type", backend.Type)
		providers = append(providers, annil.NamedProvider{Name: name, Provider: p})
	}
	return providers, nil
}

func buildBackend(fs afero.Fs, backend config.BackendConfig) (provider.Provider, error) {
	switch backend.Type {
	case "file":
		if backend.Layout == "convention" {
			db, err := repodb.Open(backend.DB)
			if err != nil {
				return nil, err
			}
			return provider.NewConvention(fs, backend.Root, db)
		}
		return provider.NewStrict(fs, backend.Root, backend.GetLayer())
	case "proxy":
		return provider.NewRemote(backend.URL, backend.Auth,
			provider.WithTimeout(backend.GetTimeout())), nil
	default:
		// Validation rejected everything else already.
		return nil, errors.New("unsupported backend type " + backend.Type)
	}
}
