// Package game parses game command flags and starts the score tracker
// service.
package game

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/louisbranch/demono/internal/game/controller"
	"github.com/louisbranch/demono/internal/game/engine"
	"github.com/louisbranch/demono/internal/game/server"
	"github.com/louisbranch/demono/internal/game/storage"
	"github.com/louisbranch/demono/internal/game/storage/memory"
	"github.com/louisbranch/demono/internal/game/storage/sqlite"
	"github.com/louisbranch/demono/internal/platform/config"
)

// Storage backend names accepted by Config.Storage.
const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Config holds game command configuration.
type Config struct {
	Port    int    `env:"DEMONO_PORT" envDefault:"8080"`
	Addr    string `env:"DEMONO_ADDR"`
	DBPath  string `env:"DEMONO_DB_PATH" envDefault:"demono.db"`
	Storage string `env:"DEMONO_STORAGE" envDefault:"sqlite"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The sqlite database path")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "The storage backend (sqlite or memory)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ListenAddr returns the address the server binds to.
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

func openStore(cfg Config) (storage.Store, error) {
	switch cfg.Storage {
	case StorageSQLite:
		return sqlite.Open(cfg.DBPath)
	case StorageMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// Run starts the score tracker HTTP service and blocks until ctx is
// canceled or the listener fails.
func Run(ctx context.Context, cfg Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close store error=%v", closeErr)
		}
	}()

	ctrl := controller.New(engine.New(store))
	if snapshot := ctrl.Load(ctx); snapshot.Err != "" {
		return fmt.Errorf("load session: %s", snapshot.Err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.New(ctrl).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening addr=%s storage=%s", httpServer.Addr, cfg.Storage)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
