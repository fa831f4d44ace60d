package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/lbartuzi/sidecar-Jellyfin/internal/app"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/config"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/database"
	"github.com/lbartuzi/sidecar-Jellyfin/internal/logger"
)

const lockFileName = "organizer.lock"

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
			c.configErr = fmt.Errorf("create data dir: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// cliLogger logs to stderr for one-shot commands, silently unless --verbose.
func (c *commandContext) cliLogger(cfg *config.Config, stderr io.Writer) *logger.Logger {
	if c.verbose == nil || !*c.verbose {
		return &logger.Logger{Logger: zerolog.Nop()}
	}
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: "console",
		Output: stderr,
	})
}

// session is an open database with the services built on it.
type session struct {
	app *app.App
	db  *database.DB
	log *logger.Logger
}

func (s *session) Close() {
	_ = s.db.Close()
	_ = s.log.Close()
}

// openSession opens and migrates the database for a one-shot command.
func (c *commandContext) openSession(ctx context.Context, stderr io.Writer) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log := c.cliLogger(cfg, stderr)

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &session{
		app: app.New(db.Conn(), cfg, nil, log.Logger),
		db:  db,
		log: log,
	}, nil
}

// lockDataDir takes the single-instance lock for a long-running server.
func lockDataDir(cfg *config.Config) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(cfg.DataDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another organizer instance is already running (lock %s)", lock.Path())
	}
	return lock, nil
}
