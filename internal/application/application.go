package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/eugenenazirov/manifest-placeholders/internal/api"
	"github.com/eugenenazirov/manifest-placeholders/internal/config"
	"github.com/eugenenazirov/manifest-placeholders/internal/manifest"
	"github.com/eugenenazirov/manifest-placeholders/internal/resolver"
	"github.com/eugenenazirov/manifest-placeholders/internal/source"
)

// App encapsulates the resolved placeholders and the HTTP server exposing them.
type App struct {
	cfg          config.Config
	fs           afero.Fs
	resolver     *resolver.Resolver
	placeholders manifest.Placeholders
	handler      *api.Handler
	router       http.Handler
	logger       *zap.Logger
	server       *http.Server
}

// Option customises App construction.
type Option func(*options)

type options struct {
	fs        afero.Fs
	envLookup source.LookupFunc
}

// WithFs sets the filesystem used for the properties file and output file.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithEnvLookup replaces os.LookupEnv as the environment source.
func WithEnvLookup(lookup source.LookupFunc) Option {
	return func(o *options) {
		o.envLookup = lookup
	}
}

// New resolves every configured placeholder and wires the HTTP server. A
// malformed or unreadable properties file aborts construction; missing values
// do not.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	props, err := source.LoadPropertiesFile(o.fs, cfg.PropertiesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cfg.PropertiesFile, err)
	}
	logger.Debug("properties file loaded",
		zap.String("path", props.Path()),
		zap.Int("keys", len(props.Keys())),
	)

	res, err := resolver.New(logger, source.NewEnvWithLookup(o.envLookup), props)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	placeholders, err := manifest.Build(res, cfg.Placeholders)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve placeholders: %w", err)
	}

	handler := api.NewHandler(placeholders, api.WithReveal(cfg.RevealValues))
	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		cfg:          cfg,
		fs:           o.fs,
		resolver:     res,
		placeholders: placeholders,
		handler:      handler,
		router:       router,
		logger:       logger,
		server:       NewServer(cfg, router),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Placeholders returns the resolved placeholder set.
func (a *App) Placeholders() manifest.Placeholders {
	return a.placeholders
}

// WritePlaceholders encodes the placeholder set in the configured format.
// When an output path is configured the result is written there and stdout is
// left untouched.
func (a *App) WritePlaceholders(stdout io.Writer) error {
	if a.cfg.Output == "" {
		return a.placeholders.Encode(stdout, a.cfg.Format)
	}

	var buf bytes.Buffer
	if err := a.placeholders.Encode(&buf, a.cfg.Format); err != nil {
		return fmt.Errorf("encode placeholders: %w", err)
	}
	if dir := filepath.Dir(a.cfg.Output); dir != "." {
		if err := a.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := afero.WriteFile(a.fs, a.cfg.Output, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", a.cfg.Output, err)
	}

	a.logger.Info("placeholders written",
		zap.String("path", a.cfg.Output),
		zap.String("format", string(a.cfg.Format)),
		zap.Int("count", a.placeholders.Len()),
		zap.Strings("missing", a.placeholders.Missing()),
	)
	return nil
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
