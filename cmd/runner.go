package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytpull/internal/ledger"
	"github.com/desertthunder/ytpull/internal/models"
	"github.com/desertthunder/ytpull/internal/services"
	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the configuration on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	auth       services.AuthProvider
	oauth      *services.OAuthProvider
	lister     services.PlaylistLister
	catalog    services.PlaylistCatalog
	cleaner    services.PlaylistCleaner
	fetcher    services.MediaFetcher
	db         *sql.DB
	useJSON    bool
	report     string
	reportFmt  string
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Auth       services.AuthProvider
	Lister     services.PlaylistLister
	Catalog    services.PlaylistCatalog
	Cleaner    services.PlaylistCleaner
	Fetcher    services.MediaFetcher
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		auth:       opts.Auth,
		lister:     opts.Lister,
		catalog:    opts.Catalog,
		cleaner:    opts.Cleaner,
		fetcher:    opts.Fetcher,
	}
}

// Close releases the database handle, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// before loads the configuration, applies flag overrides and validates the result.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if err := r.loadConfig(cmd); err != nil {
		return ctx, err
	}
	if err := r.applyFlags(cmd); err != nil {
		return ctx, err
	}
	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	r.useJSON = cmd.Bool("json")
	r.report = cmd.String("report")
	r.reportFmt = cmd.String("report-format")
	return ctx, nil
}

// loadConfig reads --config, falling back to defaults when the file does not exist.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if r.configPath == "" {
		r.configPath = path
	}
	if r.config != nil {
		return nil
	}

	if _, err := os.Stat(r.configPath); err != nil {
		level := log.DebugLevel
		if cmd.IsSet("config") {
			level = log.WarnLevel
		}
		r.logger.Log(level, "config file not found, using defaults", "path", r.configPath)
		r.config = shared.DefaultConfig()
		return nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	r.config = config
	r.logger.Debug("config loaded", "path", r.configPath)
	return nil
}

// applyFlags overrides configuration values with the flags that were set.
func (r *Runner) applyFlags(cmd *cli.Command) error {
	c := r.config

	stringFlags := map[string]*string{
		"playlist":  &c.Playlist.ID,
		"source":    &c.Playlist.Source,
		"snapshot":  &c.Playlist.SnapshotPath,
		"output":    &c.Download.OutputDir,
		"min":       &c.Download.Resolution.Min,
		"max":       &c.Download.Resolution.Max,
		"preferred": &c.Download.Resolution.Preferred,
		"backend":   &c.Download.Backend,
		"cookies":   &c.Download.CookiesFile,
	}
	for name, target := range stringFlags {
		if cmd.IsSet(name) {
			*target = cmd.String(name)
		}
	}

	if cmd.IsSet("concurrency") {
		n := cmd.Int("concurrency")
		clamped := max(shared.MinConcurrency, min(n, shared.MaxConcurrency))
		if clamped != n {
			r.logger.Warn("concurrency out of range, clamping", "requested", n, "using", clamped)
		}
		c.Download.Concurrency = clamped
	}
	if cmd.IsSet("attempts") {
		c.Download.RetryAttempts = cmd.Int("attempts")
	}
	if cmd.IsSet("retry-delay") {
		c.Download.RetryDelay = cmd.Duration("retry-delay").String()
	}
	if cmd.IsSet("rate-limit") {
		c.Download.RateLimit = cmd.Float("rate-limit")
	}
	if cmd.IsSet("audio-only") {
		c.Download.AudioOnly = cmd.Bool("audio-only")
	}
	if cmd.IsSet("auto-clean") {
		c.Playlist.AutoClean = cmd.Bool("auto-clean")
	}
	return nil
}

// selector returns the configured playlist.
func (r *Runner) selector() (string, error) {
	if r.config.Playlist.ID == "" {
		return "", fmt.Errorf("%w: no playlist given, set --playlist or playlist.id", shared.ErrMissingArgument)
	}
	return r.config.Playlist.ID, nil
}

// constraint parses the configured resolution tiers.
func (r *Runner) constraint() (models.ResolutionConstraint, error) {
	res := r.config.Download.Resolution
	c, err := models.NewResolutionConstraint(res.Min, res.Max, res.Preferred)
	if err != nil {
		return c, fmt.Errorf("%w: resolution %v", shared.ErrInvalidConfig, err)
	}
	return c, nil
}

// redirectURL is the local OAuth callback served by `auth login`.
func (r *Runner) redirectURL() string {
	return fmt.Sprintf("http://%s:%d/callback", r.config.Server.Host, r.config.Server.Port)
}

// oauthProvider builds the OAuth provider from the client secrets file.
func (r *Runner) oauthProvider() (*services.OAuthProvider, error) {
	if r.oauth != nil {
		return r.oauth, nil
	}

	cfg := r.config.Auth
	oauthConfig, err := services.LoadOAuthConfig(cfg.ClientSecrets, r.redirectURL(), cfg.Scopes...)
	if err != nil {
		return nil, err
	}
	r.oauth = services.NewOAuthProvider(oauthConfig, cfg.TokenPath)
	return r.oauth, nil
}

// playlistServices builds the listing collaborators for the configured source.
func (r *Runner) playlistServices(ctx context.Context) error {
	if r.lister != nil {
		return nil
	}

	if r.config.Playlist.Source == "public" {
		timeout, err := r.config.Download.HTTPTimeoutDuration()
		if err != nil {
			return err
		}
		r.lister = services.NewPublicLister(r.httpClient, timeout, r.logger)
		return nil
	}

	provider, err := r.oauthProvider()
	if err != nil {
		return err
	}
	yt, err := services.NewYouTubeLister(ctx, provider, r.logger)
	if err != nil {
		return err
	}

	if r.auth == nil {
		r.auth = provider
	}
	r.lister = yt
	if r.catalog == nil {
		r.catalog = yt
	}
	if r.cleaner == nil {
		r.cleaner = yt
	}
	return nil
}

// mediaFetcher builds the configured download backend.
func (r *Runner) mediaFetcher(ctx context.Context) (services.MediaFetcher, error) {
	if r.fetcher != nil {
		return r.fetcher, nil
	}

	dl := r.config.Download
	cookies := shared.ExpandPath(dl.CookiesFile)

	switch dl.Backend {
	case "ytdlp":
		f := services.NewYtdlpFetcher(cookies, dl.AudioOnly, r.logger)
		if err := f.Prepare(ctx); err != nil {
			return nil, fmt.Errorf("%w: yt-dlp is not available: %v", shared.ErrServiceUnavailable, err)
		}
		r.fetcher = f
	default:
		constraint, err := r.constraint()
		if err != nil {
			return nil, err
		}
		if err := services.CheckNativeConstraint(constraint, dl.AudioOnly); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}

		client := r.httpClient
		if cookies != "" {
			c, err := services.NewCookieClient(cookies, r.httpClient.Transport)
			if err != nil {
				return nil, err
			}
			client = c
		}
		r.fetcher = services.NewNativeFetcher(client, dl.AudioOnly, r.logger)
	}
	return r.fetcher, nil
}

// database opens and migrates the run history database.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	return db, nil
}

// openLedger loads the ledger from the configured backend.
func (r *Runner) openLedger() (*ledger.Ledger, error) {
	cfg := r.config.Ledger

	var store ledger.Store
	switch cfg.Backend {
	case "sqlite":
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		store = ledger.NewSQLStore(db, r.config.Database.Path)
	default:
		store = ledger.NewFileStore(shared.ExpandPath(cfg.Path))
	}

	l := ledger.New(store, r.logger)
	n := l.Load()
	r.logger.Debug("ledger loaded", "store", store, "records", n)
	return l, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
