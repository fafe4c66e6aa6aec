package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to --config.
//
// With --current the effective configuration, flag overrides included, is written instead.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("current") {
		if _, err := os.Stat(r.configPath); err == nil {
			return fmt.Errorf("config file already exists at %s", r.configPath)
		}
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			return err
		}
		r.logger.Info("effective config saved", "path", r.configPath)
		return r.writePlain("✓ Current configuration written to %s\n", r.configPath)
	}

	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("✓ Configuration written to %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set playlist.id to the playlist you want to mirror (\"WL\" for Watch Later)\n")
	r.writePlain("2. Place your OAuth client secrets at auth.client_secrets\n")
	r.writePlain("3. Run 'ytpull auth login'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Database
	r.logger.Info("initializing database", "path", cfg.Path)

	db, err := shared.NewDatabase(shared.ExpandPath(cfg.Path))
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		applied, err := shared.AppliedVersions(db)
		if err != nil {
			return err
		}
		r.logger.Warn("rolled back latest migration", "remaining", len(applied))
		return r.writePlain("✓ Rolled back the latest migration (%d still applied)\n", len(applied))
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := shared.AppliedVersions(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", cfg.Path)
	return r.writePlain("✓ Database ready at %s (%d migrations applied)\n", cfg.Path, len(applied))
}

// SetupCookies converts a browser "copy as cURL" command into a cookies.txt file.
//
// Both backends read the file through download.cookies_file for age-restricted or members-only videos.
func (r *Runner) SetupCookies(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("out")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	r.logger.Info("parsing cURL command for YouTube cookies")

	var curlHeaders *shared.CurlHeaders
	var err error

	if curlFile != "" {
		curlHeaders, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		curlHeaders, err = shared.ParseCurlCommand([]byte(curlCmd))
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	cookies := curlHeaders.Cookies()
	r.logger.Debug("extracted cookies", "count", len(cookies), "headers", len(curlHeaders.Headers))

	if outputPath == "" {
		outputPath = r.config.Download.CookiesFile
	}
	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".ytpull", "cookies.txt")
	}
	outputPath = shared.ExpandPath(outputPath)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := shared.WriteCookieFile(outputPath, ".youtube.com", cookies); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}

	r.logger.Info("cookies saved", "path", outputPath)

	r.writePlain("✓ Saved %d cookies to %s\n", len(cookies), outputPath)
	if r.config.Download.CookiesFile != outputPath {
		r.writePlainln("Next steps:")
		r.writePlain("Update config.toml with: download.cookies_file = \"%s\"\n", outputPath)
	}
	return nil
}
