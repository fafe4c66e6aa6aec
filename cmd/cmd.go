// submodule cmd contains command definitions
package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
)

// app builds the root command. Its action is the default mode: fetch the playlist, then download it.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "ytpull",
		Usage:    "Download a YouTube playlist with resumable, concurrent workers",
		Version:  "0.3.0",
		Flags:    globalFlags(),
		Action:   r.prepare(r.Default),
		Commands: r.register(),
	}
}

// prepare runs [Runner.before] ahead of action. Setup happens at the leaf so that
// global flags given after a subcommand name are already parsed.
func (r *Runner) prepare(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		ctx, err := r.before(ctx, cmd)
		if err != nil {
			return err
		}
		return action(ctx, cmd)
	}
}

// wrap applies prepare to every action in the command tree.
func (r *Runner) wrap(commands []*cli.Command) []*cli.Command {
	for _, c := range commands {
		if c.Action != nil {
			c.Action = r.prepare(c.Action)
		}
		r.wrap(c.Commands)
	}
	return commands
}

// globalFlags are inherited by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   defaultConfigPath,
			Sources: cli.EnvVars("YTPULL_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "playlist",
			Aliases: []string{"p"},
			Usage:   "Playlist ID, URL, or WL for Watch Later",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Playlist source: api (OAuth) or public (no credentials)",
		},
		&cli.StringFlag{
			Name:  "snapshot",
			Usage: "Path of the cached playlist snapshot",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Directory for downloaded videos",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Parallel downloads (1-5)",
		},
		&cli.IntFlag{
			Name:  "attempts",
			Usage: "Attempts per video before it is reported as failed",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Pause between attempts",
		},
		&cli.StringFlag{
			Name:  "min",
			Usage: "Lowest acceptable resolution, e.g. 720p",
		},
		&cli.StringFlag{
			Name:  "max",
			Usage: "Highest acceptable resolution, e.g. 1080p",
		},
		&cli.StringFlag{
			Name:  "preferred",
			Usage: "Preferred resolution within min..max",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Download backend: ytdlp, or native (progressive streams up to 360p)",
		},
		&cli.StringFlag{
			Name:  "cookies",
			Usage: "Netscape cookies.txt for restricted videos",
		},
		&cli.BoolFlag{
			Name:  "audio-only",
			Usage: "Download audio streams only",
		},
		&cli.FloatFlag{
			Name:  "rate-limit",
			Usage: "Maximum downloads started per second, 0 for no limit",
		},
		&cli.BoolFlag{
			Name:  "auto-clean",
			Usage: "Remove downloaded videos from the playlist after the run",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a run report to this path",
		},
		&cli.StringFlag{
			Name:  "report-format",
			Usage: "Report format: json, csv, markdown or txt (default from extension)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		fetchCommand, downloadCommand, playlistsCommand, authCommand, setupCommand, ledgerCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return r.wrap(commands)
}

// fetchCommand refreshes the snapshot without downloading.
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "fetch",
		Usage:  "Fetch the playlist and cache its snapshot (fetch-only)",
		Action: r.Fetch,
	}
}

// downloadCommand downloads from the cached snapshot without contacting the listing API.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download from the cached snapshot (download-only)",
		Action:  r.Download,
	}
}

// playlistsCommand lists the authenticated user's playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List your playlists (list-playlists)",
		Action:  r.Playlists,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage YouTube authorization",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Google using OAuth2 in the browser",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 2 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the cached token state",
				Action: r.AuthStatus,
			},
			{
				Name:   "revoke",
				Usage:  "Revoke the token and delete it",
				Action: r.AuthRevoke,
			},
		},
	}
}

// setupCommand handles setup operations for configuration, database and cookies.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a default config.toml",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "current",
						Usage: "Write the effective configuration, flag overrides included",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recently applied migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "cookies",
				Usage: "Create a cookies.txt from a browser request copied as cURL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a file containing the cURL command",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Output path (default: download.cookies_file or ~/.ytpull/cookies.txt)",
					},
				},
				Action: r.SetupCookies,
			},
		},
	}
}

// ledgerCommand inspects the download ledger.
func ledgerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect the download ledger",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List downloaded videos",
				Action: r.LedgerList,
			},
			{
				Name:  "show",
				Usage: "Show the record for one video",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "video"},
				},
				Action: r.LedgerShow,
			},
			{
				Name:   "verify",
				Usage:  "Report ledger entries whose file is missing",
				Action: r.LedgerVerify,
			},
		},
	}
}

// historyCommand shows past runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past runs, or the outcomes of one run",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "run"},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "failed",
				Usage: "Print only the IDs of videos that failed in the run (latest run by default)",
			},
		},
		Action: r.History,
	}
}

// tuiCommand returns the top-level TUI command for interactive downloads.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Pick a playlist and watch the download live",
		Action:  r.TUI,
	}
}
