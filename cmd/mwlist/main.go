package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"cgt.name/pkg/go-mwclient/v2/internal/config"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	a := &app{cfg: cfg, out: os.Stdout}
	cmd := newCommand(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		stop()
		log.Fatal().Err(err).Msg("mwlist failed")
	}
}

func newCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:    "mwlist",
		Usage:   "Enumerate MediaWiki lists (category members, backlinks, search results, ...)",
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api",
				Usage: "URL of the wiki's api.php",
				Value: a.cfg.APIURL,
			},
			&cli.StringFlag{
				Name:  "user-agent",
				Usage: "User-Agent prefix identifying this tool",
				Value: a.cfg.UserAgent,
			},
			&cli.StringFlag{
				Name:  "username",
				Usage: "bot password user name (e.g. Example@mwlist)",
				Value: a.cfg.Username,
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "bot password",
				Value: a.cfg.Password,
			},
			&cli.IntFlag{
				Name:      "limit",
				Usage:     "items per request (default: the account's limit)",
				Validator: nonNegative("limit"),
			},
			&cli.IntFlag{
				Name:      "max",
				Usage:     "stop after this many items (0: no limit)",
				Validator: nonNegative("max"),
			},
			&cli.BoolFlag{
				Name:  "recover-loops",
				Usage: "retry looping continuations with larger pages",
			},
			&cli.IntFlag{
				Name:      "maxlag",
				Usage:     "maxlag parameter in seconds (0: off)",
				Value:     int64(a.cfg.Maxlag),
				Validator: nonNegative("maxlag"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error, fatal, panic)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address (e.g. :9090)",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "export OpenTelemetry traces (OTLP if OTEL_EXPORTER_OTLP_ENDPOINT is set, stderr otherwise)",
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			{
				Name:      "members",
				Usage:     "List the pages in a category",
				ArgsUsage: "<category>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return a.membersCmd(ctx, c.Args().First())
				},
			},
			{
				Name:      "backlinks",
				Usage:     "List the pages linking to a page",
				ArgsUsage: "<title>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return a.backlinksCmd(ctx, c.Args().First())
				},
			},
			{
				Name:      "embeddedin",
				Usage:     "List the pages transcluding a page",
				ArgsUsage: "<title>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return a.embeddedInCmd(ctx, c.Args().First())
				},
			},
			{
				Name:      "allpages",
				Usage:     "List the pages of the main namespace",
				ArgsUsage: "[prefix]",
				Action: func(ctx context.Context, c *cli.Command) error {
					return a.allPagesCmd(ctx, c.Args().First())
				},
			},
			{
				Name:      "search",
				Usage:     "Full text search",
				ArgsUsage: "<query>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return a.searchCmd(ctx, c.Args().First())
				},
			},
			{
				Name:  "recentchanges",
				Usage: "List recent changes",
				Action: func(ctx context.Context, c *cli.Command) error {
					return a.recentChangesCmd(ctx)
				},
			},
			{
				Name:      "contribs",
				Usage:     "List the contributions of a user",
				ArgsUsage: "<user>",
				Action: func(ctx context.Context, c *cli.Command) error {
					return a.contribsCmd(ctx, c.Args().First())
				},
			},
			{
				Name:      "logevents",
				Usage:     "List log entries",
				ArgsUsage: "[type]",
				Action: func(ctx context.Context, c *cli.Command) error {
					return a.logEventsCmd(ctx, c.Args().First())
				},
			},
		},
	}
}
