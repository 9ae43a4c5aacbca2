package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	mwclient "cgt.name/pkg/go-mwclient/v2"
	"cgt.name/pkg/go-mwclient/v2/internal/config"
	"cgt.name/pkg/go-mwclient/v2/tracing"
)

type app struct {
	cfg    *config.Config
	out    io.Writer
	client *mwclient.Client
	opts   mwclient.ListOptions
	max    int

	shutdown []func(context.Context) error
}

func (a *app) before(ctx context.Context, c *cli.Command) (context.Context, error) {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		return ctx, fmt.Errorf("failed to parse log level: %w", err)
	}
	log.Logger = log.Level(level)

	a.cfg.APIURL = c.String("api")
	a.cfg.UserAgent = c.String("user-agent")
	a.cfg.Username = c.String("username")
	a.cfg.Password = c.String("password")
	a.cfg.Maxlag = int(c.Int("maxlag"))

	a.opts.RecoverLoops = c.Bool("recover-loops")
	a.opts.Limit = int(c.Int("limit"))
	a.max = int(c.Int("max"))

	if addr := c.String("metrics-addr"); addr != "" {
		a.serveMetrics(addr)
	}
	if c.Bool("trace") {
		tc := tracing.ConfigFromEnv("mwlist")
		tc.ServiceVersion = version
		shutdown, err := tracing.Setup(ctx, tc)
		if err != nil {
			return ctx, fmt.Errorf("failed to set up tracing: %w", err)
		}
		a.shutdown = append(a.shutdown, shutdown)
	}

	// Help and version output need no wiki.
	if c.Args().Len() == 0 || c.Args().First() == "help" {
		return ctx, nil
	}
	return ctx, a.connect(ctx)
}

func (a *app) after(ctx context.Context, c *cli.Command) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	for _, shutdown := range a.shutdown {
		errs = append(errs, shutdown(ctx))
	}
	return errors.Join(errs...)
}

func nonNegative(flag string) func(int64) error {
	return func(n int64) error {
		if n < 0 {
			return fmt.Errorf("invalid --%s %d: must not be negative", flag, n)
		}
		return nil
	}
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	a.shutdown = append(a.shutdown, srv.Shutdown)
	log.Info().Str("addr", addr).Msg("serving metrics")
}

// connect creates the API client and logs in when credentials are set.
func (a *app) connect(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	client, err := mwclient.New(a.cfg.APIURL, a.cfg.UserAgent)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	client.Logger = log.Logger
	client.SetHTTPTimeout(a.cfg.Timeout)
	client.Maxlag.Retries = a.cfg.MaxRetries
	if a.cfg.Maxlag > 0 {
		client.Maxlag.On = true
		client.Maxlag.Timeout = strconv.Itoa(a.cfg.Maxlag)
	}

	if a.cfg.HasCredentials() {
		if err := client.LoginContext(ctx, a.cfg.Username, a.cfg.Password); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		client.Assert = mwclient.AssertUser
	}
	a.client = client
	return nil
}

// runList prints one line per item. Items produced before an error are
// printed before the error is returned.
func runList[T any](ctx context.Context, a *app, spec mwclient.ListSpec[T], format func(T) string) error {
	l := mwclient.NewList(a.client, spec, a.opts)
	n := 0
	for l.Next(ctx) {
		if _, err := fmt.Fprintln(a.out, format(l.Item())); err != nil {
			return err
		}
		n++
		if a.max > 0 && n >= a.max {
			break
		}
	}
	log.Debug().Str("list", spec.ListName()).Int("items", n).Int("pages", l.Pages()).Msg("done")

	if err := l.Err(); err != nil {
		var loopErr *mwclient.ContinuationLoopError
		if errors.As(err, &loopErr) && !a.opts.RecoverLoops {
			log.Warn().Msg("the list stopped on a continuation loop; try --recover-loops")
		}
		return err
	}
	return nil
}

func formatPage(p mwclient.PageRef) string {
	return p.Title
}

func formatSearchHit(h mwclient.SearchHit) string {
	return fmt.Sprintf("%s\t%d", h.Title, h.Size)
}

func formatChange(rc mwclient.RecentChange) string {
	return fmt.Sprintf("%s\t%s\t%s\t%s", rc.Timestamp.Format(time.RFC3339), rc.Type, rc.Title, rc.User)
}

func formatContribution(c mwclient.Contribution) string {
	return fmt.Sprintf("%s\t%s\t%d", c.Timestamp.Format(time.RFC3339), c.Title, c.RevID)
}

func formatLogEvent(le mwclient.LogEvent) string {
	return fmt.Sprintf("%s\t%s/%s\t%s\t%s", le.Timestamp.Format(time.RFC3339), le.Type, le.Action, le.Title, le.User)
}

func (a *app) membersCmd(ctx context.Context, category string) error {
	return runList(ctx, a, mwclient.CategoryMembers{Title: category}, formatPage)
}

func (a *app) backlinksCmd(ctx context.Context, title string) error {
	return runList(ctx, a, mwclient.Backlinks{Title: title}, formatPage)
}

func (a *app) embeddedInCmd(ctx context.Context, title string) error {
	return runList(ctx, a, mwclient.EmbeddedIn{Title: title}, formatPage)
}

func (a *app) allPagesCmd(ctx context.Context, prefix string) error {
	return runList(ctx, a, mwclient.AllPages{TitlePrefix: prefix}, formatPage)
}

func (a *app) searchCmd(ctx context.Context, query string) error {
	return runList(ctx, a, mwclient.Search{Query: query}, formatSearchHit)
}

func (a *app) recentChangesCmd(ctx context.Context) error {
	return runList(ctx, a, mwclient.RecentChanges{}, formatChange)
}

func (a *app) contribsCmd(ctx context.Context, user string) error {
	return runList(ctx, a, mwclient.UserContribs{User: user}, formatContribution)
}

func (a *app) logEventsCmd(ctx context.Context, logType string) error {
	return runList(ctx, a, mwclient.LogEvents{Type: logType}, formatLogEvent)
}
