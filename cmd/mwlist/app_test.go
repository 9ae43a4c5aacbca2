package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mwclient "cgt.name/pkg/go-mwclient/v2"
	"cgt.name/pkg/go-mwclient/v2/internal/config"
)

func newTestApp(t *testing.T, handler http.HandlerFunc) (*app, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var out bytes.Buffer
	a := &app{
		cfg: &config.Config{APIURL: server.URL, MaxRetries: 0},
		out: &out,
	}
	a.opts.Limit = 2
	require.NoError(t, a.connect(context.Background()))
	return a, &out
}

func TestMembersCmd(t *testing.T) {
	a, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Category:Soap", q.Get("cmtitle"))
		if q.Get("cmcontinue") == "" {
			fmt.Fprint(w, `{"continue":{"cmcontinue":"next","continue":"-||"},"query":{"categorymembers":[{"title":"A"},{"title":"B"}]}}`)
			return
		}
		fmt.Fprint(w, `{"query":{"categorymembers":[{"title":"C"}]}}`)
	})

	require.NoError(t, a.membersCmd(context.Background(), "Soap"))
	assert.Equal(t, "A\nB\nC\n", out.String())
}

func TestMaxStopsEarly(t *testing.T) {
	var requests int32
	a, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		fmt.Fprint(w, `{"continue":{"blcontinue":"0|9","continue":"-||"},"query":{"backlinks":[{"title":"A"},{"title":"B"}]}}`)
	})
	a.max = 1

	require.NoError(t, a.backlinksCmd(context.Background(), "Target"))
	assert.Equal(t, "A\n", out.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestLoopPrintsItemsThenFails(t *testing.T) {
	a, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"continue":{"eicontinue":"10|1","continue":"-||"},"query":{"embeddedin":[{"title":"Same"}]}}`)
	})

	err := a.embeddedInCmd(context.Background(), "Template:X")
	assert.True(t, errors.Is(err, mwclient.ErrContinuationLoop))
	assert.Equal(t, "Same\n", out.String())
}

func TestMissingArgument(t *testing.T) {
	a, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})

	var argErr *mwclient.ArgumentError
	assert.ErrorAs(t, a.searchCmd(context.Background(), ""), &argErr)
}

func TestCountFlags(t *testing.T) {
	a := &app{cfg: &config.Config{}, out: io.Discard}
	cmd := newCommand(a)
	cmd.Writer, cmd.ErrWriter = io.Discard, io.Discard

	require.NoError(t, cmd.Run(context.Background(), []string{"mwlist", "--limit", "250", "--max", "7", "--maxlag", "5"}))
	assert.Equal(t, 250, a.opts.Limit)
	assert.Equal(t, 7, a.max)
	assert.Equal(t, 5, a.cfg.Maxlag)
}

func TestCountFlagsRejectInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"--limit", "-3"},
		{"--max", "ten"},
		{"--maxlag", "-1"},
	} {
		a := &app{cfg: &config.Config{}, out: io.Discard}
		cmd := newCommand(a)
		cmd.Writer, cmd.ErrWriter = io.Discard, io.Discard
		assert.Error(t, cmd.Run(context.Background(), append([]string{"mwlist"}, args...)), args)
	}
}

func TestConnectRequiresURL(t *testing.T) {
	a := &app{cfg: &config.Config{}}
	assert.Error(t, a.connect(context.Background()))
}
