package mwclient

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsFor(t *testing.T) {
	assert.Equal(t, Limits{Default: 500, Ceiling: 500}, LimitsFor(nil))
	assert.Equal(t, Limits{Default: 500, Ceiling: 500}, LimitsFor(&UserInfo{Rights: []string{"read", "edit"}}))
	assert.Equal(t, Limits{Default: 1000, Ceiling: 1000}, LimitsFor(&UserInfo{Rights: []string{"read", "apihighlimits"}}))
}

func TestUserInfoCached(t *testing.T) {
	var requests int32
	server, client := setup(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		q := r.URL.Query()
		assert.Equal(t, "userinfo", q.Get("meta"))
		assert.Equal(t, "rights|groups", q.Get("uiprop"))
		fmt.Fprint(w, `{"batchcomplete":true,"query":{"userinfo":{"id":42,"name":"ExampleBot",
			"groups":["*","user","bot"],"rights":["read","edit","apihighlimits"]}}}`)
	})
	defer server.Close()

	ctx := context.Background()
	info, err := client.UserInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.ID)
	assert.Equal(t, "ExampleBot", info.Name)
	assert.False(t, info.Anonymous)
	assert.Contains(t, info.Groups, "bot")
	assert.True(t, info.HasRight("apihighlimits"))

	limits, err := client.Limits(ctx)
	require.NoError(t, err)
	assert.Equal(t, Limits{Default: LimitHigh, Ceiling: LimitHigh}, limits)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))

	// A new session forgets the cached info.
	client.LoadCookies(nil)
	_, err = client.UserInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestUserInfoAnonymous(t *testing.T) {
	server, client := setup(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"userinfo":{"id":0,"name":"127.0.0.1","anon":true,"rights":["read"]}}}`)
	})
	defer server.Close()

	limits, err := client.Limits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Limits{Default: LimitOrdinary, Ceiling: LimitOrdinary}, limits)
}
