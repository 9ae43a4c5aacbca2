package mwclient

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cgt.name/pkg/go-mwclient/v2/params"
)

func TestCategoryMembersParams(t *testing.T) {
	p, err := CategoryMembers{Title: "Soap", Namespaces: []int{0, 14}, Type: "page|subcat"}.Params()
	require.NoError(t, err)
	assert.Equal(t, params.Values{
		"cmtitle":     "Category:Soap",
		"cmprop":      "ids|title",
		"cmnamespace": "0|14",
		"cmtype":      "page|subcat",
	}, p)

	titles := []struct {
		in, want string
	}{
		{"Category:Soap", "Category:Soap"},
		{"category:Soap", "category:Soap"},
		{"CATEGORY:Soap", "CATEGORY:Soap"},
		{"Kategorie:Seife", "Kategorie:Seife"},
		{" Soap ", "Category:Soap"},
		{"Soap: A History", "Category:Soap: A History"},
		{"Ingredients of soap", "Category:Ingredients of soap"},
	}
	for _, tt := range titles {
		p, err = CategoryMembers{Title: tt.in}.Params()
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.Get("cmtitle"), tt.in)
		assert.False(t, p.Has("cmnamespace"))
	}

	_, err = CategoryMembers{Title: "  "}.Params()
	var argErr *ArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestRequiredTargets(t *testing.T) {
	specs := map[string]func() (params.Values, error){
		"bltitle":  Backlinks{}.Params,
		"eititle":  EmbeddedIn{}.Params,
		"srsearch": Search{}.Params,
		"ucuser":   UserContribs{}.Params,
		"list":     RawList{ParamPrefix: "xx"}.Params,
		"prefix":   RawList{Name: "exturlusage"}.Params,
	}
	for param, paramsFn := range specs {
		_, err := paramsFn()
		var argErr *ArgumentError
		if assert.ErrorAs(t, err, &argErr, param) {
			assert.Equal(t, param, argErr.Param)
		}
	}
}

func TestListParams(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name string
		got  func() (params.Values, error)
		want params.Values
	}{
		{
			name: "backlinks",
			got:  Backlinks{Title: "Main Page", Namespaces: []int{0}, Redirects: true}.Params,
			want: params.Values{"bltitle": "Main Page", "blnamespace": "0", "blredirect": ""},
		},
		{
			name: "embeddedin",
			got:  EmbeddedIn{Title: "Template:Infobox"}.Params,
			want: params.Values{"eititle": "Template:Infobox"},
		},
		{
			name: "allpages",
			got:  AllPages{From: "B", TitlePrefix: "Ba", Namespace: 4, FilterRedirects: "nonredirects"}.Params,
			want: params.Values{"apfrom": "B", "apprefix": "Ba", "apnamespace": "4", "apfilterredir": "nonredirects"},
		},
		{
			name: "search",
			got:  Search{Query: "soap", What: "text", Namespaces: []int{0, 2}}.Params,
			want: params.Values{"srsearch": "soap", "srprop": "size|wordcount|timestamp|snippet", "srnamespace": "0|2", "srwhat": "text"},
		},
		{
			name: "recentchanges newer",
			got:  RecentChanges{Start: start, End: end, Type: "edit|new"}.Params,
			want: params.Values{
				"rcprop":  changeProps,
				"rcstart": "2024-05-01T12:00:00Z",
				"rcend":   "2024-05-01T13:00:00Z",
				"rcdir":   "newer",
				"rctype":  "edit|new",
			},
		},
		{
			name: "recentchanges default",
			got:  RecentChanges{}.Params,
			want: params.Values{"rcprop": changeProps},
		},
		{
			name: "watchlist",
			got:  Watchlist{Namespaces: []int{1}}.Params,
			want: params.Values{"wlprop": changeProps, "wlnamespace": "1"},
		},
		{
			name: "usercontribs",
			got:  UserContribs{User: "Example"}.Params,
			want: params.Values{"ucuser": "Example", "ucprop": "ids|title|timestamp|comment|size"},
		},
		{
			name: "logevents",
			got:  LogEvents{Type: "delete", Title: "Gone"}.Params,
			want: params.Values{"leprop": "ids|title|type|user|timestamp|comment", "letype": "delete", "letitle": "Gone"},
		},
		{
			name: "raw",
			got:  RawList{Name: "exturlusage", ParamPrefix: "eu", Extra: params.Values{"euquery": "example.org"}}.Params,
			want: params.Values{"euquery": "example.org"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func parseObj(t *testing.T, s string) *jason.Object {
	t.Helper()
	obj, err := jason.NewObjectFromBytes([]byte(s))
	require.NoError(t, err)
	return obj
}

func TestParseSearchHit(t *testing.T) {
	hit, err := Search{}.ParseItem(parseObj(t, `{"ns":0,"title":"Soap","pageid":5,"size":1200,"wordcount":180,
		"snippet":"<span class=\"searchmatch\">Soap</span> is","timestamp":"2023-11-02T08:15:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, PageRef{PageID: 5, Namespace: 0, Title: "Soap"}, hit.PageRef)
	assert.Equal(t, int64(1200), hit.Size)
	assert.Equal(t, int64(180), hit.WordCount)
	assert.Contains(t, hit.Snippet, "searchmatch")
	assert.Equal(t, time.Date(2023, 11, 2, 8, 15, 0, 0, time.UTC), hit.Timestamp)

	_, err = Search{}.ParseItem(parseObj(t, `{"title":"Soap","timestamp":"yesterday"}`))
	assert.Error(t, err)
}

func TestParseRecentChange(t *testing.T) {
	rc, err := RecentChanges{}.ParseItem(parseObj(t, `{"type":"edit","ns":0,"title":"Soap","pageid":5,"revid":99,
		"old_revid":98,"rcid":1001,"user":"Example","bot":true,"minor":true,"timestamp":"2024-01-01T00:00:00Z","comment":"fix"}`))
	require.NoError(t, err)
	assert.Equal(t, "edit", rc.Type)
	assert.Equal(t, int64(99), rc.RevID)
	assert.Equal(t, int64(98), rc.OldRevID)
	assert.Equal(t, int64(1001), rc.RCID)
	assert.True(t, rc.Bot)
	assert.True(t, rc.Minor)
	assert.False(t, rc.New)
	assert.Equal(t, "fix", rc.Comment)

	wl, err := Watchlist{}.ParseItem(parseObj(t, `{"type":"new","ns":1,"title":"Talk:Soap","new":true}`))
	require.NoError(t, err)
	assert.True(t, wl.New)
	assert.Equal(t, 1, wl.Namespace)
}

func TestParseContribution(t *testing.T) {
	c, err := UserContribs{}.ParseItem(parseObj(t, `{"userid":3,"user":"Example","pageid":5,"revid":99,"parentid":98,
		"ns":0,"title":"Soap","timestamp":"2024-01-01T00:00:00Z","comment":"c","size":4321}`))
	require.NoError(t, err)
	assert.Equal(t, "Soap", c.Title)
	assert.Equal(t, int64(98), c.ParentID)
	assert.Equal(t, int64(4321), c.Size)
	assert.Equal(t, "Example", c.User)
}

func TestParseLogEvent(t *testing.T) {
	le, err := LogEvents{}.ParseItem(parseObj(t, `{"logid":77,"ns":0,"title":"Gone","pageid":0,"type":"delete",
		"action":"delete","user":"Admin","timestamp":"2024-02-03T04:05:06Z","comment":"spam"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(77), le.LogID)
	assert.Equal(t, "delete", le.Action)
	assert.Equal(t, "Gone", le.Title)

	// Suppressed entries have no title.
	le, err = LogEvents{}.ParseItem(parseObj(t, `{"logid":78,"type":"block","action":"block","actionhidden":true}`))
	require.NoError(t, err)
	assert.Equal(t, "", le.Title)
}

func TestRawListEnumeration(t *testing.T) {
	server, client := setup(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "exturlusage", q.Get("list"))
		assert.Equal(t, "example.org", q.Get("euquery"))
		assert.Equal(t, "25", q.Get("eulimit"))
		fmt.Fprint(w, `{"query":{"exturlusage":[{"pageid":1,"url":"https://example.org/a"},{"pageid":2,"url":"https://example.org/b"}]}}`)
	})
	defer server.Close()

	l := NewList[*jason.Object](client, RawList{
		Name:        "exturlusage",
		ParamPrefix: "eu",
		Extra:       params.Values{"euquery": "example.org"},
	}, ListOptions{Limit: 25})
	items, err := Collect(context.Background(), l)
	require.NoError(t, err)
	require.Len(t, items, 2)
	u, err := items[1].GetString("url")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/b", u)
}

func TestWatchlistTranslatesNotLoggedIn(t *testing.T) {
	server, client := setup(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":"notloggedin","info":"You must be logged in to have a watchlist."}}`)
	})
	defer server.Close()

	_, err := Collect(context.Background(), NewList[RecentChange](client, Watchlist{}, ListOptions{Limit: 10}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logged in session")
	var apiErr APIError
	assert.ErrorAs(t, err, &apiErr)
}
