package mwclient

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// PageRef identifies a page.
type PageRef struct {
	PageID    int64
	Namespace int
	Title     string
}

// SearchHit is a result of list=search.
type SearchHit struct {
	PageRef
	Size      int64
	WordCount int64
	Snippet   string
	Timestamp time.Time
}

// RecentChange is an entry of list=recentchanges or list=watchlist.
type RecentChange struct {
	PageRef
	Type      string
	RCID      int64
	RevID     int64
	OldRevID  int64
	User      string
	Timestamp time.Time
	Comment   string
	Bot       bool
	Minor     bool
	New       bool
}

// Contribution is an entry of list=usercontribs.
type Contribution struct {
	PageRef
	RevID     int64
	ParentID  int64
	User      string
	Timestamp time.Time
	Comment   string
	Size      int64
}

// LogEvent is an entry of list=logevents.
type LogEvent struct {
	PageRef
	LogID     int64
	Type      string
	Action    string
	User      string
	Timestamp time.Time
	Comment   string
}

func parsePageRef(obj *jason.Object) (PageRef, error) {
	title, err := obj.GetString("title")
	if err != nil {
		return PageRef{}, fmt.Errorf("missing title: %w", err)
	}
	ns, _ := obj.GetInt64("ns")
	id, _ := obj.GetInt64("pageid")
	return PageRef{PageID: id, Namespace: int(ns), Title: title}, nil
}

// parseTime parses an optional ISO 8601 timestamp field.
func parseTime(obj *jason.Object, key string) (time.Time, error) {
	s, err := obj.GetString(key)
	if err != nil {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s: %w", key, err)
	}
	return t, nil
}

func getInt(obj *jason.Object, key string) int64 {
	n, _ := obj.GetInt64(key)
	return n
}

func getString(obj *jason.Object, key string) string {
	s, _ := obj.GetString(key)
	return s
}

func getBool(obj *jason.Object, key string) bool {
	b, _ := obj.GetBoolean(key)
	return b
}

func namespaceList(ns []int) []string {
	list := make([]string, len(ns))
	for i, n := range ns {
		list[i] = strconv.Itoa(n)
	}
	return list
}

func requireParam(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ArgumentError{Param: name, Reason: "must not be empty"}
	}
	return nil
}

// CategoryMembers lists the pages in a category.
type CategoryMembers struct {
	// Title of the category. "Category:" is prepended unless the title
	// already starts with a namespace name, in any case or language
	// ("category:Soap", "Kategorie:Seife").
	Title      string
	Namespaces []int
	// Type restricts members to "page", "subcat" or "file" (pipe-separated).
	Type string
}

func (CategoryMembers) ListName() string { return "categorymembers" }
func (CategoryMembers) Prefix() string   { return "cm" }

func (c CategoryMembers) Params() (params.Values, error) {
	if err := requireParam("cmtitle", c.Title); err != nil {
		return nil, err
	}
	p := params.Values{
		"cmtitle": normalizeCategoryName(c.Title),
		"cmprop":  "ids|title",
	}
	p.SetList("cmnamespace", namespaceList(c.Namespaces)...)
	if c.Type != "" {
		p.Set("cmtype", c.Type)
	}
	return p, nil
}

func (CategoryMembers) ParseItem(obj *jason.Object) (PageRef, error) {
	return parsePageRef(obj)
}

func (c CategoryMembers) TranslateError(err error) error {
	var apiErr APIError
	if errors.As(err, &apiErr) && apiErr.Code == "invalidcategory" {
		return &ArgumentError{Param: "cmtitle", Reason: fmt.Sprintf("%q is not a valid category title", c.Title)}
	}
	return nil
}

func normalizeCategoryName(name string) string {
	name = strings.TrimSpace(name)
	if hasNamespacePrefix(name) {
		return name
	}
	return "Category:" + name
}

// hasNamespacePrefix reports whether title starts with a single-word
// namespace name followed by a colon. Namespace names are localized, so any
// word qualifies; "Soap: A History" does not.
func hasNamespacePrefix(title string) bool {
	ns, rest, ok := strings.Cut(title, ":")
	if !ok || ns == "" || rest == "" {
		return false
	}
	if strings.EqualFold(ns, "Category") {
		return true
	}
	return !strings.ContainsAny(ns, " _\t") && !strings.HasPrefix(rest, " ")
}

// Backlinks lists the pages linking to a page.
type Backlinks struct {
	Title      string
	Namespaces []int
	// Redirects includes pages linking through redirects.
	Redirects bool
}

func (Backlinks) ListName() string { return "backlinks" }
func (Backlinks) Prefix() string   { return "bl" }

func (b Backlinks) Params() (params.Values, error) {
	if err := requireParam("bltitle", b.Title); err != nil {
		return nil, err
	}
	p := params.Values{"bltitle": b.Title}
	p.SetList("blnamespace", namespaceList(b.Namespaces)...)
	p.SetBool("blredirect", b.Redirects)
	return p, nil
}

func (Backlinks) ParseItem(obj *jason.Object) (PageRef, error) {
	return parsePageRef(obj)
}

// EmbeddedIn lists the pages transcluding a page.
type EmbeddedIn struct {
	Title      string
	Namespaces []int
}

func (EmbeddedIn) ListName() string { return "embeddedin" }
func (EmbeddedIn) Prefix() string   { return "ei" }

func (e EmbeddedIn) Params() (params.Values, error) {
	if err := requireParam("eititle", e.Title); err != nil {
		return nil, err
	}
	p := params.Values{"eititle": e.Title}
	p.SetList("einamespace", namespaceList(e.Namespaces)...)
	return p, nil
}

func (EmbeddedIn) ParseItem(obj *jason.Object) (PageRef, error) {
	return parsePageRef(obj)
}

// AllPages lists all pages of a namespace in title order.
type AllPages struct {
	From        string
	TitlePrefix string
	Namespace   int
	// FilterRedirects is "all", "redirects" or "nonredirects".
	FilterRedirects string
}

func (AllPages) ListName() string { return "allpages" }
func (AllPages) Prefix() string   { return "ap" }

func (a AllPages) Params() (params.Values, error) {
	p := params.Values{}
	p.SetInt("apnamespace", a.Namespace)
	if a.From != "" {
		p.Set("apfrom", a.From)
	}
	if a.TitlePrefix != "" {
		p.Set("apprefix", a.TitlePrefix)
	}
	if a.FilterRedirects != "" {
		p.Set("apfilterredir", a.FilterRedirects)
	}
	return p, nil
}

func (AllPages) ParseItem(obj *jason.Object) (PageRef, error) {
	return parsePageRef(obj)
}

// Search lists full text search results.
type Search struct {
	Query      string
	Namespaces []int
	// What is "title", "text" or "nearmatch". Empty uses the wiki default.
	What string
}

func (Search) ListName() string { return "search" }
func (Search) Prefix() string   { return "sr" }

func (s Search) Params() (params.Values, error) {
	if err := requireParam("srsearch", s.Query); err != nil {
		return nil, err
	}
	p := params.Values{
		"srsearch": s.Query,
		"srprop":   "size|wordcount|timestamp|snippet",
	}
	p.SetList("srnamespace", namespaceList(s.Namespaces)...)
	if s.What != "" {
		p.Set("srwhat", s.What)
	}
	return p, nil
}

func (Search) ParseItem(obj *jason.Object) (SearchHit, error) {
	ref, err := parsePageRef(obj)
	if err != nil {
		return SearchHit{}, err
	}
	ts, err := parseTime(obj, "timestamp")
	if err != nil {
		return SearchHit{}, err
	}
	return SearchHit{
		PageRef:   ref,
		Size:      getInt(obj, "size"),
		WordCount: getInt(obj, "wordcount"),
		Snippet:   getString(obj, "snippet"),
		Timestamp: ts,
	}, nil
}

const changeProps = "title|ids|user|timestamp|comment|flags"

// RecentChanges lists recent changes, newest first unless Start is older
// than End.
type RecentChanges struct {
	Start      time.Time
	End        time.Time
	Namespaces []int
	// Type is a pipe-separated subset of edit, new, log, external, categorize.
	Type string
}

func (RecentChanges) ListName() string { return "recentchanges" }
func (RecentChanges) Prefix() string   { return "rc" }

func (r RecentChanges) Params() (params.Values, error) {
	p := params.Values{"rcprop": changeProps}
	if !r.Start.IsZero() {
		p.Set("rcstart", r.Start.UTC().Format(time.RFC3339))
	}
	if !r.End.IsZero() {
		p.Set("rcend", r.End.UTC().Format(time.RFC3339))
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.Before(r.End) {
		p.Set("rcdir", "newer")
	}
	p.SetList("rcnamespace", namespaceList(r.Namespaces)...)
	if r.Type != "" {
		p.Set("rctype", r.Type)
	}
	return p, nil
}

func (RecentChanges) ParseItem(obj *jason.Object) (RecentChange, error) {
	return parseChange(obj)
}

func parseChange(obj *jason.Object) (RecentChange, error) {
	ref, err := parsePageRef(obj)
	if err != nil {
		return RecentChange{}, err
	}
	ts, err := parseTime(obj, "timestamp")
	if err != nil {
		return RecentChange{}, err
	}
	return RecentChange{
		PageRef:   ref,
		Type:      getString(obj, "type"),
		RCID:      getInt(obj, "rcid"),
		RevID:     getInt(obj, "revid"),
		OldRevID:  getInt(obj, "old_revid"),
		User:      getString(obj, "user"),
		Timestamp: ts,
		Comment:   getString(obj, "comment"),
		Bot:       getBool(obj, "bot"),
		Minor:     getBool(obj, "minor"),
		New:       getBool(obj, "new"),
	}, nil
}

// Watchlist lists recent changes to pages on the watchlist of the current
// account.
type Watchlist struct {
	Namespaces []int
}

func (Watchlist) ListName() string { return "watchlist" }
func (Watchlist) Prefix() string   { return "wl" }

func (wl Watchlist) Params() (params.Values, error) {
	p := params.Values{"wlprop": changeProps}
	p.SetList("wlnamespace", namespaceList(wl.Namespaces)...)
	return p, nil
}

func (Watchlist) ParseItem(obj *jason.Object) (RecentChange, error) {
	return parseChange(obj)
}

func (Watchlist) TranslateError(err error) error {
	var apiErr APIError
	if errors.As(err, &apiErr) && apiErr.Code == "notloggedin" {
		return fmt.Errorf("watchlist requires a logged in session: %w", err)
	}
	return nil
}

// UserContribs lists the edits of a user.
type UserContribs struct {
	User       string
	Namespaces []int
}

func (UserContribs) ListName() string { return "usercontribs" }
func (UserContribs) Prefix() string   { return "uc" }

func (u UserContribs) Params() (params.Values, error) {
	if err := requireParam("ucuser", u.User); err != nil {
		return nil, err
	}
	p := params.Values{
		"ucuser": u.User,
		"ucprop": "ids|title|timestamp|comment|size",
	}
	p.SetList("ucnamespace", namespaceList(u.Namespaces)...)
	return p, nil
}

func (UserContribs) ParseItem(obj *jason.Object) (Contribution, error) {
	ref, err := parsePageRef(obj)
	if err != nil {
		return Contribution{}, err
	}
	ts, err := parseTime(obj, "timestamp")
	if err != nil {
		return Contribution{}, err
	}
	return Contribution{
		PageRef:   ref,
		RevID:     getInt(obj, "revid"),
		ParentID:  getInt(obj, "parentid"),
		User:      getString(obj, "user"),
		Timestamp: ts,
		Comment:   getString(obj, "comment"),
		Size:      getInt(obj, "size"),
	}, nil
}

// LogEvents lists log entries.
type LogEvents struct {
	// Type filters by log type, e.g. "delete" or "move".
	Type  string
	Title string
}

func (LogEvents) ListName() string { return "logevents" }
func (LogEvents) Prefix() string   { return "le" }

func (le LogEvents) Params() (params.Values, error) {
	p := params.Values{"leprop": "ids|title|type|user|timestamp|comment"}
	if le.Type != "" {
		p.Set("letype", le.Type)
	}
	if le.Title != "" {
		p.Set("letitle", le.Title)
	}
	return p, nil
}

func (LogEvents) ParseItem(obj *jason.Object) (LogEvent, error) {
	ts, err := parseTime(obj, "timestamp")
	if err != nil {
		return LogEvent{}, err
	}
	// Suppressed entries come without a title.
	return LogEvent{
		PageRef: PageRef{
			PageID:    getInt(obj, "pageid"),
			Namespace: int(getInt(obj, "ns")),
			Title:     getString(obj, "title"),
		},
		LogID:     getInt(obj, "logid"),
		Type:      getString(obj, "type"),
		Action:    getString(obj, "action"),
		User:      getString(obj, "user"),
		Timestamp: ts,
		Comment:   getString(obj, "comment"),
	}, nil
}

// RawList enumerates any list, returning its entries unparsed.
type RawList struct {
	Name        string
	ParamPrefix string
	Extra       params.Values
}

func (r RawList) ListName() string { return r.Name }
func (r RawList) Prefix() string   { return r.ParamPrefix }

func (r RawList) Params() (params.Values, error) {
	if err := requireParam("list", r.Name); err != nil {
		return nil, err
	}
	if err := requireParam("prefix", r.ParamPrefix); err != nil {
		return nil, err
	}
	return r.Extra.Clone(), nil
}

func (RawList) ParseItem(obj *jason.Object) (*jason.Object, error) {
	return obj, nil
}
