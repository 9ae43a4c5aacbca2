package mwclient

import (
	"context"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// Per-request limits for list queries. Accounts holding the apihighlimits
// right may ask for more items per request.
const (
	LimitOrdinary = 500
	LimitHigh     = 1000
)

// UserInfo describes the account behind the current session.
type UserInfo struct {
	ID        int64
	Name      string
	Anonymous bool
	Groups    []string
	Rights    []string
}

// HasRight reports whether the account holds the named right.
func (u *UserInfo) HasRight(right string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Rights {
		if r == right {
			return true
		}
	}
	return false
}

// Limits holds the page size a list uses when the caller sets none and the
// largest page size it may ask for.
type Limits struct {
	Default int
	Ceiling int
}

// LimitsFor picks list limits from the rights of an account.
func LimitsFor(info *UserInfo) Limits {
	if info.HasRight("apihighlimits") {
		return Limits{Default: LimitHigh, Ceiling: LimitHigh}
	}
	return Limits{Default: LimitOrdinary, Ceiling: LimitOrdinary}
}

// UserInfo returns information about the current account. The result is
// cached until the session changes (login, logout, OAuth or LoadCookies).
func (w *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	w.mu.Lock()
	cached := w.userInfo
	w.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	resp, err := w.GetContext(ctx, params.Values{
		"action": "query",
		"meta":   "userinfo",
		"uiprop": "rights|groups",
	})
	if err != nil && !isWarnings(err) {
		return nil, err
	}

	ui, err := resp.GetObject("query", "userinfo")
	if err != nil {
		return nil, &ResponseFormatError{Path: "query.userinfo", Reason: err.Error()}
	}
	info := &UserInfo{}
	info.ID, _ = ui.GetInt64("id")
	info.Name, _ = ui.GetString("name")
	info.Anonymous, _ = ui.GetBoolean("anon")
	info.Groups, _ = ui.GetStringArray("groups")
	info.Rights, _ = ui.GetStringArray("rights")

	w.mu.Lock()
	w.userInfo = info
	w.mu.Unlock()
	return info, nil
}

// Limits returns the list limits of the current account.
func (w *Client) Limits(ctx context.Context) (Limits, error) {
	info, err := w.UserInfo(ctx)
	if err != nil {
		return Limits{}, err
	}
	return LimitsFor(info), nil
}
