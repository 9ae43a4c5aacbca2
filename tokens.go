package mwclient

import (
	"context"
	"fmt"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// These consts represents MW API token names.
// They are meant to be used with the GetToken method like so:
//
//	ClientInstance.GetToken(mwclient.CSRFToken)
const (
	CSRFToken                   = "csrf"
	DeleteGlobalAccountToken    = "deleteglobalaccount"
	LoginToken                  = "login"
	PatrolToken                 = "patrol"
	RollbackToken               = "rollback"
	SetGlobalAccountStatusToken = "setglobalaccountstatus"
	UserRightsToken             = "userrights"
	WatchToken                  = "watch"
)

// GetToken is GetTokenContext with a background context.
func (w *Client) GetToken(tokenName string) (string, error) {
	return w.GetTokenContext(context.Background(), tokenName)
}

// GetTokenContext returns a specified token (and an error if this is not possible).
// If the token is not already available in the Client.Tokens map,
// it will attempt to retrieve it via the API.
// tokenName should be "csrf" (or whatever), not "csrftoken".
// The token consts (e.g., mwclient.CSRFToken) should be used
// as the tokenName argument.
// Login tokens are never cached since each one is good for a single login.
func (w *Client) GetTokenContext(ctx context.Context, tokenName string) (string, error) {
	w.mu.Lock()
	token, ok := w.Tokens[tokenName]
	w.mu.Unlock()
	if ok {
		return token, nil
	}

	p := params.Values{
		"action": "query",
		"meta":   "tokens",
		"type":   tokenName,
	}
	resp, err := w.GetContext(ctx, p)
	if err != nil && !isWarnings(err) {
		return "", err
	}

	token, err = resp.GetString("query", "tokens", tokenName+"token")
	if err != nil {
		return "", &ResponseFormatError{Path: "query.tokens." + tokenName + "token", Reason: err.Error()}
	}

	if tokenName != LoginToken {
		w.mu.Lock()
		w.Tokens[tokenName] = token
		w.mu.Unlock()
	}
	return token, nil
}

// dropToken removes the cached token with the given value and returns its
// name, or "" if no cached token has that value.
func (w *Client) dropToken(value string) string {
	if value == "" {
		return ""
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, tok := range w.Tokens {
		if tok == value {
			delete(w.Tokens, name)
			return name
		}
	}
	return ""
}

// clearSession forgets tokens and the cached user info. It is called
// whenever the identity behind the session may have changed.
func (w *Client) clearSession() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Tokens = map[string]string{}
	w.userInfo = nil
}

func tokenError(name string, err error) error {
	return fmt.Errorf("unable to obtain %s token: %w", name, err)
}
