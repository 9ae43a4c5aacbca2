package mwclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mrjones/oauth"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// Login is LoginContext with a background context.
func (w *Client) Login(username, password string) error {
	return w.LoginContext(context.Background(), username, password)
}

// LoginContext attempts to login using the provided username and password.
// Do not use LoginContext with OAuth.
//
// The credentials are kept so that a request failing a session assertion
// (see Client.Assert) can log in again and be retried once.
func (w *Client) LoginContext(ctx context.Context, username, password string) error {
	// Assertions would fail since we are not logged in yet.
	ctx = withoutAssert(ctx)

	token, err := w.GetTokenContext(ctx, LoginToken)
	if err != nil {
		return tokenError(LoginToken, err)
	}

	p := params.Values{
		"action":     "login",
		"lgname":     username,
		"lgpassword": password,
		"lgtoken":    token,
	}
	resp, err := w.callOnceJSON(ctx, p, true)
	if err != nil {
		return err
	}

	result, err := resp.GetString("login", "result")
	if err != nil {
		return &ResponseFormatError{Path: "login.result", Reason: err.Error()}
	}
	if result != "Success" {
		reason, _ := resp.GetString("login", "reason")
		return APIError{Code: result, Info: reason}
	}

	w.clearSession()
	w.mu.Lock()
	w.username, w.password = username, password
	w.mu.Unlock()

	w.Logger.Info().Str("username", username).Msg("logged in")
	return nil
}

// Logout is LogoutContext with a background context.
func (w *Client) Logout() error {
	return w.LogoutContext(context.Background())
}

// LogoutContext logs out and forgets stored credentials, tokens and user info.
func (w *Client) LogoutContext(ctx context.Context) error {
	token, err := w.GetTokenContext(ctx, CSRFToken)
	if err != nil {
		return tokenError(CSRFToken, err)
	}
	_, err = w.PostContext(ctx, params.Values{"action": "logout", "token": token})

	w.clearSession()
	w.mu.Lock()
	w.username, w.password = "", ""
	w.mu.Unlock()
	return err
}

// OAuth configures OAuth authentication. After calling OAuth, future requests
// will be authenticated. OAuth does not make any API calls, so authentication
// failures will appear in response to the first API call after OAuth has been
// configured. The cookie jar and timeout of the existing HTTP client are kept.
func (w *Client) OAuth(consumerToken, consumerSecret, accessToken, accessSecret string) error {
	consumer := oauth.NewConsumer(consumerToken, consumerSecret, oauth.ServiceProvider{})
	access := &oauth.AccessToken{Token: accessToken, Secret: accessSecret}

	httpc, err := consumer.MakeHttpClient(access)
	if err != nil {
		return fmt.Errorf("unable to create OAuth HTTP client: %w", err)
	}
	httpc.Jar = w.httpc.Jar
	httpc.Timeout = w.httpc.Timeout
	w.httpc = httpc

	w.clearSession()
	return nil
}

// DumpCookies exports the cookies stored in the client.
func (w *Client) DumpCookies() []*http.Cookie {
	return w.httpc.Jar.Cookies(w.apiURL)
}

// LoadCookies imports cookies into the client. Since the cookies may belong
// to another session, cached tokens and user info are dropped.
func (w *Client) LoadCookies(cookies []*http.Cookie) {
	w.httpc.Jar.SetCookies(w.apiURL, cookies)
	w.clearSession()
}
