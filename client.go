package mwclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/rs/zerolog"

	"cgt.name/pkg/go-mwclient/v2/metrics"
	"cgt.name/pkg/go-mwclient/v2/params"
	"cgt.name/pkg/go-mwclient/v2/tracing"
)

// If you modify this package, please change the user agent.
const DefaultUserAgent = "go-mwclient/2 (https://github.com/cgt/go-mwclient)"

type assertType uint8

// These consts are used as enums for the Client type's Assert field.
const (
	AssertNone assertType = iota // Assert nothing
	AssertUser                   // Assert that we're logged in
	AssertBot                    // Assert that we're a bot
)

// Maxlag contains maxlag configuration for Client.
// See https://www.mediawiki.org/wiki/Manual:Maxlag_parameter
//
// Retries is also the budget for requests the server throttled with
// HTTP 429 or 503 and a Retry-After header, whether or not On is set.
type Maxlag struct {
	// If true, API requests will set the maxlag parameter.
	On bool
	// The maxlag parameter to send to the server.
	Timeout string
	// Specifies how many times to retry a request before returning with an error.
	Retries int
	// sleep is used for mocking time.Sleep in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Client represents the API client.
type Client struct {
	httpc     *http.Client
	apiURL    *url.URL
	UserAgent string
	// Tokens caches tokens by name (e.g. "csrf"). It may be filled by hand
	// before any request is made; after that use GetToken.
	Tokens map[string]string
	Maxlag Maxlag
	// Assert makes every request assert that the session is logged in
	// (AssertUser) or a bot (AssertBot).
	Assert assertType
	// Logger receives debug output for requests and warnings for retries.
	Logger zerolog.Logger

	mu       sync.Mutex
	username string
	password string
	userInfo *UserInfo
}

// New returns a pointer to an initialized Client object. If the provided API URL
// is invalid (as defined by the net/url package), then it will return nil and
// the error from url.Parse().
//
// The userAgent parameter will be joined with the DefaultUserAgent const and
// used as HTTP User-Agent. If userAgent is an empty string, DefaultUserAgent
// will be used by itself as User-Agent. The User-Agent set by New can be
// overriden by setting the UserAgent field on the returned *Client.
//
// New disables maxlag by default. To enable it, simply set
// Client.Maxlag.On to true. The default timeout is 5 seconds and the default
// amount of retries is 3.
func New(inURL, userAgent string) (*Client, error) {
	apiurl, err := url.Parse(inURL)
	if err != nil {
		return nil, err
	}
	if apiurl.Scheme == "" || apiurl.Host == "" {
		return nil, fmt.Errorf("API URL %q must be absolute", inURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	var ua string
	if userAgent != "" {
		ua = userAgent + " " + DefaultUserAgent
	} else {
		ua = DefaultUserAgent
	}

	return &Client{
		httpc:     &http.Client{Jar: jar},
		apiURL:    apiurl,
		UserAgent: ua,
		Tokens:    map[string]string{},
		Maxlag: Maxlag{
			On:      false,
			Timeout: "5",
			Retries: 3,
			sleep:   sleepContext,
		},
		Assert: AssertNone,
		Logger: zerolog.Nop(),
	}, nil
}

// SetHTTPTimeout overrides the default HTTP client timeout of 0 (no timeout).
func (w *Client) SetHTTPTimeout(timeout time.Duration) {
	w.httpc.Timeout = timeout
}

type noAssertKey struct{}

// withoutAssert marks requests made with the returned context as exempt
// from Client.Assert.
func withoutAssert(ctx context.Context) context.Context {
	return context.WithValue(ctx, noAssertKey{}, true)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call makes a GET or POST request to the Mediawiki API (depending on whether
// the post argument is true or false (if true, it will POST) and returns the
// raw response body. Lagged or throttled requests are retried according to
// the Maxlag settings.
func (w *Client) call(ctx context.Context, p params.Values, post bool) ([]byte, error) {
	p = p.Clone()
	p.Set("format", "json")
	p.Set("formatversion", "2")
	if w.Maxlag.On {
		if p.Get("maxlag") == "" {
			p.Set("maxlag", w.Maxlag.Timeout)
		}
	}
	if ctx.Value(noAssertKey{}) == nil {
		switch w.Assert {
		case AssertUser:
			p.Set("assert", "user")
		case AssertBot:
			p.Set("assert", "bot")
		}
	}

	sleep := w.Maxlag.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		body, err := w.do(ctx, p, post)
		var lagErr maxLagError
		if !errors.As(err, &lagErr) {
			return body, err
		}
		if attempt >= w.Maxlag.Retries {
			return nil, ErrAPIBusy
		}
		metrics.RecordRetry(lagErr.Reason)
		w.Logger.Warn().
			Str("action", p.Get("action")).
			Int("attempt", attempt+1).
			Int("wait", lagErr.Wait).
			Msg(lagErr.Message)
		if err := sleep(ctx, time.Duration(lagErr.Wait)*time.Second); err != nil {
			return nil, err
		}
	}
}

// do performs a single HTTP request.
func (w *Client) do(ctx context.Context, p params.Values, post bool) (body []byte, err error) {
	action := p.Get("action")
	method := http.MethodGet
	if post {
		method = http.MethodPost
	}

	ctx, span := tracing.StartSpan(ctx, "mediawiki.api")
	defer span.End()
	tracing.AddAPIAttributes(span, action, method)

	start := time.Now()
	defer func() {
		tracing.RecordError(span, err)
		metrics.RecordAPICall(action, time.Since(start).Seconds(), err == nil)
	}()

	var req *http.Request
	if post {
		req, err = http.NewRequestWithContext(ctx, method, w.apiURL.String(), strings.NewReader(p.Encode()))
		if err != nil {
			return nil, fmt.Errorf("unable to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		u := *w.apiURL
		u.RawQuery = p.Encode()
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("unable to create request: %w", err)
		}
	}
	req.Header.Set("User-Agent", w.UserAgent)

	w.Logger.Debug().Str("action", action).Str("method", method).Msg("API request")

	resp, err := w.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error occured during HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading from resp.Body: %w", err)
	}

	if resp.Header.Get("X-Database-Lag") != "" {
		return nil, maxLagError{
			Message: fmt.Sprintf("database lagged %s seconds", resp.Header.Get("X-Database-Lag")),
			Wait:    retryAfter(resp.Header),
			Reason:  "maxlag",
		}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("Retry-After") != "" {
			return nil, maxLagError{
				Message: fmt.Sprintf("throttled with HTTP status %d", resp.StatusCode),
				Wait:    retryAfter(resp.Header),
				Reason:  "throttled",
			}
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned HTTP status %d", resp.StatusCode)
	}

	return body, nil
}

func retryAfter(h http.Header) int {
	wait, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || wait < 0 {
		return 1
	}
	return wait
}

// callJSON makes a request with call, parses the body and extracts API errors.
// Assertion failures trigger one re-login with stored credentials and bad
// tokens trigger one token refresh, each followed by a single retry.
func (w *Client) callJSON(ctx context.Context, p params.Values, post bool) (*jason.Object, error) {
	resp, err := w.callOnceJSON(ctx, p, post)

	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return resp, err
	}
	metrics.RecordAPIError(apiErr.Code)

	switch apiErr.Code {
	case "assertuserfailed", "assertbotfailed":
		w.mu.Lock()
		username, password := w.username, w.password
		w.mu.Unlock()
		if username == "" {
			return resp, err
		}
		metrics.RecordRetry("assert")
		w.Logger.Warn().Str("code", apiErr.Code).Msg("session assertion failed, logging in again")
		if lgErr := w.LoginContext(ctx, username, password); lgErr != nil {
			return nil, fmt.Errorf("%w (re-login failed: %v)", err, lgErr)
		}
		return w.callOnceJSON(ctx, p, post)

	case "badtoken":
		name := w.dropToken(p.Get("token"))
		if name == "" || !post {
			return resp, err
		}
		metrics.RecordRetry("badtoken")
		w.Logger.Warn().Str("token", name).Msg("bad token, fetching a new one")
		token, tkErr := w.GetTokenContext(ctx, name)
		if tkErr != nil {
			return nil, fmt.Errorf("%w (token refresh failed: %v)", err, tkErr)
		}
		p = p.Clone()
		p.Set("token", token)
		return w.callOnceJSON(ctx, p, post)
	}

	return resp, err
}

func (w *Client) callOnceJSON(ctx context.Context, p params.Values, post bool) (*jason.Object, error) {
	body, err := w.call(ctx, p, post)
	if err != nil {
		return nil, err
	}
	resp, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("unable to parse API response: %w", err)
	}
	return extractAPIErrors(resp)
}

// GetContext performs a GET request with the specified parameters and returns
// the response as a *jason.Object.
// GetContext will return any API errors and/or warnings (if no other errors occur)
// as the error return value. An APIError means the request failed; an
// APIWarnings value comes with a usable response.
func (w *Client) GetContext(ctx context.Context, p params.Values) (*jason.Object, error) {
	return w.callJSON(ctx, p, false)
}

// PostContext performs a POST request with the specified parameters and returns
// the response as a *jason.Object. Errors are handled like in GetContext.
func (w *Client) PostContext(ctx context.Context, p params.Values) (*jason.Object, error) {
	return w.callJSON(ctx, p, true)
}

// Get is GetContext with a background context.
func (w *Client) Get(p params.Values) (*jason.Object, error) {
	return w.GetContext(context.Background(), p)
}

// Post is PostContext with a background context.
func (w *Client) Post(p params.Values) (*jason.Object, error) {
	return w.PostContext(context.Background(), p)
}

// GetRawContext performs a GET request with the specified parameters
// and returns the raw JSON response as a []byte.
// Unlike GetContext, GetRawContext does not check the API response for errors.
func (w *Client) GetRawContext(ctx context.Context, p params.Values) ([]byte, error) {
	return w.call(ctx, p, false)
}

// PostRawContext performs a POST request with the specified parameters
// and returns the raw JSON response as a []byte.
// Unlike PostContext, PostRawContext does not check the API response for errors.
func (w *Client) PostRawContext(ctx context.Context, p params.Values) ([]byte, error) {
	return w.call(ctx, p, true)
}

// GetRaw is GetRawContext with a background context.
func (w *Client) GetRaw(p params.Values) ([]byte, error) {
	return w.GetRawContext(context.Background(), p)
}

// PostRaw is PostRawContext with a background context.
func (w *Client) PostRaw(p params.Values) ([]byte, error) {
	return w.PostRawContext(context.Background(), p)
}
