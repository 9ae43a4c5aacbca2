package mwclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/joeshaw/multierror"
	"golang.org/x/sync/errgroup"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// The API accepts up to 50 titles per request for ordinary accounts.
const (
	maxTitlesPerRequest = 50
	pageBatchWorkers    = 3
)

// BriefRevision contains basic information on a single revision of a page.
// Error is set when the page could not be retrieved (e.g. it is missing).
type BriefRevision struct {
	PageID    int64
	Content   string
	Timestamp string
	Error     error
}

// getPage gets the content of a page and the timestamp of its most recent revision.
// The page is specified either by its name or by its ID.
// If the isName parameter is true, then the pageIDorName parameter will be
// assumed to be a page name and vice versa.
func (w *Client) getPage(ctx context.Context, pageIDorName string, isName bool) (content string, timestamp string, err error) {
	p := params.Values{
		"action":  "query",
		"prop":    "revisions",
		"rvprop":  "content|timestamp",
		"rvslots": "main",
	}
	if isName {
		p.Set("titles", pageIDorName)
	} else {
		p.Set("pageids", pageIDorName)
	}

	resp, err := w.GetContext(ctx, p)
	var warnings APIWarnings
	if errors.As(err, &warnings) {
		err = nil
	}
	if err != nil {
		return "", "", err
	}

	pages, err := resp.GetObjectArray("query", "pages")
	if err != nil || len(pages) == 0 {
		return "", "", &ResponseFormatError{Path: "query.pages", Reason: "missing page array"}
	}
	page := pages[0]

	if missing, _ := page.GetBoolean("missing"); missing {
		return "", "", fmt.Errorf("%w (title/id: %s)", ErrPageNotFound, pageIDorName)
	}
	if invalid, _ := page.GetBoolean("invalid"); invalid {
		reason, _ := page.GetString("invalidreason")
		return "", "", APIError{Code: "invalidtitle", Info: reason}
	}

	revs, err := page.GetObjectArray("revisions")
	if err != nil || len(revs) == 0 {
		return "", "", &ResponseFormatError{Path: "query.pages[0].revisions", Reason: "missing revision"}
	}
	content, err = revs[0].GetString("slots", "main", "content")
	if err != nil {
		return "", "", fmt.Errorf("unable to assert page content to string: %w", err)
	}
	timestamp, err = revs[0].GetString("timestamp")
	if err != nil {
		return "", "", fmt.Errorf("unable to assert timestamp to string: %w", err)
	}

	if len(warnings.Warnings) > 0 {
		return content, timestamp, warnings
	}
	return content, timestamp, nil
}

// GetPageByName gets the content of a page (specified by its name) and
// the timestamp of its most recent revision.
func (w *Client) GetPageByName(pageName string) (content string, timestamp string, err error) {
	return w.getPage(context.Background(), pageName, true)
}

// GetPageByID gets the content of a page (specified by its id) and
// the timestamp of its most recent revision.
func (w *Client) GetPageByID(pageID string) (content string, timestamp string, err error) {
	return w.getPage(context.Background(), pageID, false)
}

// GetPagesByName gets the contents of multiple pages (specified by their
// names). It is GetPagesByNameContext with a background context.
func (w *Client) GetPagesByName(names ...string) (map[string]BriefRevision, error) {
	return w.GetPagesByNameContext(context.Background(), names...)
}

// GetPagesByNameContext gets the contents of multiple pages. The returned map
// is keyed by the names as given; a page that could not be retrieved has its
// Error field set. Names are requested in batches of 50, up to three batches
// at a time.
//
// When the map is non-nil, the error (if any) combines the API warnings of
// all batches. A nil map means a request failed.
func (w *Client) GetPagesByNameContext(ctx context.Context, names ...string) (map[string]BriefRevision, error) {
	if len(names) == 0 {
		return nil, &ArgumentError{Param: "titles", Reason: "no page names given"}
	}

	var (
		mu       sync.Mutex
		pages    = make(map[string]BriefRevision, len(names))
		warnings multierror.Errors
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pageBatchWorkers)
	for start := 0; start < len(names); start += maxTitlesPerRequest {
		batch := names[start:min(start+maxTitlesPerRequest, len(names))]
		g.Go(func() error {
			body, err := w.GetRawContext(ctx, params.Values{
				"action":  "query",
				"prop":    "revisions",
				"rvprop":  "content|timestamp",
				"rvslots": "main",
				"titles":  strings.Join(batch, "|"),
			})
			if err != nil {
				return err
			}
			var resp getPagesResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("unable to parse API response: %w", err)
			}

			batchPages, err := handleGetPages(batch, resp)
			mu.Lock()
			defer mu.Unlock()
			for name, rev := range batchPages {
				pages[name] = rev
			}
			if err != nil {
				var apiWarnings APIWarnings
				if !errors.As(err, &apiWarnings) {
					return err
				}
				warnings = append(warnings, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, warnings.Err()
}

type getPagesResponse struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
	Warnings map[string]struct {
		Warnings string `json:"warnings"`
	} `json:"warnings"`
	Query struct {
		Normalized []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"normalized"`
		Pages []struct {
			PageID        int64  `json:"pageid"`
			Title         string `json:"title"`
			Missing       bool   `json:"missing"`
			Invalid       bool   `json:"invalid"`
			InvalidReason string `json:"invalidreason"`
			Revisions     []struct {
				Timestamp string `json:"timestamp"`
				Slots     struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// handleGetPages maps a decoded response to the requested titles. An API
// error returns no pages. Warnings are returned as APIWarnings together
// with the pages.
func handleGetPages(titles []string, resp getPagesResponse) (map[string]BriefRevision, error) {
	if resp.Error != nil {
		return nil, APIError{Code: resp.Error.Code, Info: resp.Error.Info}
	}

	// The API answers with normalized titles; map them back to the input.
	requested := make(map[string]string, len(titles))
	for _, t := range titles {
		requested[t] = t
	}
	for _, n := range resp.Query.Normalized {
		if orig, ok := requested[n.From]; ok {
			requested[n.To] = orig
		}
	}

	pages := make(map[string]BriefRevision, len(titles))
	for _, page := range resp.Query.Pages {
		name, ok := requested[page.Title]
		if !ok {
			name = page.Title
		}
		rev := BriefRevision{PageID: page.PageID}
		switch {
		case page.Missing:
			rev.Error = fmt.Errorf("%w (title: %s)", ErrPageNotFound, page.Title)
		case page.Invalid:
			rev.Error = APIError{Code: "invalidtitle", Info: page.InvalidReason}
		case len(page.Revisions) == 0:
			rev.Error = &ResponseFormatError{Path: "query.pages.revisions", Reason: "no revision for " + page.Title}
		default:
			rev.Content = page.Revisions[0].Slots.Main.Content
			rev.Timestamp = page.Revisions[0].Timestamp
		}
		pages[name] = rev
	}
	for _, t := range titles {
		if _, ok := pages[t]; !ok {
			pages[t] = BriefRevision{Error: fmt.Errorf("page %q not in response", t)}
		}
	}

	var warnings []APIWarning
	for module, w := range resp.Warnings {
		for _, line := range strings.Split(w.Warnings, "\n") {
			warnings = append(warnings, APIWarning{Module: module, Info: line})
		}
	}
	if len(warnings) > 0 {
		return pages, APIWarnings{Warnings: warnings}
	}
	return pages, nil
}
