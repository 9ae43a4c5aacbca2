package mwclient

import (
	"context"

	"github.com/antonholmquist/jason"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// Query provides a simple interface to deal with query continuations.
//
// A Query should be instantiated through the NewQuery method on the
// Client type. Once you have instantiated a Query, call the Next method
// to retrieve the first set of results from the API.
// If Next returns false, then either you have received all the results
// for the query or an error occurred. If an error occurs, it will be
// available through the Err method.
// If Next returns true, then another response is available through Resp.
//
// Query works on whole responses. To enumerate the items of a single list
// with typed results and loop recovery, use NewList instead.
//
// The following example will retrieve all the pages that are in the category
// "Soap":
//
//	p := params.Values{
//		"list": "categorymembers",
//		"cmtitle": "Category:Soap",
//	}
//	q := w.NewQuery(p) // w being an instantiated Client
//	for q.Next() {
//		fmt.Println(q.Resp())
//	}
//	if q.Err() != nil {
//		// handle the error
//	}
//
// A continuation the API already handed out in the same query ends it with
// a ContinuationLoopError.
//
// See https://www.mediawiki.org/wiki/API:Query for more details on how to
// query the MediaWiki API.
type Query struct {
	w      *Client
	params params.Values
	cont   *continuation
	resp   *jason.Object
	err    error
	done   bool
}

// Err returns the first error encountered by the Next method.
func (q *Query) Err() error {
	return q.err
}

// Resp returns the API response retrieved by the Next method.
func (q *Query) Resp() *jason.Object {
	return q.resp
}

// NewQuery instantiates a new query with the given parameters.
// Automatically sets action=query and continue= on a copy of the provided
// params.Values.
func (w *Client) NewQuery(p params.Values) *Query {
	p = p.Clone()
	p.Set("action", "query")
	p.Set("continue", "")

	return &Query{
		w:      w,
		params: p,
		cont:   newContinuation("", nil, w.Logger),
	}
}

// Next retrieves the next set of results from the API and makes them available
// through the Resp method. Next returns true if new results are available
// through Resp or false if there were no more results to request or if an
// error occurred.
func (q *Query) Next() bool {
	return q.NextContext(context.Background())
}

// NextContext is Next with a context.
func (q *Query) NextContext(ctx context.Context) bool {
	if q.done || q.err != nil {
		return false
	}

	p := params.Merge(q.params, q.cont.params())
	q.cont.markSent()
	resp, err := q.w.GetContext(ctx, p)
	if err != nil {
		if !isWarnings(err) {
			q.err = err
			return false
		}
		q.w.Logger.Warn().Err(err).Msg("API returned warnings")
	}

	status, cont, err := q.cont.parse(resp, -1)
	switch {
	case err != nil:
		q.err = err
		return false
	case status == ContinueLoop:
		q.err = &ContinuationLoopError{List: q.params.Get("list"), Continue: cont}
		return false
	case status == ContinueDone:
		q.done = true
	}
	q.resp = resp
	return true
}
