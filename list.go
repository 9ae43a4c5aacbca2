package mwclient

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/antonholmquist/jason"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"cgt.name/pkg/go-mwclient/v2/metrics"
	"cgt.name/pkg/go-mwclient/v2/params"
	"cgt.name/pkg/go-mwclient/v2/tracing"
)

// minRecoveryLimit is the smallest page size tried when recovering from a
// continuation loop.
const minRecoveryLimit = 50

// ListSpec describes one kind of MediaWiki list (list=... in action=query).
// Implementations supply the list-specific parameters and turn one entry of
// the result array into an item.
type ListSpec[T any] interface {
	// ListName is the value of the list parameter, e.g. "categorymembers".
	ListName() string
	// Prefix is the parameter prefix of the list, e.g. "cm".
	Prefix() string
	// Params returns the list-specific parameters. It is called once,
	// before any request is made; an error stops the enumeration.
	Params() (params.Values, error)
	// ParseItem converts one entry of the result array.
	ParseItem(item *jason.Object) (T, error)
}

// ErrorTranslator may be implemented by a ListSpec to replace an error that
// ends an enumeration with a more specific one. Returning nil keeps the
// original error.
type ErrorTranslator interface {
	TranslateError(err error) error
}

// ListOptions controls a list enumeration.
type ListOptions struct {
	// Limit is the number of items per request. Zero means Limits.Default.
	Limit int
	// Limits overrides the limits derived from the rights of the current
	// account. When nil and needed, they are looked up once with
	// Client.Limits.
	Limits *Limits
	// RecoverLoops enables the recovery strategy for continuation loops:
	// the looping request is repeated with doubled page sizes up to
	// Limits.Ceiling, and items of the recovered page that were already
	// returned are skipped. Without it a loop ends the enumeration with a
	// ContinuationLoopError. The List keeps a hash of every item it
	// returned while RecoverLoops is set.
	RecoverLoops bool
	// LegacyContinue requests the pre-1.26 continuation format (rawcontinue).
	LegacyContinue bool
	// Continue seeds the continuation parameters, e.g. with the value of
	// Continue() saved from an earlier enumeration.
	Continue params.Values
}

// List enumerates a MediaWiki list page by page. Items are fetched lazily:
// a request is made only when the items of the previous page have all been
// consumed.
//
// A List should be instantiated with NewList. Call Next to advance to the
// next item and Item to get it. When Next returns false, either every item
// has been returned or an error occurred, which is then available through Err.
//
//	l := mwclient.NewList(w, mwclient.CategoryMembers{Title: "Category:Soap"}, mwclient.ListOptions{})
//	for l.Next(ctx) {
//		fmt.Println(l.Item().Title)
//	}
//	if err := l.Err(); err != nil {
//		// handle the error
//	}
//
// A List is single-pass and not safe for concurrent use. Separate Lists are
// independent and may be used from different goroutines.
type List[T any] struct {
	w      *Client
	spec   ListSpec[T]
	opts   ListOptions
	name   string
	logger zerolog.Logger

	base        params.Values
	limit       int
	limits      Limits
	limitsKnown bool
	cont        *continuation

	buf   []T
	item  T
	err   error
	done  bool
	pages int

	// seen holds the hashes of the raw JSON of every item returned so far.
	// It is only kept with RecoverLoops.
	seen map[uint64]struct{}
}

// NewList returns a List for spec. No request is made until the first call
// to Next.
func NewList[T any](w *Client, spec ListSpec[T], opts ListOptions) *List[T] {
	name := spec.ListName()
	logger := w.Logger.With().Str("list", name).Logger()
	if opts.Limits != nil {
		opts.Limits = &Limits{Default: opts.Limits.Default, Ceiling: opts.Limits.Ceiling}
	}
	l := &List[T]{
		w:      w,
		spec:   spec,
		opts:   opts,
		name:   name,
		logger: logger,
		cont:   newContinuation(name, opts.Continue, logger),
	}
	if opts.RecoverLoops {
		l.seen = map[uint64]struct{}{}
	}
	return l
}

// Next advances to the next item, fetching another page if needed. It
// returns false when the list is exhausted or an error occurred.
func (l *List[T]) Next(ctx context.Context) bool {
	for len(l.buf) == 0 {
		if l.err != nil || l.done {
			return false
		}
		if err := l.fetch(ctx); err != nil {
			l.fail(err)
			return false
		}
	}
	var zero T
	l.item = l.buf[0]
	l.buf[0] = zero
	l.buf = l.buf[1:]
	return true
}

// Item returns the item Next advanced to.
func (l *List[T]) Item() T {
	return l.item
}

// Err returns the error that ended the enumeration, if any.
func (l *List[T]) Err() error {
	return l.err
}

// Continue returns the continuation parameters for the next request. They
// can be passed as ListOptions.Continue to resume the list later. Items
// already fetched but not yet consumed are not covered by them.
func (l *List[T]) Continue() params.Values {
	return l.cont.params()
}

// Pages returns the number of pages fetched so far.
func (l *List[T]) Pages() int {
	return l.pages
}

// All returns an iterator over the remaining items. An error ending the
// enumeration is yielded last, with the zero item.
func (l *List[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for l.Next(ctx) {
			if !yield(l.Item(), nil) {
				return
			}
		}
		if err := l.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect consumes l and returns all its items. On error, the items
// returned before the error are returned with it.
func Collect[T any](ctx context.Context, l *List[T]) ([]T, error) {
	var items []T
	for l.Next(ctx) {
		items = append(items, l.Item())
	}
	return items, l.Err()
}

func (l *List[T]) fail(err error) {
	if t, ok := l.spec.(ErrorTranslator); ok {
		if terr := t.TranslateError(err); terr != nil {
			err = terr
		}
	}
	l.err = err
}

// init builds the base parameters. It runs before the first request.
func (l *List[T]) init(ctx context.Context) error {
	listParams, err := l.spec.Params()
	if err != nil {
		return err
	}

	defaults := params.Values{
		"action": "query",
		"list":   l.name,
	}
	if l.opts.LegacyContinue {
		defaults.Set("rawcontinue", "")
	} else {
		defaults.Set("continue", "")
	}

	l.limit = l.opts.Limit
	if l.limit <= 0 || l.opts.Limits != nil {
		if err := l.resolveLimits(ctx); err != nil {
			return err
		}
	}
	if l.limit <= 0 {
		l.limit = l.limits.Default
	}
	if l.limitsKnown && l.limit > l.limits.Ceiling {
		l.limit = l.limits.Ceiling
	}

	l.base = params.Merge(defaults, listParams)
	l.base.SetInt(l.limitKey(), l.limit)
	return nil
}

func (l *List[T]) resolveLimits(ctx context.Context) error {
	if l.limitsKnown {
		return nil
	}
	if l.opts.Limits != nil {
		l.limits = *l.opts.Limits
	} else {
		limits, err := l.w.Limits(ctx)
		if err != nil {
			return fmt.Errorf("unable to determine list limits: %w", err)
		}
		l.limits = limits
	}
	l.limitsKnown = true
	return nil
}

func (l *List[T]) limitKey() string {
	return l.spec.Prefix() + "limit"
}

// entry is a parsed item together with the hash of its raw JSON.
type entry[T any] struct {
	sum  uint64
	item T
}

// fetch requests the next page and fills the buffer.
func (l *List[T]) fetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.base == nil {
		if err := l.init(ctx); err != nil {
			return err
		}
	}

	p := params.Merge(l.base, l.cont.params())
	l.cont.markSent()

	page, status, cont, err := l.request(ctx, p)
	if err != nil {
		return err
	}

	switch status {
	case ContinueDone:
		l.done = true
		l.commit(page, false)
	case ContinueAvailable:
		l.commit(page, false)
	case ContinueLoop:
		l.logger.Warn().Str("continue", cont.Encode()).Int("limit", l.limit).Msg("continuation loop detected")
		if !l.opts.RecoverLoops {
			metrics.RecordLoop(l.name, false)
			return &ContinuationLoopError{List: l.name, Continue: cont, Limit: l.limit}
		}
		return l.recoverLoop(ctx, p, cont)
	}
	return nil
}

// recoverLoop repeats the request p, which produced a continuation loop,
// with doubled page sizes until the response carries a new continuation or
// none, or the ceiling is reached.
func (l *List[T]) recoverLoop(ctx context.Context, p params.Values, loop params.Values) error {
	if err := l.resolveLimits(ctx); err != nil {
		return err
	}

	limit := l.limit
	for limit < l.limits.Ceiling {
		limit *= 2
		if limit < minRecoveryLimit {
			limit = minRecoveryLimit
		}
		if limit > l.limits.Ceiling {
			limit = l.limits.Ceiling
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		l.logger.Debug().Int("limit", limit).Msg("retrying looping request with a larger page")
		rp := p.Clone()
		rp.SetInt(l.limitKey(), limit)

		page, status, _, err := l.request(ctx, rp)
		if err != nil {
			return err
		}
		if status == ContinueLoop {
			continue
		}

		metrics.RecordLoop(l.name, true)
		if status == ContinueDone {
			l.done = true
		}
		l.commit(page, true)
		return nil
	}

	metrics.RecordLoop(l.name, false)
	return &ContinuationLoopError{List: l.name, Continue: loop, Limit: limit}
}

// commit buffers the items of page. With dedupe, items already returned
// earlier in the enumeration are skipped.
func (l *List[T]) commit(page []entry[T], dedupe bool) {
	n := 0
	for _, e := range page {
		if dedupe {
			if _, dup := l.seen[e.sum]; dup {
				continue
			}
		}
		if l.seen != nil {
			l.seen[e.sum] = struct{}{}
		}
		l.buf = append(l.buf, e.item)
		n++
	}
	l.pages++
	metrics.RecordListPage(l.name, n)
}

// request makes one API call and parses its items and continuation.
func (l *List[T]) request(ctx context.Context, p params.Values) ([]entry[T], ContinueStatus, params.Values, error) {
	ctx, span := tracing.StartSpan(ctx, "mediawiki.list.page")
	defer span.End()
	tracing.AddListAttributes(span, l.name, l.pages+1)

	resp, err := l.w.GetContext(ctx, p)
	var warnings APIWarnings
	if errors.As(err, &warnings) {
		l.logger.Warn().Err(warnings).Msg("API returned warnings")
		err = nil
	}
	if err != nil {
		tracing.RecordError(span, err)
		return nil, ContinueDone, nil, err
	}

	page, err := l.parseItems(resp)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, ContinueDone, nil, err
	}

	status, cont, err := l.cont.parse(resp, len(page))
	if err != nil {
		var rfe *ResponseFormatError
		if errors.As(err, &rfe) {
			rfe.List = l.name
		}
		tracing.RecordError(span, err)
		return nil, ContinueDone, nil, err
	}
	return page, status, cont, nil
}

// parseItems parses the item array at query.<list>. A missing array yields
// no items; an array of the wrong shape is a ResponseFormatError.
func (l *List[T]) parseItems(resp *jason.Object) ([]entry[T], error) {
	path := "query." + l.name
	v, err := resp.GetValue("query", l.name)
	if err != nil {
		return nil, nil
	}
	values, err := v.Array()
	if err != nil {
		return nil, &ResponseFormatError{List: l.name, Path: path, Reason: "item list is not an array"}
	}

	page := make([]entry[T], 0, len(values))
	for i, value := range values {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		obj, err := value.Object()
		if err != nil {
			return nil, &ResponseFormatError{List: l.name, Path: itemPath, Reason: "item is not an object"}
		}
		raw, err := value.Marshal()
		if err != nil {
			return nil, &ResponseFormatError{List: l.name, Path: itemPath, Reason: err.Error()}
		}
		item, err := l.spec.ParseItem(obj)
		if err != nil {
			var rfe *ResponseFormatError
			if errors.As(err, &rfe) {
				return nil, err
			}
			return nil, &ResponseFormatError{List: l.name, Path: itemPath, Reason: err.Error()}
		}
		page = append(page, entry[T]{sum: xxhash.Sum64(raw), item: item})
	}
	return page, nil
}
