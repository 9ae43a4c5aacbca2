package mwclient

import (
	"fmt"

	"github.com/antonholmquist/jason"
	"github.com/rs/zerolog"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// ContinueStatus is the outcome of inspecting a response for continuation.
type ContinueStatus int

const (
	// ContinueDone means the response was the last one.
	ContinueDone ContinueStatus = iota
	// ContinueAvailable means more results exist; the continuation
	// parameters for the next request have been stored.
	ContinueAvailable
	// ContinueLoop means the server returned continuation parameters that
	// were already sent in this enumeration.
	ContinueLoop
)

func (s ContinueStatus) String() string {
	switch s {
	case ContinueDone:
		return "done"
	case ContinueAvailable:
		return "available"
	case ContinueLoop:
		return "loop"
	default:
		return fmt.Sprintf("ContinueStatus(%d)", int(s))
	}
}

// continuation holds the continuation state of one enumeration: the
// parameters to send with the next request and every set sent so far.
type continuation struct {
	list   string
	logger zerolog.Logger
	next   params.Values
	sent   map[string]struct{}
}

func newContinuation(list string, seed params.Values, logger zerolog.Logger) *continuation {
	return &continuation{
		list:   list,
		logger: logger,
		next:   seed.Clone(),
		sent:   map[string]struct{}{},
	}
}

// params returns a copy of the parameters for the next request.
func (c *continuation) params() params.Values {
	return c.next.Clone()
}

// markSent records that the current continuation parameters went out with a
// request. A response handing them back again is a loop.
func (c *continuation) markSent() {
	c.sent[c.next.Encode()] = struct{}{}
}

// parse inspects a response obtained with the current continuation
// parameters. items is the number of entries in the response's item array
// (0 when it is absent, negative when not counted). It returns the status and the continuation set the
// response carried (nil for ContinueDone). Only ContinueAvailable replaces
// the stored parameters.
func (c *continuation) parse(resp *jason.Object, items int) (ContinueStatus, params.Values, error) {
	obj, path := findContinuation(resp, c.list)
	if obj == nil {
		return ContinueDone, nil, nil
	}

	cont, err := continuationValues(obj, path)
	if err != nil {
		return ContinueDone, nil, err
	}
	if len(cont) == 0 {
		return ContinueDone, nil, nil
	}

	if _, seen := c.sent[cont.Encode()]; seen {
		return ContinueLoop, cont, nil
	}

	if items == 0 {
		c.logger.Warn().
			Str("list", c.list).
			Str("continue", cont.Encode()).
			Msg("response has continuation but no items")
	}
	c.next = cont
	return ContinueAvailable, cont, nil
}

// findContinuation returns the modern "continue" object or, failing that,
// the legacy "query-continue" object of the list.
func findContinuation(resp *jason.Object, list string) (*jason.Object, string) {
	if obj, err := resp.GetObject("continue"); err == nil {
		return obj, "continue"
	}
	if list != "" {
		if obj, err := resp.GetObject("query-continue", list); err == nil {
			return obj, "query-continue." + list
		}
	}
	return nil, ""
}

// continuationValues converts a continuation object to request parameters.
// Numbers keep their JSON text, true becomes an empty (present) value and
// false or null drop the key.
func continuationValues(obj *jason.Object, path string) (params.Values, error) {
	cont := params.Values{}
	for k, v := range obj.Map() {
		if s, err := v.String(); err == nil {
			cont.Set(k, s)
			continue
		}
		if n, err := v.Number(); err == nil {
			cont.Set(k, n.String())
			continue
		}
		if b, err := v.Boolean(); err == nil {
			cont.SetBool(k, b)
			continue
		}
		if v.Null() == nil {
			continue
		}
		return nil, &ResponseFormatError{
			Path:   path + "." + k,
			Reason: "unsupported continuation value",
		}
	}
	return cont, nil
}
