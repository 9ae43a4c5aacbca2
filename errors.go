package mwclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antonholmquist/jason"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// ErrAPIBusy is returned when the API rejected a request because of lag or
// throttling and all retries were used.
var ErrAPIBusy = errors.New("the API is too busy. Try again later")

// ErrPageNotFound is returned when a page does not exist.
var ErrPageNotFound = errors.New("wiki page not found")

// ErrContinuationLoop matches every ContinuationLoopError with errors.Is.
var ErrContinuationLoop = errors.New("continuation loop")

// APIError represents a generic API error described by an error code
// and a string containing information about the error.
type APIError struct {
	Code, Info string
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Info)
}

// APIWarning represents a generic API warning described by the name of the module
// from which the warning originates and a string containing information about the warning.
type APIWarning struct {
	Module, Info string
}

func (e APIWarning) Error() string {
	return fmt.Sprintf("%s: %s", e.Module, e.Info)
}

// APIWarnings is returned when the API returned warnings. The response
// that carried them is still returned and usable.
type APIWarnings struct {
	Warnings []APIWarning
}

func (w APIWarnings) Error() string {
	msgs := make([]string, len(w.Warnings))
	for i, warn := range w.Warnings {
		msgs[i] = warn.Error()
	}
	return "API warnings: " + strings.Join(msgs, "; ")
}

// isWarnings reports whether err only carries API warnings.
func isWarnings(err error) bool {
	var warnings APIWarnings
	return errors.As(err, &warnings)
}

// CaptchaError represents the error returned by the API when it requires the client
// to solve a CAPTCHA to perform the action requested.
type CaptchaError struct {
	Type     string `json:"type"`
	Mime     string `json:"mime"`
	ID       string `json:"id"`
	URL      string `json:"url"`
	Question string `json:"question"`
}

func (e CaptchaError) Error() string {
	if e.Question != "" {
		return fmt.Sprintf("API requires solving a CAPTCHA of type %s with ID %s: %s", e.Type, e.ID, e.Question)
	}
	return fmt.Sprintf("API requires solving a CAPTCHA of type %s (%s) with ID %s at URL %s", e.Type, e.Mime, e.ID, e.URL)
}

// maxLagError is returned by a single attempt in Client.call when there is too much
// lag on the MediaWiki site or the server asked the client to slow down. Wait is
// the number of seconds to wait before trying the request again. Reason is
// "maxlag" or "throttled".
type maxLagError struct {
	Message string
	Wait    int
	Reason  string
}

func (e maxLagError) Error() string {
	return e.Message
}

// ResponseFormatError is returned when a response does not have the shape
// the client expects, e.g. the item array of a list is an object.
type ResponseFormatError struct {
	List   string
	Path   string
	Reason string
}

func (e *ResponseFormatError) Error() string {
	if e.List != "" {
		return fmt.Sprintf("unexpected response format for list %s at %s: %s", e.List, e.Path, e.Reason)
	}
	return fmt.Sprintf("unexpected response format at %s: %s", e.Path, e.Reason)
}

// ContinuationLoopError is returned when the API hands back a continuation
// that was already used in the same enumeration and the loop could not be
// escaped. Continue holds the repeating continuation parameters and Limit
// the last page size tried.
type ContinuationLoopError struct {
	List     string
	Continue params.Values
	Limit    int
}

func (e *ContinuationLoopError) Error() string {
	return fmt.Sprintf("list %s: continuation loop at %s (limit %d)", e.List, e.Continue.Encode(), e.Limit)
}

func (e *ContinuationLoopError) Is(target error) bool {
	return target == ErrContinuationLoop
}

// ArgumentError is returned before any request is made when a list or
// method is called without a required parameter.
type ArgumentError struct {
	Param  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Param, e.Reason)
}

// extractAPIErrors extracts API errors and warnings from a given *jason.Object.
// An error takes precedence over warnings. With only warnings, the response is
// returned together with an APIWarnings error.
func extractAPIErrors(resp *jason.Object) (*jason.Object, error) {
	if apiErr, err := resp.GetObject("error"); err == nil {
		code, _ := apiErr.GetString("code")
		info, _ := apiErr.GetString("info")
		if code == "" {
			return nil, &ResponseFormatError{Path: "error.code", Reason: "missing error code"}
		}
		return resp, APIError{Code: code, Info: info}
	}

	warningsObj, err := resp.GetObject("warnings")
	if err != nil {
		return resp, nil
	}

	var warnings []APIWarning
	for module, v := range warningsObj.Map() {
		obj, err := v.Object()
		if err != nil {
			continue
		}
		// formatversion=2 uses "warnings", formatversion=1 uses "*"
		text, err := obj.GetString("warnings")
		if err != nil {
			text, err = obj.GetString("*")
			if err != nil {
				continue
			}
		}
		// There can be multiple warnings in one warning info field.
		// If so, they are separated by a newline.
		for _, line := range strings.Split(text, "\n") {
			warnings = append(warnings, APIWarning{Module: module, Info: line})
		}
	}
	if len(warnings) == 0 {
		return resp, nil
	}
	return resp, APIWarnings{Warnings: warnings}
}
