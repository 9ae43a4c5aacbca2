/*
Package mwclient provides functionality for interacting with the MediaWiki API.

go-mwclient is intended for users who are already familiar with (or are
willing to learn) the MediaWiki API. It is intended to make dealing with
the API more convenient, but not to hide it.

go-mwclient v2 uses version 2 of the MW JSON API (formatversion=2).

# Basic usage

In the example below, basic usage of go-mwclient is shown.

	// Initialize a *Client with New(), specifying the wiki's API URL
	// and your HTTP User-Agent. Try to use a meaningful User-Agent.
	w, err := mwclient.New("https://en.wikipedia.org/w/api.php", "myWikibot")
	if err != nil {
		panic(err) // Malformed URL
	}

	parameters := params.Values{
		"action":   "query",
		"list":     "recentchanges",
	}
	response, err := w.Get(parameters)
	if err != nil {
		panic(err)
	}

Create a new Client object with the New() constructor, and then you are
ready to start making requests to the API. If you wish to make requests
to multiple MediaWiki sites, you must create a Client for each of them.

go-mwclient offers a few methods for making arbitrary requests to
the API: Get, GetRaw, Post, and PostRaw, and their Context variants
(see documentation for the methods for details). They all offer the same
basic interface: pass a params.Values map (from the
cgt.name/pkg/go-mwclient/v2/params package), receive a response and an
error. Responses are *jason.Object values from
github.com/antonholmquist/jason.

For convenience, go-mwclient offers several methods for making common
requests (login, edit, etc.), but these methods are implemented using
the same interface.

# Lists

Most MediaWiki lists (list=categorymembers, list=backlinks, ...) return
their results in pages linked by continuation parameters. NewList
enumerates such a list item by item, fetching the next page only when
the previous one is used up:

	l := mwclient.NewList(w, mwclient.CategoryMembers{Title: "Soap"}, mwclient.ListOptions{})
	for l.Next(ctx) {
		fmt.Println(l.Item().Title)
	}
	if err := l.Err(); err != nil {
		// handle the error
	}

The page size defaults to the largest one the account may use (500, or
1000 with the apihighlimits right). Some wikis occasionally hand back a
continuation that was already used, which would make a naive client loop
forever. A List detects this and fails with a ContinuationLoopError, or,
with ListOptions.RecoverLoops, retries the request with larger pages and
skips the items it already returned.

Lists not covered by a dedicated type can be enumerated with RawList.
NewQuery remains available for raw, response-level continuation.

# params.Values

params.Values is similar to (and a fork of) the standard library's
net/url.Values. The reason why params.Values is used instead is
that url.Values is based on a map[string][]string, rather than a
map[string]string. This is because url.Values must support multiple keys
with the same name.

The literal syntax for a map[string][]string is rather cumbersome
because the value is a slice rather than just a string, and the
MediaWiki API actually does not use multiple keys when multiple values
for the same key is required. Instead, one key is used and the values
are separated by pipes (|).

params.Values makes it simple to write multi-value values in literals
while avoiding the cumbersome []string literals for the most common case
where there is only one value.

See documentation for the params package for more information.

# Error handling

If an API call fails it will return an error. Many things can go wrong
during an API call: the network could be down, the API could return an
unexpected response (if the API was changed), or perhaps there's an
error in your API request.

If the error is an API error or warning (and you used the "non-Raw" Get
and Post methods), then the error/warning(s) will be parsed and returned
in either an APIError or an APIWarnings object, both of which implement
the error interface. A response that only carried warnings is returned
together with the APIWarnings value. The "Raw" request methods do not
check for API errors or warnings.

For more information about API errors and warnings, please see
https://www.mediawiki.org/wiki/API:Errors_and_warnings.

If maxlag is enabled, or the server throttles the client with HTTP 429
or 503, requests are retried after the delay the server asks for. If all
retries (3 by default) fail, the error will be the variable
mwclient.ErrAPIBusy.

Responses of an unexpected shape produce a *ResponseFormatError, and
missing required arguments a *ArgumentError before any request is made.

# Observability

The client logs through the zerolog.Logger in Client.Logger (silent by
default), counts requests, retries and list pages in the Prometheus
collectors of the metrics package, and opens an OpenTelemetry span per
request (see the tracing package).
*/
package mwclient // import "cgt.name/pkg/go-mwclient/v2"
