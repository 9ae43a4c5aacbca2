// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package params is a MediaWiki specific replacement for parts of net/url.
// Specifically, it contains a fork of url.Values (params.Values) that
// is based on map[string]string instead of map[string][]string.
// The purpose of this is that the MediaWiki API does not use multiple keys
// to allow multiple values for a key (e.g., "a=b&a=c"). Instead it uses
// one key with values separated by a pipe (e.g. "a=b|c").
//
// The package also holds the parameter builder used by the list
// enumerator: Merge composes a request from defaults, list-specific
// options and continuation parameters, later sets winning on collision.
package params // import "cgt.name/pkg/go-mwclient/v2/params"

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Values maps a string key to a string value.
// It is typically used for query parameters and form values.
// Unlike in the http.Header map, the keys in a Values map
// are case-sensitive.
//
// A key with an empty value is sent as "key=". The MediaWiki API
// treats such a key as a true boolean. A missing key is not sent at all.
type Values map[string]string

// Get gets the value associated with the given key.
// If there are no values associated with the key, Get returns
// the empty string.
func (v Values) Get(key string) string {
	if v == nil {
		return ""
	}
	return v[key]
}

// Has reports whether key is present, even with an empty value.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Set sets the key to value. It replaces any existing
// values.
func (v Values) Set(key, value string) {
	v[key] = value
}

// SetInt sets the key to the decimal form of n.
func (v Values) SetInt(key string, n int) {
	v[key] = strconv.Itoa(n)
}

// SetBool sets a MediaWiki boolean parameter. true sends the key with an
// empty value, false removes the key, since the API treats any present
// key as true.
func (v Values) SetBool(key string, b bool) {
	if b {
		v[key] = ""
	} else {
		delete(v, key)
	}
}

// SetList replaces the value of key with values joined by pipes.
// An empty values list removes the key.
func (v Values) SetList(key string, values ...string) {
	if len(values) == 0 {
		delete(v, key)
		return
	}
	v[key] = strings.Join(values, "|")
}

// Add adds the value to key. It appends to any existing
// values associated with key.
func (v Values) Add(key, value string) {
	if current, ok := v[key]; ok {
		v[key] = current + "|" + value
	} else {
		v[key] = value
	}
}

// AddRange adds multiple values to a key.
// It appends to any existing values associated with key.
func (v Values) AddRange(key string, values ...string) {
	joined := strings.Join(values, "|")
	if current, ok := v[key]; ok {
		v[key] = current + "|" + joined
	} else {
		v[key] = joined
	}
}

// Del deletes the value associated with key.
func (v Values) Del(key string) {
	delete(v, key)
}

// Clone returns a copy of v that shares no storage with it.
// Clone of a nil Values is an empty, non-nil Values.
func (v Values) Clone() Values {
	c := make(Values, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

// Equal reports whether v and other hold exactly the same keys and values.
// A nil Values equals an empty one.
func (v Values) Equal(other Values) bool {
	if len(v) != len(other) {
		return false
	}
	for k, val := range v {
		o, ok := other[k]
		if !ok || o != val {
			return false
		}
	}
	return true
}

// Merge returns a new Values holding the keys of every source.
// Sources are applied in order, so a key in a later source overrides the
// same key in an earlier one. Nil sources are skipped and no source is
// modified.
func Merge(sources ...Values) Values {
	n := 0
	for _, s := range sources {
		n += len(s)
	}
	merged := make(Values, n)
	for _, s := range sources {
		for k, val := range s {
			merged[k] = val
		}
	}
	return merged
}

// Encode encodes the values into “URL encoded” form
// ("bar=baz&foo=quux") sorted by key.
// Encode is a slightly modified version of Values.Encode() from net/url.
// It encodes url.Values into URL encoded form, sorted by key, with the exception
// of the key "token", which will be appended to the end instead of being subject
// to regular sorting. This is done in accordance with MW API guidelines to
// ensure that an action will not be executed if the query string has been cut
// off for some reason.
func (v Values) Encode() string {
	if v == nil {
		return ""
	}
	var buf strings.Builder
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	token := false
	for _, k := range keys {
		if k == "token" {
			token = true
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(k))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(v[k]))
	}
	if token {
		if buf.Len() > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString("token=" + url.QueryEscape(v["token"]))
	}
	return buf.String()
}
