// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the scrubber applied to everything the access log records.
// Bodies are never logged. Query strings and headers are scrubbed of
// emails and phone numbers, patient-identifying query parameters are masked
// whole, and credential headers are replaced outright.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var (
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
	// Job and record ids are UUIDs; their digit runs must not read as phones.
	uuidRE = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
)

// RedactOptions extends the built-in masks.
type RedactOptions struct {
	// MaskHeaders are extra header names (case-insensitive) to mask whole.
	MaskHeaders []string
	// MaskParams are extra query parameter names to mask whole.
	MaskParams []string
}

// Redactor scrubs request metadata before it is logged.
type Redactor struct {
	headers map[string]struct{}
	params  map[string]struct{}
}

// NewRedactor builds a Redactor with the built-in masks plus opts.
func NewRedactor(opts RedactOptions) *Redactor {
	r := &Redactor{
		headers: map[string]struct{}{"authorization": {}, "cookie": {}, "set-cookie": {}},
		params: map[string]struct{}{
			"name": {}, "email": {}, "contact": {}, "address": {}, "patientinfo": {},
		},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.headers[h] = struct{}{}
		}
	}
	for _, p := range opts.MaskParams {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			r.params[p] = struct{}{}
		}
	}
	return r
}

// Text scrubs free text.
func (r *Redactor) Text(s string) string {
	if s == "" {
		return s
	}
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	ids := uuidRE.FindAllStringIndex(s, -1)
	if len(ids) == 0 {
		return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	}
	var b strings.Builder
	last := 0
	for _, m := range phoneRE.FindAllStringIndex(s, -1) {
		if overlapsAny(m, ids) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString("[REDACTED:phone]")
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func overlapsAny(m []int, spans [][]int) bool {
	for _, sp := range spans {
		if m[0] < sp[1] && m[1] > sp[0] {
			return true
		}
	}
	return false
}

// Query masks sensitive parameters and scrubs the rest. Unparseable
// queries are scrubbed as text.
func (r *Redactor) Query(raw string) string {
	if raw == "" {
		return raw
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return r.Text(raw)
	}
	for k, vv := range vals {
		if _, ok := r.params[strings.ToLower(k)]; ok {
			vals[k] = []string{redacted}
			continue
		}
		for i := range vv {
			vv[i] = r.Text(vv[i])
		}
	}
	return vals.Encode()
}

// Headers returns a scrubbed, flattened copy of h.
func (r *Redactor) Headers(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.headers[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = r.Text(strings.Join(vv, ", "))
	}
	return out
}
