// Package urn implements the colon-delimited, percent-encoded tagged-record
// grammar used to carry structured events through a remote container's
// stdout stream (see mini:run:... in the call-state grammar).
package urn

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidURN reports that a string failed to parse as a URN, or that a
// pattern failed to match against a URN.
var ErrInvalidURN = errors.New("urn: invalid format")

// Prefix is the literal leading part of every Experiment URN.
const Prefix = "mini"

// Encode percent-encodes each part so the ':' separator cannot appear
// literally inside a part, then joins the parts with ':'.
func Encode(parts ...string) string {
	encoded := make([]string, len(parts))
	for i, p := range parts {
		encoded[i] = url.QueryEscape(p)
	}
	return strings.Join(encoded, ":")
}

// Decode splits a URN on ':' and percent-decodes each part. Empty trailing
// parts are preserved. Returns ErrInvalidURN if any part fails to decode.
func Decode(s string) ([]string, error) {
	raw := strings.Split(s, ":")
	parts := make([]string, len(raw))
	for i, p := range raw {
		decoded, err := url.QueryUnescape(p)
		if err != nil {
			return nil, errors.Join(ErrInvalidURN, err)
		}
		parts[i] = decoded
	}
	return parts, nil
}

// Matches reports whether urn satisfies pattern. The pattern walks parts in
// lock-step with the decoded URN: a "*" part matches any single, non-empty
// URN part; once the pattern is exhausted, any remaining URN parts match
// (patterns shorter than the URN match any prefix).
func Matches(urn, pattern string) bool {
	parts, err := Decode(urn)
	if err != nil {
		return false
	}
	patParts := strings.Split(pattern, ":")
	for i, spec := range patParts {
		if i >= len(parts) {
			return false
		}
		if spec == "*" {
			if parts[i] == "" {
				return false
			}
			continue
		}
		decodedSpec, err := url.QueryUnescape(spec)
		if err != nil {
			return false
		}
		if parts[i] != decodedSpec {
			return false
		}
	}
	return true
}

// IsExperimentURN reports whether s begins with the literal "mini" followed
// by at least one more part.
func IsExperimentURN(s string) bool {
	parts, err := Decode(s)
	if err != nil {
		return false
	}
	return len(parts) >= 2 && parts[0] == Prefix
}
