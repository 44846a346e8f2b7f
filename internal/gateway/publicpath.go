// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package gateway implements the edge validation filter in front of the
backend services.

Requests on public paths pass through untouched; everything else must carry
a live access token. The filter is an explicit pipeline: extract the
credential, verify the signature, check revocation, decorate the request
with verified identity headers, forward upstream.
*/
package gateway

import "strings"

// # Public Path Matching

// Matcher tests request paths against ant-style glob patterns.
//
// Pattern syntax:
//   - '?' matches one character within a segment
//   - '*' matches any run of characters within a segment
//   - '**' as a whole segment matches zero or more segments
type Matcher struct {
	patterns [][]string
}

// NewMatcher compiles the given patterns. Patterns are normalized the same
// way request paths are, so "/health/" and "/health" behave identically.
func NewMatcher(patterns []string) *Matcher {
	matcher := &Matcher{patterns: make([][]string, 0, len(patterns))}
	for _, pattern := range patterns {
		normalized := normalizePath(pattern)
		if normalized == "" {
			continue
		}
		matcher.patterns = append(matcher.patterns, splitPath(normalized))
	}
	return matcher
}

// Matches reports whether the request path hits any public pattern.
func (matcher *Matcher) Matches(path string) bool {
	segments := splitPath(normalizePath(path))
	for _, pattern := range matcher.patterns {
		if matchSegments(pattern, segments) {
			return true
		}
	}
	return false
}

// normalizePath strips a fragment marker, ensures a leading slash, and
// trims a trailing one (the root path stays "/"). A '?' is left alone: it
// is the single-character wildcard in patterns, and request paths carry
// the query string separately.
func normalizePath(path string) string {
	if index := strings.IndexByte(path, '#'); index >= 0 {
		path = path[:index]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// matchSegments matches a pattern segment list against a path segment list.
func matchSegments(pattern, segments []string) bool {
	if len(pattern) == 0 {
		return len(segments) == 0
	}

	if pattern[0] == "**" {
		// '**' absorbs zero or more leading segments.
		for skip := 0; skip <= len(segments); skip++ {
			if matchSegments(pattern[1:], segments[skip:]) {
				return true
			}
		}
		return false
	}

	if len(segments) == 0 {
		return false
	}

	return matchSegment(pattern[0], segments[0]) && matchSegments(pattern[1:], segments[1:])
}

// matchSegment matches one pattern segment ('*' and '?') against one path
// segment, iteratively with backtracking on '*'.
func matchSegment(pattern, segment string) bool {
	patternIndex, segmentIndex := 0, 0
	starIndex, starMatch := -1, 0

	for segmentIndex < len(segment) {
		switch {
		case patternIndex < len(pattern) && (pattern[patternIndex] == '?' || pattern[patternIndex] == segment[segmentIndex]):
			patternIndex++
			segmentIndex++
		case patternIndex < len(pattern) && pattern[patternIndex] == '*':
			starIndex = patternIndex
			starMatch = segmentIndex
			patternIndex++
		case starIndex >= 0:
			// Backtrack: let the last '*' absorb one more character.
			patternIndex = starIndex + 1
			starMatch++
			segmentIndex = starMatch
		default:
			return false
		}
	}

	for patternIndex < len(pattern) && pattern[patternIndex] == '*' {
		patternIndex++
	}
	return patternIndex == len(pattern)
}
