// Package workspace holds helpers for workspace-backed questions.
package workspace

import (
	"regexp"
	"strings"
)

var (
	commonGlobSymbols = regexp.MustCompile(`[*?]|^!`)
	characterClass    = regexp.MustCompile(`\[[^\[]*]`)
	groupSymbols      = regexp.MustCompile(`(?:^|[^!*+?@])\([^(|]*\|[^|]*\)`)
	extglobSymbols    = regexp.MustCompile(`[!*+?@]\([^(]*\)`)
	braceSeparators   = regexp.MustCompile(`,|\.\.`)
)

// IsDynamicPattern reports whether a graded-file pattern needs glob matching,
// as opposed to naming one literal file.
func IsDynamicPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.Contains(pattern, `\`) {
		return true
	}
	if commonGlobSymbols.MatchString(pattern) ||
		characterClass.MatchString(pattern) ||
		groupSymbols.MatchString(pattern) ||
		extglobSymbols.MatchString(pattern) {
		return true
	}
	return hasBraceExpansion(pattern)
}

func hasBraceExpansion(pattern string) bool {
	open := strings.IndexByte(pattern, '{')
	if open == -1 {
		return false
	}
	end := strings.IndexByte(pattern[open+1:], '}')
	if end == -1 {
		return false
	}
	return braceSeparators.MatchString(pattern[open : open+1+end])
}

// RequiredFileNames returns the literal file names among graded patterns,
// preserving order. Never nil.
func RequiredFileNames(gradedFiles []string) []string {
	names := make([]string, 0, len(gradedFiles))
	for _, f := range gradedFiles {
		if !IsDynamicPattern(f) {
			names = append(names, f)
		}
	}
	return names
}
