// Package filter decides whether a message's text is eligible for
// speech synthesis. Raw platform markup (mention/emoji tokens), code
// blocks and bare URLs read terribly as audio, so they are rejected
// before the synthesizer ever sees them.
package filter

import "regexp"

var rejectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(http|https|ftp|telnet|news|mms)://[^"'\s()]+`),
	regexp.MustCompile("(?s)```.+```"),
	regexp.MustCompile(`<@!?[0-9]+>`),
	regexp.MustCompile(`<#[0-9]+>`),
	regexp.MustCompile(`<a?:[^:\s]+:[0-9]+>`),
}

// Eligible reports whether text may be synthesized. Pure function, safe
// for unsynchronized concurrent use.
func Eligible(text string) bool {
	for _, p := range rejectPatterns {
		if p.MatchString(text) {
			return false
		}
	}
	return true
}
