package helpers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spaolacci/murmur3"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// returns a fast, compact hash of a string
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

func ExtractTextURLs(raw string) []string {
	return urlRegex.FindAllString(raw, -1)
}

// ExtractDomain returns the lower-cased host portion of a URL-ish string,
// with any leading "www." stripped. Returns empty string if no host can be
// identified.
func ExtractDomain(raw string) string {
	s := strings.ToLower(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	if !strings.Contains(s, ".") {
		return ""
	}
	return s
}

// FileExt returns the lower-cased extension of a filename including the dot,
// eg ".exe". Empty string if the name has no extension.
func FileExt(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i:])
}

var ipLiteralRegex = regexp.MustCompile(`^(?:https?://)?(?:\d{1,3}\.){3}\d{1,3}(?:[:/]|$)`)

// IsIPLiteralURL reports whether the URL addresses a raw IPv4 address instead
// of a domain name.
func IsIPLiteralURL(raw string) bool {
	return ipLiteralRegex.MatchString(strings.ToLower(raw))
}

// CapsRatio returns the fraction of letters in the text which are upper-case.
// Returns 0 for texts with no letters.
func CapsRatio(text string) float64 {
	var upper, letters int
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// RepetitionRatio measures how repetitive a text is: 1 - unique/total words.
// Texts with five or fewer words score 0.
func RepetitionRatio(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) <= 5 {
		return 0
	}
	uniq := make(map[string]bool, len(words))
	for _, w := range words {
		uniq[w] = true
	}
	return 1 - float64(len(uniq))/float64(len(words))
}
