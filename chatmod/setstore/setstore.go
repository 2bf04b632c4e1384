package setstore

import (
	"context"
	"encoding/json"
	"io"
	"os"
)

// Named sets of exact-match strings consulted by the detectors: dangerous
// file extensions, blocked link domains, copyright keywords. Matching is
// always exact; there is no scoring ambiguity at this layer.
type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

// Set names used by the built-in detectors.
const (
	SetDangerousExtensions = "dangerous-extensions"
	SetBlockedDomains      = "blocked-domains"
	SetCopyrightKeywords   = "copyright-keywords"
	SetSuspiciousKeywords  = "suspicious-keywords"
)

type MemSetStore struct {
	Sets map[string]map[string]bool
}

func NewMemSetStore() MemSetStore {
	return MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: currently returns false when entire set isn't found
		return false, nil
	}
	_, ok = set[val]
	return ok, nil
}

// LoadFromFileJSON merges sets from a JSON file of the form
// {"set-name": ["val1", "val2"]}, replacing any same-named built-in set.
func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return err
	}

	for name, l := range sets {
		m := make(map[string]bool, len(l))
		for _, val := range l {
			m[val] = true
		}
		s.Sets[name] = m
	}
	return nil
}

// NewBuiltinSetStore returns a store pre-populated with the default
// moderation sets. Deployments override these via LoadFromFileJSON.
func NewBuiltinSetStore() MemSetStore {
	s := NewMemSetStore()
	s.Sets[SetDangerousExtensions] = sliceToSet(defaultDangerousExtensions)
	s.Sets[SetBlockedDomains] = sliceToSet(defaultBlockedDomains)
	s.Sets[SetCopyrightKeywords] = sliceToSet(defaultCopyrightKeywords)
	s.Sets[SetSuspiciousKeywords] = sliceToSet(defaultSuspiciousKeywords)
	return s
}

func sliceToSet(l []string) map[string]bool {
	m := make(map[string]bool, len(l))
	for _, v := range l {
		m[v] = true
	}
	return m
}

var defaultDangerousExtensions = []string{
	".exe", ".bat", ".cmd", ".com", ".pif", ".scr", ".vbs", ".js",
	".jar", ".apk", ".deb", ".rpm", ".msi", ".dmg", ".pkg",
	".sh", ".ps1", ".psm1", ".psd1", ".ps1xml", ".psc1",
}

var defaultBlockedDomains = []string{
	"bit.ly", "tinyurl.com", "short.link", "cutt.ly",
	"malware.com", "phishing.net", "scam.org",
}

var defaultCopyrightKeywords = []string{
	"copyright", "copyrighted", "pirated", "cracked",
	"leaked", "rip", "webrip", "dvdrip", "bluray",
	"torrent", "magnet:", "full movie",
}

var defaultSuspiciousKeywords = []string{
	"crack", "keygen", "patch", "hack", "cheat", "trainer",
	"leaked", "dump", "breach", "password", "passwords",
}
