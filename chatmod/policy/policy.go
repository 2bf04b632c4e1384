package policy

import (
	"fmt"

	"github.com/warden-mod/warden/chatmod/helpers"
)

// Per-group moderation configuration. One policy exists per group; it is
// created with defaults on the first event from a new group and mutated only
// through the admin surface. Policies are never deleted while the group has
// state, only disabled.
type Policy struct {
	Enabled bool `json:"enabled"`

	// Probability threshold for the content detector, in [0,1].
	ContentThreshold float64 `json:"content_threshold"`
	// Message count within the tracker lookback at which the flood detector fires.
	SpamThreshold int `json:"spam_threshold"`
	// Group-wide join count within the raid window at which raid handling kicks in.
	RaidThreshold int `json:"raid_threshold"`

	AutoDeleteExecutables bool `json:"auto_delete_executables"`
	BlockSuspiciousLinks  bool `json:"block_suspicious_links"`
	CopyrightDetection    bool `json:"copyright_detection"`

	// When true, an event on which every applicable detector abstained is
	// restricted instead of allowed. Default is fail-open.
	FailClosed bool `json:"fail_closed,omitempty"`

	// AllowList short-circuits to allow; BlockList short-circuits to ban.
	// The two sets must be disjoint.
	AllowList []string `json:"allow_list,omitempty"`
	BlockList []string `json:"block_list,omitempty"`
}

// Process-wide defaults, matching the documented configuration examples.
// Per-group values override these via the admin surface.
func Default() *Policy {
	return &Policy{
		Enabled:               true,
		ContentThreshold:      0.6,
		SpamThreshold:         5,
		RaidThreshold:         10,
		AutoDeleteExecutables: true,
		BlockSuspiciousLinks:  true,
		CopyrightDetection:    true,
	}
}

func (p *Policy) Validate() error {
	if p.ContentThreshold < 0 || p.ContentThreshold > 1 {
		return fmt.Errorf("content threshold out of range: %f", p.ContentThreshold)
	}
	if p.SpamThreshold < 1 {
		return fmt.Errorf("spam threshold must be positive: %d", p.SpamThreshold)
	}
	if p.RaidThreshold < 1 {
		return fmt.Errorf("raid threshold must be positive: %d", p.RaidThreshold)
	}
	for _, u := range p.AllowList {
		if p.InBlockList(u) {
			return fmt.Errorf("user in both allow and block list: %s", u)
		}
	}
	return nil
}

func (p *Policy) InAllowList(user string) bool {
	return contains(p.AllowList, user)
}

func (p *Policy) InBlockList(user string) bool {
	return contains(p.BlockList, user)
}

// AddAllow inserts the user into the allow list, removing any block list entry
// so the two sets stay disjoint.
func (p *Policy) AddAllow(user string) {
	p.BlockList = remove(p.BlockList, user)
	if !contains(p.AllowList, user) {
		p.AllowList = append(p.AllowList, user)
	}
}

// AddBlock inserts the user into the block list, removing any allow list entry.
func (p *Policy) AddBlock(user string) {
	p.AllowList = remove(p.AllowList, user)
	if !contains(p.BlockList, user) {
		p.BlockList = append(p.BlockList, user)
	}
}

// Normalize dedupes the allow and block lists. AddAllow/AddBlock never insert
// duplicates, but policies written by external tooling can carry them.
func (p *Policy) Normalize() {
	p.AllowList = helpers.DedupeStrings(p.AllowList)
	p.BlockList = helpers.DedupeStrings(p.BlockList)
}

func (p *Policy) RemoveAllow(user string) {
	p.AllowList = remove(p.AllowList, user)
}

func (p *Policy) RemoveBlock(user string) {
	p.BlockList = remove(p.BlockList, user)
}

func contains(l []string, v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

func remove(l []string, v string) []string {
	out := l[:0]
	for _, s := range l {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
