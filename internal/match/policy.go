// Package match decides which catalog rows refer to the same release.
// It covers the tag-driven physical-duplicate flags and the scoring of
// live recordings against official releases.
package match

import (
	"github.com/sydlexius/milkcrate/internal/normalize"
)

// Policy maps raw source tags to physical-duplicate codes and breaks
// ties between codes with a configured priority order.
type Policy struct {
	codes    map[string]string
	priority map[string]int
	fallback int
}

// NewPolicy builds a policy from the configured tag mapping (raw tag to
// code, e.g. "myCDs" to "CD") and the code priority order, highest
// first. Tag lookup is insensitive to case, punctuation and diacritics.
func NewPolicy(tagCodes map[string]string, tagPriority []string) *Policy {
	codes := make(map[string]string, len(tagCodes))
	for tag, code := range tagCodes {
		codes[normalize.Text(tag)] = code
	}
	priority := make(map[string]int, len(tagPriority))
	for i, code := range tagPriority {
		priority[code] = i
	}
	return &Policy{codes: codes, priority: priority, fallback: len(tagPriority)}
}

// Code maps one raw source tag to its duplicate code. The second return
// is false for tags that carry no duplicate meaning.
func (p *Policy) Code(tag string) (string, bool) {
	code, ok := p.codes[normalize.Text(tag)]
	return code, ok
}

// Prefer returns the winning code between the one currently stored on
// an album and an incoming one. An empty current always loses, so the
// result does not depend on the order markers arrive in.
func (p *Policy) Prefer(current, incoming string) string {
	if current == "" {
		return incoming
	}
	if incoming == "" {
		return current
	}
	if p.rank(incoming) < p.rank(current) {
		return incoming
	}
	return current
}

// Resolve picks the winning duplicate code from a raw tag list. The
// second return is false when no tag is a recognized marker.
func (p *Policy) Resolve(tags []string) (string, bool) {
	winner := ""
	for _, tag := range tags {
		code, ok := p.Code(tag)
		if !ok {
			continue
		}
		winner = p.Prefer(winner, code)
	}
	return winner, winner != ""
}

func (p *Policy) rank(code string) int {
	if r, ok := p.priority[code]; ok {
		return r
	}
	return p.fallback
}
