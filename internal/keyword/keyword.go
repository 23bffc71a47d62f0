// Package keyword implements case-insensitive substring matching against
// operator-supplied keyword lists (spec §1 Non-goals, §4.3 steps 3/4/6).
// Keywords are plain text; no regular expressions are evaluated.
package keyword

import (
	"context"
	"strings"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

// Lists is one snapshot of the enabled keywords per type, loaded once per
// detection run so a single task doesn't re-query the store for every
// segment/track it scans.
type Lists struct {
	Meta     []string
	Subtitle []string
	Audio    []string
}

// Load reads every enabled keyword of each type from the store.
func Load(ctx context.Context, s *store.Store) (Lists, error) {
	var l Lists
	for _, t := range []store.KeywordType{store.KeywordMeta, store.KeywordSubtitle, store.KeywordAudio} {
		kws, err := s.ListKeywords(ctx, t)
		if err != nil {
			return Lists{}, err
		}
		var content []string
		for _, k := range kws {
			if !k.Enabled {
				continue
			}
			content = append(content, k.Content)
		}
		switch t {
		case store.KeywordMeta:
			l.Meta = content
		case store.KeywordSubtitle:
			l.Subtitle = content
		case store.KeywordAudio:
			l.Audio = content
		}
	}
	return l, nil
}

// MatchAny reports whether any keyword occurs in text as a case-insensitive
// substring, and returns the first keyword that hit (spec §4.3 steps 3/4/6).
func MatchAny(text string, keywords []string) (hit string, ok bool) {
	if text == "" || len(keywords) == 0 {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}
