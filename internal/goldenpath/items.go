package goldenpath

import (
	"sort"
	"strings"
)

// attributeItems mines a path per top-purchased item. Each item's candidate
// pool is the successful sessions that purchased it; mining walks a
// relaxation ladder so that even a single observed purchase yields a path
// when fallback is enabled.
func attributeItems(sessions []session, successSet map[string]bool, opts Options) []ItemPaths {
	if opts.ByPurchasedTop == 0 {
		return []ItemPaths{}
	}

	// Rank items by distinct purchasing sessions, name ascending on ties
	bySessions := make(map[string]int)
	for _, sess := range sessions {
		seen := make(map[string]bool, len(sess.purchased))
		for _, item := range sess.purchased {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			bySessions[item]++
		}
	}
	if len(bySessions) == 0 {
		return []ItemPaths{}
	}

	names := make([]string, 0, len(bySessions))
	for name := range bySessions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if bySessions[names[i]] != bySessions[names[j]] {
			return bySessions[names[i]] > bySessions[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > opts.ByPurchasedTop {
		names = names[:opts.ByPurchasedTop]
	}

	tokens := opts.MenuTokenByItem
	if tokens == nil {
		tokens = DeriveMenuTokens(sessions)
	}

	out := make([]ItemPaths, 0, len(names))
	for _, name := range names {
		itemSessions := make([]session, 0, bySessions[name])
		for _, sess := range sessions {
			if containsItem(sess.purchased, name) {
				itemSessions = append(itemSessions, sess)
			}
		}

		top := mineItem(itemSessions, successSet, tokens[name], opts)
		out = append(out, ItemPaths{
			Item:          name,
			TotalSessions: len(itemSessions),
			Top:           top,
		})
	}
	return out
}

// mineItem walks the relaxation ladder for one item: strict first, then
// lower support, then no detail-page requirement, then the loosest pass.
// The first level yielding anything wins.
func mineItem(itemSessions []session, successSet map[string]bool, token string, opts Options) []Item {
	base := filter{
		minLen:      opts.MinNgramLength,
		minDistinct: opts.MinDistinctPages,
		requireAny:  opts.RequireContainsAny,
		disallow:    opts.DisallowOnlyFrom,
	}
	if opts.RequireMenuDetailInItemPath && token != "" {
		base.requireToken = token
	}

	relaxedSupport := opts.MinSupportByItem - 1
	if relaxedSupport < 1 {
		relaxedSupport = 1
	}

	type level struct {
		f          filter
		minSupport int
	}
	levels := []level{
		{base, opts.MinSupportByItem},
	}
	if opts.EnableRelaxFallback {
		noToken := base
		noToken.requireToken = ""
		loose := noToken
		loose.minLen = 2
		levels = append(levels,
			level{base, relaxedSupport},
			level{noToken, relaxedSupport},
			level{loose, 1},
		)
	}

	successCount := 0
	for _, s := range itemSessions {
		if s.ok {
			successCount++
		}
	}

	for _, lv := range levels {
		counts := mine(itemSessions, successSet, opts.NgramMax, lv.f)
		items := rank(counts, lv.minSupport, successCount, opts)
		if len(items) == 0 {
			continue
		}
		limit := opts.TopK
		if opts.OnePathPerItem {
			limit = 1
		}
		if len(items) > limit {
			items = items[:limit]
		}
		return items
	}
	return []Item{}
}

// DeriveMenuTokens guesses each item's detail-page step from sessions that
// purchased exactly that one item: the detail step such a session visited
// is very likely the item's own page. Only unambiguous guesses are kept.
func DeriveMenuTokens(sessions []session) map[string]string {
	votes := make(map[string]map[string]int)
	for _, sess := range sessions {
		if len(sess.purchased) != 1 {
			continue
		}
		item := sess.purchased[0]
		for _, step := range sess.seq {
			if !strings.Contains(step, "/menu/") {
				continue
			}
			if votes[item] == nil {
				votes[item] = make(map[string]int)
			}
			votes[item][step]++
		}
	}

	tokens := make(map[string]string, len(votes))
	for item, steps := range votes {
		best, bestCount, tied := "", 0, false
		for step, n := range steps {
			switch {
			case n > bestCount:
				best, bestCount, tied = step, n, false
			case n == bestCount:
				tied = true
			}
		}
		if !tied && best != "" {
			tokens[item] = best
		}
	}
	return tokens
}

func containsItem(items []string, name string) bool {
	for _, it := range items {
		if it == name {
			return true
		}
	}
	return false
}
