// Package extractor finds company ticker mentions in free text.
package extractor

import (
	"sort"
	"strings"
	"unicode"
)

// Index is an immutable keyword matcher mapping company names and ticker
// symbols to canonical tickers. The zero or nil Index matches nothing.
type Index struct {
	ac        *automaton
	companies int
	keywords  int
}

// Build creates an Index from a company name -> ticker mapping. Both the
// name and the ticker itself become case-insensitive keywords.
func Build(companies map[string]string) *Index {
	names := make([]string, 0, len(companies))
	for name := range companies {
		names = append(names, name)
	}
	sort.Strings(names)

	ix := &Index{ac: newAutomaton()}
	for _, name := range names {
		ticker := strings.ToUpper(strings.TrimSpace(companies[name]))
		if ticker == "" {
			continue
		}
		ix.companies++
		for _, kw := range []string{name, ticker} {
			runes := normalize(strings.TrimSpace(kw))
			if len(runes) == 0 {
				continue
			}
			ix.ac.add(runes, ticker)
			ix.keywords++
		}
	}
	ix.ac.build()
	return ix
}

func (ix *Index) Companies() int {
	if ix == nil {
		return 0
	}
	return ix.companies
}

// Extract returns the sorted, de-duplicated tickers mentioned in text.
// Matches must start and end on token boundaries; when candidates overlap
// the leftmost, then longest, wins.
func (ix *Index) Extract(text string) []string {
	if ix == nil || ix.ac == nil || text == "" {
		return []string{}
	}
	runes := normalize(text)

	type match struct{ start, end, pattern int }
	var matches []match
	ix.ac.scan(runes, func(start, end, pattern int) {
		if start > 0 && isWordRune(runes[start-1]) {
			return
		}
		if end < len(runes) && isWordRune(runes[end]) {
			return
		}
		matches = append(matches, match{start, end, pattern})
	})
	if len(matches) == 0 {
		return []string{}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].end > matches[j].end
	})

	seen := make(map[string]struct{})
	tickers := make([]string, 0, len(matches))
	next := 0
	for _, m := range matches {
		if m.start < next {
			continue
		}
		next = m.end
		ticker := ix.ac.values[m.pattern]
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// normalize lower-cases rune by rune so offsets stay aligned with the input.
func normalize(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
