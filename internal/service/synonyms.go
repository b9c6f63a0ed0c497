package service

import (
	"sort"
	"strings"
)

// synonymGroups maps trigger phrases found in a query to the alternate
// phrasings OR-joined onto the keyword search. Exact-match lexical search
// misses paraphrases; this small hardcoded list covers the domain terms
// that showed up most in practice.
var synonymGroups = map[string][]string{
	"account number": {"account no", "acct no", "account #"},
	"invoice number": {"invoice no", "invoice #", "inv no"},
	"cheque":         {"check"},
	"check":          {"cheque"},
	"phone number":   {"phone no", "telephone number"},
	"purchase order": {"po number", "p.o."},
}

// ExpandQuery OR-joins known synonym phrases onto the raw query text for
// the full-text search path. The output feeds websearch_to_tsquery, which
// understands quoted phrases and OR.
func ExpandQuery(query string) string {
	lowered := strings.ToLower(query)

	triggers := make([]string, 0, len(synonymGroups))
	for trigger := range synonymGroups {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)

	var expansions []string
	for _, trigger := range triggers {
		if !containsPhrase(lowered, trigger) {
			continue
		}
		for _, syn := range synonymGroups[trigger] {
			if containsPhrase(lowered, syn) {
				continue
			}
			expansions = append(expansions, syn)
		}
	}
	if len(expansions) == 0 {
		return query
	}

	var sb strings.Builder
	sb.WriteString(query)
	for _, e := range expansions {
		sb.WriteString(` OR "`)
		sb.WriteString(e)
		sb.WriteString(`"`)
	}
	return sb.String()
}

// containsPhrase reports whether phrase occurs in q on word boundaries.
// Plain substring matching is wrong here: "account no" is a substring of
// "account number", which would suppress the expansion it triggers.
func containsPhrase(q, phrase string) bool {
	for i := 0; i+len(phrase) <= len(q); {
		j := strings.Index(q[i:], phrase)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(phrase)
		if (start == 0 || !isWordByte(q[start-1])) && (end == len(q) || !isWordByte(q[end])) {
			return true
		}
		i = start + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
