// Package search maintains a full-text index over delivered messages and
// answers bounded queries against it.
package search

import (
	"strconv"
	"strings"
)

// Query represents the structured parameters of a message search.
// It decouples the raw client input from the index engine requirements.
type Query struct {
	RawInput     string // the original query string from the client
	Terms        string // the actual text to match against bodies
	Conversation string // restrict to one conversation key
	Sender       string // restrict to one author
	Language     string // restrict to one detected language tag
	Limit        int    // maximum number of hits
}

const defaultLimit = 10

// ParseQuery extracts command-line style arguments from a raw string.
// Example: invoice --room general --from alice --limit 20
func ParseQuery(input string) Query {
	query := Query{
		RawInput: input,
		Limit:    defaultLimit,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			val := parts[i+1]
			switch strings.TrimPrefix(part, "--") {
			case "room", "conversation":
				query.Conversation = val
			case "from":
				query.Sender = val
			case "lang":
				query.Language = val
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					query.Limit = n
				}
			}
			i++ // skip the consumed value
			continue
		}

		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
