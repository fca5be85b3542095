package engine

import (
	"fmt"
	"strings"
)

// Suggestion types, used as group keys in the response and as the
// values of the caller's type filter.
const (
	SuggestionCompletion = "completions"
	SuggestionFileType   = "file_types"
	SuggestionDomain     = "domain"
	SuggestionContext    = "context"
)

// Static lookup tables. Suggestions are generated locally from these
// four tables; no backend calls, no network I/O.
var (
	commonCompletions = []string{
		"find csv files",
		"find json files larger than 10MB",
		"packages about genomics",
		"packages updated this month",
		"largest files in the catalog",
		"count of parquet files",
		"browse recent packages",
		"search for readme files",
	}

	fileTypeVocabulary = []string{
		"csv files",
		"json files",
		"parquet files",
		"text files",
		"image files",
		"compressed archives",
	}

	domainVocabulary = []string{
		"genomics",
		"imaging",
		"sales data",
		"model training runs",
		"experiment results",
		"reference datasets",
	}

	packageContextTemplates = []string{
		"browse %s",
		"files in %s",
		"files in %s larger than 100MB",
		"summary of %s",
	}

	bucketContextTemplates = []string{
		"find csv files in %s",
		"largest files in %s",
		"packages in %s",
		"recent changes in %s",
	}
)

// Suggestions is the grouped suggestion response.
type Suggestions struct {
	Suggestions map[string][]string `json:"suggestions"`
	Total       int                 `json:"total_suggestions"`
}

// SuggestionEngine produces query completions from static vocabulary
// tables. Generation is local and deterministic.
type SuggestionEngine struct{}

// NewSuggestionEngine creates a suggestion engine.
func NewSuggestionEngine() *SuggestionEngine {
	return &SuggestionEngine{}
}

// Suggest returns completions for a partial query, grouped by type.
// context, when set, keys the context-aware table: a value containing a
// slash is treated as a package path, anything else as a bucket name.
// types filters the groups produced; empty means all. limit caps each
// group.
func (s *SuggestionEngine) Suggest(partial, context string, types []string, limit int) Suggestions {
	if limit <= 0 {
		limit = 5
	}
	wanted := wantedTypes(types)
	partial = strings.ToLower(strings.TrimSpace(partial))

	groups := make(map[string][]string)

	if wanted[SuggestionCompletion] {
		if matches := matchTable(commonCompletions, partial, limit); len(matches) > 0 {
			groups[SuggestionCompletion] = matches
		}
	}
	if wanted[SuggestionFileType] {
		if matches := matchTable(fileTypeVocabulary, partial, limit); len(matches) > 0 {
			groups[SuggestionFileType] = matches
		}
	}
	if wanted[SuggestionDomain] {
		if matches := matchTable(domainVocabulary, partial, limit); len(matches) > 0 {
			groups[SuggestionDomain] = matches
		}
	}
	if wanted[SuggestionContext] && context != "" {
		if matches := contextSuggestions(context, limit); len(matches) > 0 {
			groups[SuggestionContext] = matches
		}
	}

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	return Suggestions{Suggestions: groups, Total: total}
}

func wantedTypes(types []string) map[string]bool {
	wanted := map[string]bool{
		SuggestionCompletion: true,
		SuggestionFileType:   true,
		SuggestionDomain:     true,
		SuggestionContext:    true,
	}
	if len(types) == 0 {
		return wanted
	}
	for k := range wanted {
		wanted[k] = false
	}
	for _, t := range types {
		wanted[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return wanted
}

// matchTable returns table entries containing the partial query. An
// empty partial matches everything, capped at limit.
func matchTable(table []string, partial string, limit int) []string {
	var matches []string
	for _, entry := range table {
		if partial == "" || strings.Contains(strings.ToLower(entry), partial) {
			matches = append(matches, entry)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches
}

// contextSuggestions fills the template table keyed by context shape.
// A slash marks a package path (namespace/name); otherwise the context
// is treated as a bucket name.
func contextSuggestions(context string, limit int) []string {
	templates := bucketContextTemplates
	if strings.Contains(context, "/") {
		templates = packageContextTemplates
	}

	var out []string
	for _, tmpl := range templates {
		out = append(out, fmt.Sprintf(tmpl, context))
		if len(out) >= limit {
			break
		}
	}
	return out
}
