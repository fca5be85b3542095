// Package query classifies free-form search queries and extracts
// structured hints (file extensions, size thresholds, keywords).
// Analysis is pure and deterministic: no I/O, never fails.
package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Type represents the classification category for a search query.
type Type string

const (
	// TypeFileSearch indicates the query targets individual file artifacts.
	TypeFileSearch Type = "file_search"

	// TypePackageDiscovery indicates the query targets package-level discovery.
	TypePackageDiscovery Type = "package_discovery"

	// TypeAnalyticalSearch indicates comparative or aggregate intent.
	TypeAnalyticalSearch Type = "analytical_search"

	// TypeGeneric is the default when no rule matches.
	TypeGeneric Type = "generic"
)

// SizeFilters holds byte thresholds extracted from the query.
// Zero means unset.
type SizeFilters struct {
	Min int64 `json:"size_min,omitempty"`
	Max int64 `json:"size_max,omitempty"`
}

// IsZero reports whether no size threshold was extracted.
func (s SizeFilters) IsZero() bool {
	return s.Min == 0 && s.Max == 0
}

// Analysis is the immutable result of analyzing one query.
// It is produced once per request and never mutated.
type Analysis struct {
	QueryType      Type        `json:"query_type"`
	FileExtensions []string    `json:"file_extensions"`
	SizeFilters    SizeFilters `json:"size_filters"`
	Keywords       []string    `json:"keywords"`
}

// Compiled patterns for classification and extraction.
// Compiled at package init for performance.
var (
	// File-search verbs combined with file-ish nouns
	fileVerbPattern = regexp.MustCompile(`(?i)\b(find|search\s+for|get\s+all|locate)\b`)
	fileNounPattern = regexp.MustCompile(`(?i)\b(files?|data)\b`)

	// Package-level discovery phrasing
	packagePattern = regexp.MustCompile(`(?i)\b(packages?|browse)\b|\babout\s+\w+`)

	// Comparative/aggregate language
	analyticalPattern = regexp.MustCompile(`(?i)\b(largest|smallest|count\s+of|larger\s+than|smaller\s+than|analyze)\b`)

	// Size thresholds: "larger than 50MB", "smaller than 1.5 GB"
	sizeMinPattern = regexp.MustCompile(`(?i)\b(?:larger|bigger|greater|more)\s+than\s+(\d+(?:\.\d+)?)\s*(kb|mb|gb)\b`)
	sizeMaxPattern = regexp.MustCompile(`(?i)\b(?:smaller|less)\s+than\s+(\d+(?:\.\d+)?)\s*(kb|mb|gb)\b`)

	// Tokenizer: split on non-alphanumeric boundaries
	tokenPattern = regexp.MustCompile(`[a-z0-9]+`)
)

// knownExtensions are file extension tokens recognized as whole words
// or with a leading dot.
var knownExtensions = map[string]struct{}{
	"csv": {}, "tsv": {}, "json": {}, "jsonl": {}, "parquet": {},
	"txt": {}, "md": {}, "pdf": {}, "xls": {}, "xlsx": {},
	"npy": {}, "npz": {}, "h5": {}, "hdf5": {}, "feather": {},
	"fastq": {}, "bam": {}, "sam": {}, "vcf": {}, "fasta": {},
	"png": {}, "jpg": {}, "jpeg": {}, "tif": {}, "tiff": {},
	"gz": {}, "zip": {}, "yaml": {}, "yml": {}, "xml": {},
}

// stopWords are dropped from keyword extraction: articles, prepositions,
// and the verbs used in classification.
var stopWords = map[string]struct{}{
	// Articles
	"a": {}, "an": {}, "the": {},
	// Prepositions and connectives
	"in": {}, "on": {}, "at": {}, "of": {}, "for": {}, "to": {},
	"with": {}, "from": {}, "by": {}, "about": {}, "into": {},
	"than": {}, "and": {}, "or": {},
	// Classification verbs
	"find": {}, "search": {}, "get": {}, "locate": {}, "browse": {},
	"analyze": {}, "show": {}, "list": {}, "all": {},
}

// sizeMultipliers maps size units to byte multipliers (1024-based).
var sizeMultipliers = map[string]int64{
	"kb": 1024,
	"mb": 1024 * 1024,
	"gb": 1024 * 1024 * 1024,
}

// Analyzer produces an Analysis for a raw query string.
// Implementations must be safe for concurrent use.
type Analyzer interface {
	Analyze(query string) Analysis
}

// RuleAnalyzer classifies queries with priority-ordered pattern rules.
// First matching rule wins; the default is TypeGeneric.
type RuleAnalyzer struct{}

// NewAnalyzer creates a new rule-based analyzer.
func NewAnalyzer() *RuleAnalyzer {
	return &RuleAnalyzer{}
}

// Analyze classifies the query and extracts structured hints.
// Empty or unparseable input yields TypeGeneric with no filters.
func (a *RuleAnalyzer) Analyze(query string) Analysis {
	query = strings.TrimSpace(query)
	if query == "" {
		return Analysis{QueryType: TypeGeneric}
	}

	extensions := extractExtensions(query)

	return Analysis{
		QueryType:      classify(query, len(extensions) > 0),
		FileExtensions: extensions,
		SizeFilters:    extractSizeFilters(query),
		Keywords:       extractKeywords(query),
	}
}

// classify applies the priority-ordered rules. First match wins.
func classify(query string, hasExtension bool) Type {
	// File search: file verb plus a file-ish noun or a known extension
	if fileVerbPattern.MatchString(query) &&
		(fileNounPattern.MatchString(query) || hasExtension) {
		return TypeFileSearch
	}

	// Package discovery: package nouns or "about <topic>" phrasing
	if packagePattern.MatchString(query) {
		return TypePackageDiscovery
	}

	// Analytical: comparative or aggregate language
	if analyticalPattern.MatchString(query) {
		return TypeAnalyticalSearch
	}

	return TypeGeneric
}

// extractExtensions scans for recognized extension tokens.
// Tokens are matched whole-word (the tokenizer also catches leading-dot
// forms like ".csv"), lower-cased, deduplicated, and sorted.
func extractExtensions(query string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(query), -1)

	seen := make(map[string]struct{})
	var exts []string
	for _, tok := range tokens {
		if _, known := knownExtensions[tok]; !known {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		exts = append(exts, tok)
	}

	sort.Strings(exts)
	return exts
}

// extractSizeFilters parses "larger than <N><unit>" / "smaller than <N><unit>"
// into byte thresholds using 1024-based multipliers.
func extractSizeFilters(query string) SizeFilters {
	var filters SizeFilters

	if m := sizeMinPattern.FindStringSubmatch(query); m != nil {
		filters.Min = toBytes(m[1], m[2])
	}
	if m := sizeMaxPattern.FindStringSubmatch(query); m != nil {
		filters.Max = toBytes(m[1], m[2])
	}

	return filters
}

// toBytes converts a numeric string and unit to bytes.
// The regex guarantees value parses as a float.
func toBytes(value, unit string) int64 {
	f, _ := strconv.ParseFloat(value, 64)
	return int64(f * float64(sizeMultipliers[strings.ToLower(unit)]))
}

// extractKeywords tokenizes on non-alphanumeric boundaries, lower-cases,
// drops stop words and tokens shorter than 2 characters, and deduplicates
// preserving first appearance.
func extractKeywords(query string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(query), -1)

	seen := make(map[string]struct{})
	var keywords []string
	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	return keywords
}

// Ensure RuleAnalyzer implements Analyzer.
var _ Analyzer = (*RuleAnalyzer)(nil)
