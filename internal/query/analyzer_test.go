package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_Classification(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Type
	}{
		{"file search with extension", "find CSV files", TypeFileSearch},
		{"file search with data noun", "search for sales data", TypeFileSearch},
		{"file search get all", "get all parquet files", TypeFileSearch},
		{"file search locate", "locate json files", TypeFileSearch},
		{"package discovery about", "packages about genomics", TypePackageDiscovery},
		{"package discovery browse", "browse the catalog", TypePackageDiscovery},
		{"package singular", "package for imaging", TypePackageDiscovery},
		{"analytical largest", "largest files in the dataset", TypeAnalyticalSearch},
		{"analytical smallest", "smallest objects", TypeAnalyticalSearch},
		{"analytical count", "count of images", TypeAnalyticalSearch},
		{"generic default", "weather station readings", TypeGeneric},
		{"empty query", "", TypeGeneric},
		{"whitespace only", "   ", TypeGeneric},
	}

	a := NewAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Analyze(tt.query).QueryType)
		})
	}
}

func TestAnalyze_FirstMatchWins(t *testing.T) {
	a := NewAnalyzer()

	// File-search verbs plus file nouns take priority over the
	// analytical vocabulary appearing in the same query.
	got := a.Analyze("find the largest csv files")
	assert.Equal(t, TypeFileSearch, got.QueryType)
}

func TestAnalyze_Extensions(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"single extension", "find CSV files", []string{"csv"}},
		{"leading dot", "show me .parquet objects", []string{"parquet"}},
		{"deduplicated", "csv and more CSV", []string{"csv"}},
		{"multiple sorted", "json or csv exports", []string{"csv", "json"}},
		{"none", "recent experiments", nil},
	}

	a := NewAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Analyze(tt.query).FileExtensions)
		})
	}
}

func TestAnalyze_SizeFilters(t *testing.T) {
	a := NewAnalyzer()

	t.Run("larger than 50MB", func(t *testing.T) {
		got := a.Analyze("files larger than 50MB")
		assert.Equal(t, int64(52428800), got.SizeFilters.Min)
		assert.Zero(t, got.SizeFilters.Max)
	})

	t.Run("smaller than 1KB", func(t *testing.T) {
		got := a.Analyze("objects smaller than 1KB")
		assert.Equal(t, int64(1024), got.SizeFilters.Max)
		assert.Zero(t, got.SizeFilters.Min)
	})

	t.Run("both bounds", func(t *testing.T) {
		got := a.Analyze("larger than 1MB and smaller than 2GB")
		assert.Equal(t, int64(1048576), got.SizeFilters.Min)
		assert.Equal(t, int64(2147483648), got.SizeFilters.Max)
	})

	t.Run("fractional value", func(t *testing.T) {
		got := a.Analyze("bigger than 1.5 KB")
		assert.Equal(t, int64(1536), got.SizeFilters.Min)
	})

	t.Run("no size language", func(t *testing.T) {
		assert.True(t, a.Analyze("find csv files").SizeFilters.IsZero())
	})
}

func TestAnalyze_Keywords(t *testing.T) {
	a := NewAnalyzer()

	t.Run("drops stop words and short tokens", func(t *testing.T) {
		got := a.Analyze("find the genomics data in a bucket")
		assert.Equal(t, []string{"genomics", "data", "bucket"}, got.Keywords)
	})

	t.Run("lowercases and deduplicates", func(t *testing.T) {
		got := a.Analyze("Sales SALES sales report")
		assert.Equal(t, []string{"sales", "report"}, got.Keywords)
	})
}

func TestAnalyze_NeverFails(t *testing.T) {
	a := NewAnalyzer()

	for _, q := range []string{"", "   ", "!!!", "日本語クエリ", "a b c"} {
		got := a.Analyze(q)
		assert.NotEmpty(t, got.QueryType, "query %q", q)
	}
}
