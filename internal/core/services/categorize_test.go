package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildlens/buildlens/internal/core/domain"
)

func TestClassify_RuleTable(t *testing.T) {
	tests := []struct {
		name string
		ind  domain.Indicator
		want domain.Category
	}{
		{"compiler error", domain.Indicator{Text: "main.c:10: error: expected ';'"}, domain.CategoryCompileError},
		{"fatal error", domain.Indicator{Text: "fatal: unable to continue"}, domain.CategoryCompileError},
		{"make target", domain.Indicator{Text: "make: *** No rule to make target 'obj/x.o'"}, domain.CategoryCompileError},
		{"missing library", domain.Indicator{Text: "ld: cannot find -lssl"}, domain.CategoryLinkMissingDependency},
		{"undefined reference", domain.Indicator{Text: "undefined reference to `wifi_hal_init'"}, domain.CategoryLinkUndefinedReference},
		{"undefined symbol", domain.Indicator{Text: "ld.lld: undefined symbol: curl_easy_init"}, domain.CategoryLinkUndefinedReference},
		{"scanner hint only", domain.Indicator{Text: "static int x;", RuleHint: "license-match"}, domain.CategoryLicenseMatch},
		{"copyright text", domain.Indicator{Text: "Copyright (c) 1991 RSA Data Security"}, domain.CategoryLicenseMatch},
		{"unmatched", domain.Indicator{Text: "just a line"}, domain.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.ind))
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// A license hint on a line that also says "error" classifies as license:
	// specific rules precede the generic error bucket.
	ind := domain.Indicator{Text: "error: license header mismatch"}
	assert.Equal(t, domain.CategoryLicenseMatch, classify(ind))
}

func TestCategorize_AssignsWindowCategoriesAndCounts(t *testing.T) {
	windows := []domain.EvidenceWindow{
		{Start: 1, End: 5, Indicators: []domain.Indicator{
			{Line: 2, Text: "main.c:2: error: boom"},
			{Line: 4, Text: "undefined reference to `foo'"},
		}},
		{Start: 20, End: 24, Indicators: []domain.Indicator{
			{Line: 22, Text: "ld: cannot find -lcurl"},
		}},
	}

	got, counts := NewCategorizer().Categorize(windows)

	require.Len(t, got, 2)
	// Union of both indicator categories, priority order.
	assert.Equal(t, []domain.Category{
		domain.CategoryCompileError,
		domain.CategoryLinkUndefinedReference,
	}, got[0].Categories)
	assert.Equal(t, domain.CategoryCompileError, got[0].Primary())
	assert.Equal(t, domain.CategoryLinkMissingDependency, got[1].Primary())

	assert.Equal(t, map[string]int{
		"compile-error":           1,
		"link-missing-dependency": 1,
	}, counts)
}

func TestCategorize_EmptyWindowIsOther(t *testing.T) {
	got, counts := NewCategorizer().Categorize([]domain.EvidenceWindow{{Start: 1, End: 2}})
	assert.Equal(t, domain.CategoryOther, got[0].Primary())
	assert.Equal(t, 1, counts["other"])
}

func TestSummarizeCounts(t *testing.T) {
	counts := map[string]int{
		"compile-error": 2,
		"license-match": 1,
	}
	assert.Equal(t, "2 compile-error, 1 license-match", SummarizeCounts(counts))
	assert.Equal(t, "no findings", SummarizeCounts(nil))
}
