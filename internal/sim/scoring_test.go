package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corretto/heapothesys-go/internal/dictionary"
	"github.com/corretto/heapothesys-go/internal/model"
)

func TestLongestCommonSubstringFindsSharedRun(t *testing.T) {
	require.Equal(t, 4, longestCommonSubstring("abcdefgh", "xxabcdzz"))
	require.Equal(t, 0, longestCommonSubstring("abc", "xyz"))
	require.Equal(t, 0, longestCommonSubstring("", "abc"))
}

func TestScoreReviewRewardsEarlierCriteriaMoreThanLater(t *testing.T) {
	review := "red leather handbag with brass buckle"

	earlyMatch := scoreReview(review, []string{"leather", "zzzzz"})
	lateMatch := scoreReview(review, []string{"zzzzz", "leather"})

	require.Greater(t, earlyMatch, lateMatch)
}

func TestScoreReviewZeroWhenNoCriteriaMatch(t *testing.T) {
	require.Equal(t, 0.0, scoreReview("red leather handbag", []string{"qqqqq", "zzzzz"}))
}

func TestDistinctNonSubstringKeywordsAreMutuallyExclusive(t *testing.T) {
	dict := dictionary.NewSliceDictionary([]string{
		"apple", "boat", "car", "desk", "egg", "fox", "glass", "hat",
		"ink", "jar", "kite", "lamp", "moon", "nest", "oak", "pear",
	})
	rng := rand.New(rand.NewSource(7))

	words := distinctNonSubstringKeywords(rng, dict, 4)
	require.Len(t, words, 4)
	for i, a := range words {
		for j, b := range words {
			if i == j {
				continue
			}
			require.False(t, containsSubstring(a, b), "%q should not contain %q", a, b)
		}
	}
}

func TestDedupeProductsRemovesDuplicateIDs(t *testing.T) {
	p1 := model.NewProduct(1, "red hat", "")
	p2 := model.NewProduct(1, "red hat", "")
	p3 := model.NewProduct(2, "blue shoe", "")

	out := dedupeProducts([]*model.Product{p1, p2, p3})
	require.Len(t, out, 2)
}
