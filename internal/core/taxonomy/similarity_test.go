package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRatioMatchesSequenceMatcher(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"payslip", "payslp", 12.0 / 13.0},
		{"abcd", "bcde", 0.75},
		{"passport", "passport", 1.0},
		{"", "", 1.0},
		{"abc", "", 0.0},
		{"income_document", "income", 12.0 / 21.0},
		{"führerschein", "fuhrerschein", 22.0 / 24.0},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.want, Ratio(tc.a, tc.b), 1e-9, "%q vs %q", tc.a, tc.b)
	}
}

func TestCloseMatchRespectsCutoff(t *testing.T) {
	candidates := []string{"passport", "payslip", "p60"}

	got, _, ok := CloseMatch("pasport", candidates, DefaultCutoff)
	require.True(t, ok)
	require.Equal(t, "passport", got)

	_, _, ok = CloseMatch("xyz123", candidates, DefaultCutoff)
	require.False(t, ok)
}

func TestCloseMatchTieGoesToGreaterCandidate(t *testing.T) {
	got, score, ok := CloseMatch("ab", []string{"ab", "ab"}, 0.5)
	require.True(t, ok)
	require.Equal(t, "ab", got)
	require.InDelta(t, 1.0, score, 1e-9)

	got, _, ok = CloseMatch("abx", []string{"aby", "abz"}, 0.5)
	require.True(t, ok)
	require.Equal(t, "abz", got)
}
