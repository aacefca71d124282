package xlsx

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "rules.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadPolicyRules(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Document Type", "Policy Name", "Category", "Rule"},
		{"Passport", "Passport Validity", "identity", " Passport must not be expired. "},
		{"Payslip, P60", "Income Match", "income", "Declared income must match payslip."},
		{"Passport", "", "identity", "Row without a name is skipped."},
		{"Payslip", "No Rule", "income"},
	})

	rules, err := New(path, "").LoadPolicyRules(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.PolicyRule{
		{Name: "Passport Validity", RuleText: "Passport must not be expired.", ApplicableDocumentType: "Passport"},
		{Name: "Income Match", RuleText: "Declared income must match payslip.", ApplicableDocumentType: "Payslip, P60"},
	}, rules)
}

func TestLoadPolicyRulesCachesUntilModified(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Document Type", "Policy Name", "Category", "Rule"},
		{"Passport", "Passport Validity", "identity", "Not expired."},
	})
	src := New(path, "")

	first, err := src.LoadPolicyRules(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := src.LoadPolicyRules(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Passport Validity", second[0].Name)
}

func TestLoadPolicyRulesErrors(t *testing.T) {
	cases := map[string]*Source{
		"empty path":    New("", ""),
		"missing file":  New(filepath.Join(t.TempDir(), "missing.xlsx"), ""),
		"missing sheet": New(writeWorkbook(t, [][]any{{"h"}}), "Policies"),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := src.LoadPolicyRules(context.Background())
			require.True(t, errors.Is(err, domain.ErrConfiguration), "got %v", err)
		})
	}
}

func TestParseRowsHeaderOnly(t *testing.T) {
	require.Empty(t, ParseRows([][]string{{"Document Type", "Policy Name", "Category", "Rule"}}))
	require.Empty(t, ParseRows(nil))
}
