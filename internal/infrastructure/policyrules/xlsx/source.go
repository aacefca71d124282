// Package xlsx reads policy rules from an Excel workbook. The first row is a
// header; column A holds the applicable document types, B the policy name and
// D the rule text.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

const (
	colDocumentType = 0
	colName         = 1
	colRule         = 3
)

// Source implements ports.PolicyRuleSource. Parsed rules are reused until
// the workbook's modification time changes.
type Source struct {
	path  string
	sheet string

	mu      sync.Mutex
	modTime time.Time
	rules   []domain.PolicyRule
}

// New reads the given sheet, or the first sheet when sheet is empty.
func New(path, sheet string) *Source {
	return &Source{path: path, sheet: sheet}
}

func (s *Source) LoadPolicyRules(ctx context.Context) ([]domain.PolicyRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.path) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "load policy rules", errors.New("policy rules path is empty"))
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load policy rules", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules != nil && info.ModTime().Equal(s.modTime) {
		return append([]domain.PolicyRule(nil), s.rules...), nil
	}

	rules, err := s.read()
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load policy rules", err)
	}
	s.rules = rules
	s.modTime = info.ModTime()
	return append([]domain.PolicyRule(nil), rules...), nil
}

func (s *Source) read() ([]domain.PolicyRule, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return ParseRows(rows), nil
}

// ParseRows converts sheet rows to rules, skipping the header and any row
// without a name or rule text.
func ParseRows(rows [][]string) []domain.PolicyRule {
	rules := make([]domain.PolicyRule, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		rule := domain.PolicyRule{
			ApplicableDocumentType: cell(row, colDocumentType),
			Name:                   cell(row, colName),
			RuleText:               cell(row, colRule),
		}
		if rule.Name == "" || rule.RuleText == "" {
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
