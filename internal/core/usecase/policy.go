package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/llmjson"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
	"github.com/kirillkom/filing-classifier/internal/core/prompts"
	"github.com/kirillkom/filing-classifier/internal/core/taxonomy"
)

const unparsablePolicyComment = "policy response could not be parsed"

type PolicyOptions struct {
	CallTimeout time.Duration
	Logger      *slog.Logger
	Observer    ports.FilingObserver
}

// PolicyEvaluationBatcher evaluates every applicable policy of a filing in a
// single capability call.
type PolicyEvaluationBatcher struct {
	caller capabilityCaller
	logger *slog.Logger
}

func NewPolicyEvaluationBatcher(model ports.VisionModel, executor ports.CallExecutor, opts PolicyOptions) *PolicyEvaluationBatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyEvaluationBatcher{
		caller: capabilityCaller{
			model:    model,
			executor: executor,
			observer: observerOrNop(opts.Observer),
			timeout:  opts.CallTimeout,
		},
		logger: logger,
	}
}

// ApplicablePolicies selects the rules whose document-type column contains
// one of the given types. Rules keep table order and each policy name
// appears once.
func ApplicablePolicies(rules []domain.PolicyRule, documentTypes []string) []domain.PolicyRule {
	var out []domain.PolicyRule
	seen := make(map[string]struct{})
	for _, rule := range rules {
		if _, dup := seen[rule.Name]; dup {
			continue
		}
		if !ruleApplies(rule.ApplicableDocumentType, documentTypes) {
			continue
		}
		seen[rule.Name] = struct{}{}
		out = append(out, rule)
	}
	return out
}

func ruleApplies(pattern string, documentTypes []string) bool {
	lowered := strings.ToLower(pattern)
	normalized := taxonomy.NormalizeLabel(pattern)
	for _, docType := range documentTypes {
		t := strings.ToLower(strings.TrimSpace(docType))
		if t == "" || t == domain.UnknownLabel {
			continue
		}
		if strings.Contains(lowered, t) || strings.Contains(normalized, taxonomy.NormalizeLabel(t)) {
			return true
		}
	}
	return false
}

// Evaluate returns one result per policy, in input order. A capability failure
// is returned as an error since the batch cannot be partially retried. An
// unparsable answer or a missing policy name fails that policy.
func (b *PolicyEvaluationBatcher) Evaluate(
	ctx context.Context,
	policies []domain.PolicyRule,
	allPageImages []string,
	contextDocumentTypes []string,
) ([]domain.PolicyEvaluationResult, error) {
	if len(policies) == 0 {
		return []domain.PolicyEvaluationResult{}, nil
	}

	raw, err := b.caller.call(ctx, domain.VisionRequest{
		Operation:  domain.OperationPolicy,
		Prompt:     prompts.PolicyBatch(policies, contextDocumentTypes),
		ImagePaths: allPageImages,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate %d policies: %w", len(policies), err)
	}

	obj, err := llmjson.DecodeObject(raw)
	if err != nil {
		b.logger.Warn("policy_response_unparsable", "policies", len(policies), "error", err)
		return failAll(policies, unparsablePolicyComment), nil
	}

	verdicts := indexVerdicts(obj)
	out := make([]domain.PolicyEvaluationResult, 0, len(policies))
	for _, p := range policies {
		v, ok := verdicts[verdictKey(p.Name)]
		if !ok {
			b.logger.Warn("policy_missing_from_response", "policy", p.Name)
			out = append(out, domain.PolicyEvaluationResult{PolicyName: p.Name, Result: domain.CheckFail})
			continue
		}
		out = append(out, domain.PolicyEvaluationResult{PolicyName: p.Name, Result: v.result, Comment: v.comment})
	}
	return out, nil
}

type verdict struct {
	result  domain.CheckStatus
	comment string
}

// indexVerdicts accepts the documented {name: {result, comment}} shape, plain
// {name: "Pass"} values, and lists of {policy_name, result, comment} nested
// under any key.
func indexVerdicts(obj map[string]any) map[string]verdict {
	out := make(map[string]verdict, len(obj))
	for name, value := range obj {
		switch v := value.(type) {
		case map[string]any:
			if llmjson.PolicyVerdictSchema.Validate(v) != nil {
				out[verdictKey(name)] = verdict{result: domain.CheckFail, comment: "invalid verdict"}
				continue
			}
			out[verdictKey(name)] = toVerdict(v)
		case string:
			out[verdictKey(name)] = verdict{result: parseResult(v)}
		case []any:
			for _, item := range v {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				policyName, _ := entry["policy_name"].(string)
				if policyName == "" {
					policyName, _ = entry["name"].(string)
				}
				if policyName == "" || llmjson.PolicyVerdictSchema.Validate(entry) != nil {
					continue
				}
				out[verdictKey(policyName)] = toVerdict(entry)
			}
		}
	}
	return out
}

func toVerdict(v map[string]any) verdict {
	result, _ := v["result"].(string)
	comment, _ := v["comment"].(string)
	return verdict{result: parseResult(result), comment: strings.TrimSpace(comment)}
}

func parseResult(s string) domain.CheckStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass", "passed", "true", "yes", "compliant":
		return domain.CheckPass
	default:
		return domain.CheckFail
	}
}

func verdictKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func failAll(policies []domain.PolicyRule, comment string) []domain.PolicyEvaluationResult {
	out := make([]domain.PolicyEvaluationResult, 0, len(policies))
	for _, p := range policies {
		out = append(out, domain.PolicyEvaluationResult{PolicyName: p.Name, Result: domain.CheckFail, Comment: comment})
	}
	return out
}
