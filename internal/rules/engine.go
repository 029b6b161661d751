// Package rules provides the CEL-Go based flag rule engine. Analysts
// define boolean predicates over case variables; every matching rule
// contributes its flag text to the case's warning flags.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/scoring"
)

// Engine compiles and evaluates flag rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.FlagRule
	Program cel.Program
}

// RuleMatch is the outcome of one rule evaluation against one case.
type RuleMatch struct {
	RuleID    string
	RuleName  string
	Flag      string
	Matched   bool
	Err       error
	ProcessMs int64
}

// NewEngine creates a flag rule engine. The CEL environment exposes the
// normalized case factor set plus the full case map for ad hoc access.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("kase", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("merchant_category", cel.StringType),
		cel.Variable("dispute_reason", cel.StringType),
		cel.Variable("risk_score", cel.IntType),
		cel.Variable("credit_score", cel.IntType),
		cel.Variable("previous_disputes", cel.IntType),
		cel.Variable("disputes_won", cel.IntType),
		cel.Variable("dispute_rate", cel.DoubleType),
		cel.Variable("linked_customers_dispute_rate", cel.DoubleType),
		cel.Variable("total_linked_orders", cel.IntType),
		cel.Variable("same_card_orders", cel.IntType),
		cel.Variable("same_address_orders", cel.IntType),
		cel.Variable("same_ip_orders", cel.IntType),
		cel.Variable("same_device_orders", cel.IntType),
		cel.Variable("item_shipped", cel.StringType),
		cel.Variable("item_delivered", cel.StringType),
		cel.Variable("digital_goods", cel.StringType),
		cel.Variable("evidence_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.FlagRule) error {
	if rule == nil {
		return fmt.Errorf("flag rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.FlagRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads the enabled subset of rules.
func (e *Engine) LoadRules(flagRules []*domain.FlagRule) error {
	for _, rule := range flagRules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces the loaded rule set atomically. Used for
// hot-reloading after rule changes in the repository.
func (e *Engine) ReloadRules(flagRules []*domain.FlagRule) error {
	newRules := make(map[string]*CompiledRule)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rule := range flagRules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// EvaluateAll evaluates every loaded rule against a case in parallel
// and returns one match record per rule.
func (e *Engine) EvaluateAll(ctx context.Context, c *domain.DisputeCase) ([]RuleMatch, error) {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		loaded = append(loaded, rule)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 {
		return nil, nil
	}

	activation := caseActivation(c)

	results := make([]RuleMatch, len(loaded))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range loaded {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	// Deterministic output order regardless of map iteration.
	sort.Slice(results, func(i, j int) bool { return results[i].RuleID < results[j].RuleID })

	return results, nil
}

// Flags evaluates all rules and returns only the matched flag texts,
// deduplicated, in rule-ID order.
func (e *Engine) Flags(ctx context.Context, c *domain.DisputeCase) ([]string, error) {
	matches, err := e.EvaluateAll(ctx, c)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var flags []string
	for _, m := range matches {
		if m.Matched && m.Err == nil && !seen[m.Flag] {
			seen[m.Flag] = true
			flags = append(flags, m.Flag)
		}
	}
	return flags, nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule definitions.
func (e *Engine) GetLoadedRules() []*domain.FlagRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	loaded := make([]*domain.FlagRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		loaded = append(loaded, compiled.Rule)
	}
	return loaded
}

// Close clears the loaded rule set.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.FlagRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}

func evaluateRule(rule *CompiledRule, activation map[string]any) RuleMatch {
	start := time.Now()

	match := RuleMatch{
		RuleID:   rule.Rule.ID,
		RuleName: rule.Rule.Name,
		Flag:     rule.Rule.Flag,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		match.Err = fmt.Errorf("evaluation error: %w", err)
		match.ProcessMs = time.Since(start).Milliseconds()
		return match
	}

	match.Matched = toBool(out)
	match.ProcessMs = time.Since(start).Milliseconds()
	return match
}

func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}

// caseActivation flattens a case into the CEL variable set. The same
// normalization used for scoring applies, so rule authors see floored
// counts and "N/A" defaults rather than raw input.
func caseActivation(c *domain.DisputeCase) map[string]any {
	f := scoring.Extract(c)

	return map[string]any{
		"kase": map[string]any{
			"id":          c.ID,
			"case_number": c.CaseNumber,
			"status":      c.Status,
			"reason_code": c.ReasonCode,
		},
		"amount":                        f.Amount,
		"currency":                      c.Transaction.Currency,
		"category":                      string(f.Category),
		"merchant_category":             f.MerchantCategory,
		"dispute_reason":                f.DisputeReason,
		"risk_score":                    c.RiskScore,
		"credit_score":                  f.CreditScore,
		"previous_disputes":             f.PreviousDisputes,
		"disputes_won":                  f.DisputesWon,
		"dispute_rate":                  f.DisputeRate,
		"linked_customers_dispute_rate": f.LinkedCustomersDisputeRate,
		"total_linked_orders":           f.TotalLinkedOrders,
		"same_card_orders":              f.SameCardOrders,
		"same_address_orders":           f.SameAddressOrders,
		"same_ip_orders":                f.SameIPOrders,
		"same_device_orders":            f.SameDeviceOrders,
		"item_shipped":                  f.ItemShipped,
		"item_delivered":                f.ItemDelivered,
		"digital_goods":                 f.DigitalGoods,
		"evidence_count":                f.EvidenceCount,
	}
}
