// Package classify provides the CEL-Go based statement classifier.
//
// Classification is an ordered rule list: each rule pairs a statement
// label with a CEL expression evaluated against the lowercased
// concatenation of a table's cell text. The first rule that matches
// wins; a table matching no rule is discarded (not an error).
package classify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Rule pairs a statement label with a CEL match expression.
// The expression sees a single string variable `text`.
type Rule struct {
	Label      string `json:"label"`
	Expression string `json:"expression"`
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    Rule
	Program cel.Program
}

// Classifier evaluates an ordered list of compiled rules.
type Classifier struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules []*CompiledRule
}

// NewClassifier creates a classifier with no rules loaded.
func NewClassifier() (*Classifier, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Classifier{env: env}, nil
}

// NewDefaultClassifier creates a classifier loaded with the builtin
// balance-sheet and income-statement rules.
func NewDefaultClassifier() (*Classifier, error) {
	c, err := NewClassifier()
	if err != nil {
		return nil, err
	}
	if err := c.LoadRules(BuiltinRules()); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadRules compiles and appends rules in order.
func (c *Classifier) LoadRules(rules []Rule) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range rules {
		compiled, err := c.compile(r)
		if err != nil {
			return err
		}
		c.rules = append(c.rules, compiled)
	}
	return nil
}

// RulesCount returns the number of loaded rules.
func (c *Classifier) RulesCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

// Classify evaluates the rules against a table grid. Returns the label
// of the first matching rule, or false when no rule matches.
func (c *Classifier) Classify(grid [][]string) (string, bool) {
	text := flatten(grid)

	c.mu.RLock()
	rules := c.rules
	c.mu.RUnlock()

	activation := map[string]any{"text": text}
	for _, r := range rules {
		out, _, err := r.Program.Eval(activation)
		if err != nil {
			continue
		}
		if out == types.True {
			return r.Rule.Label, true
		}
	}
	return "", false
}

func (c *Classifier) compile(r Rule) (*CompiledRule, error) {
	if r.Label == "" || r.Expression == "" {
		return nil, fmt.Errorf("rule requires label and expression")
	}

	ast, issues := c.env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %q: %w", r.Label, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %q must evaluate to bool, got %s", r.Label, ast.OutputType())
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %q: %w", r.Label, err)
	}

	return &CompiledRule{Rule: r, Program: prg}, nil
}

// flatten joins all cell text, lowercased, space-separated.
func flatten(grid [][]string) string {
	var sb strings.Builder
	for _, row := range grid {
		for _, cell := range row {
			if cell == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(cell)
		}
	}
	return strings.ToLower(sb.String())
}
