package classify

import "github.com/opensource-finance/heron/internal/domain"

// BuiltinRules returns the default classification rules. Order matters:
// the balance-sheet rule is checked before the income-statement rule.
// Additional statement types can be added here (or loaded at runtime)
// without touching the reshape or load logic.
func BuiltinRules() []Rule {
	return []Rule{
		{
			Label: domain.StatementBalanceSheet,
			Expression: `text.contains("total assets") ` +
				`|| text.contains("total liabilities") ` +
				`|| text.contains("stockholders")`,
		},
		{
			Label: domain.StatementIncomeStatement,
			Expression: `text.contains("operating expenses") ` +
				`|| text.contains("total operating expenses") ` +
				`|| text.contains("income from operations") ` +
				`|| text.contains("net loss") ` +
				`|| text.contains("earnings per share") ` +
				`|| text.contains("comprehensive loss")`,
		},
	}
}
