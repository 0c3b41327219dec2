package reconciliation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/efp"
)

// ComparisonOp is the comparator of a rule formula
type ComparisonOp string

const (
	OpEqual        ComparisonOp = "="
	OpLess         ComparisonOp = "<"
	OpGreater      ComparisonOp = ">"
	OpLessEqual    ComparisonOp = "<="
	OpGreaterEqual ComparisonOp = ">="
)

// FieldResolver resolves a named field to its value. The bool reports whether
// the field is present in the record set.
type FieldResolver func(name string) (decimal.Decimal, bool)

// ErrFieldNotFound marks a formula referencing a field absent from the record
// set. Rules hitting it are SKIPPED, not failed.
var ErrFieldNotFound = errors.New("field not found")

// FormulaResult is the evaluated outcome of one rule formula.
//
// For equality formulas the imbalance convention applies: ExpectedValue is
// zero and ActualValue is the left side minus the right side, so a holding
// relationship reports expected 0.00, actual 0.00. Inequality formulas report
// the two sides directly.
type FormulaResult struct {
	Op            ComparisonOp
	LeftValue     decimal.Decimal
	RightValue    decimal.Decimal
	ExpectedValue decimal.Decimal
	ActualValue   decimal.Decimal
	Difference    decimal.Decimal
}

// Holds reports whether the comparison is satisfied within the tolerance.
// Tolerance only loosens equality; inequalities are strict.
func (r FormulaResult) Holds(tolerance decimal.Decimal) bool {
	switch r.Op {
	case OpEqual:
		return r.Difference.Abs().LessThanOrEqual(tolerance)
	case OpLess:
		return r.LeftValue.LessThan(r.RightValue)
	case OpGreater:
		return r.LeftValue.GreaterThan(r.RightValue)
	case OpLessEqual:
		return r.LeftValue.LessThanOrEqual(r.RightValue)
	case OpGreaterEqual:
		return r.LeftValue.GreaterThanOrEqual(r.RightValue)
	}
	return false
}

// EvaluateFormula parses and evaluates a rule formula of the fixed grammar
//
//	<expr> <cmp> <expr>
//
// where <cmp> is one of = < > <= >= and <expr> is arithmetic (+ - * /,
// parentheses) over numeric literals and snake_case field names.
func EvaluateFormula(formula string, resolve FieldResolver) (*FormulaResult, error) {
	left, op, right, err := splitComparison(formula)
	if err != nil {
		return nil, err
	}
	leftValue, err := evaluateExpression(left, resolve)
	if err != nil {
		return nil, err
	}
	rightValue, err := evaluateExpression(right, resolve)
	if err != nil {
		return nil, err
	}

	result := &FormulaResult{
		Op:         op,
		LeftValue:  leftValue,
		RightValue: rightValue,
	}
	if op == OpEqual {
		result.ExpectedValue = decimal.Zero
		result.ActualValue = leftValue.Sub(rightValue)
	} else {
		result.ExpectedValue = rightValue
		result.ActualValue = leftValue
	}
	result.Difference = result.ActualValue.Sub(result.ExpectedValue)
	return result, nil
}

// splitComparison splits a formula at its top-level comparator
func splitComparison(formula string) (string, ComparisonOp, string, error) {
	depth := 0
	for i := 0; i < len(formula); i++ {
		switch formula[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '<', '>', '=':
			if depth != 0 {
				continue
			}
			op := ComparisonOp(formula[i : i+1])
			width := 1
			if formula[i] != '=' && i+1 < len(formula) && formula[i+1] == '=' {
				op = ComparisonOp(formula[i : i+2])
				width = 2
			}
			left := strings.TrimSpace(formula[:i])
			right := strings.TrimSpace(formula[i+width:])
			if left == "" || right == "" {
				return "", "", "", fmt.Errorf("malformed formula %q: empty comparison side", formula)
			}
			return left, op, right, nil
		}
	}
	return "", "", "", fmt.Errorf("malformed formula %q: no comparison operator", formula)
}

// Shunting-yard operator precedence
var precedence = map[string]int{
	"+": 1,
	"-": 1,
	"*": 2,
	"/": 2,
}

// evaluateExpression evaluates one arithmetic side of a formula. The
// expression is tokenized with the Excel formula tokenizer and folded through
// a shunting-yard evaluator using decimal arithmetic throughout.
func evaluateExpression(expression string, resolve FieldResolver) (decimal.Decimal, error) {
	parser := efp.ExcelParser()
	tokens := parser.Parse(strings.TrimPrefix(expression, "="))
	if len(tokens) == 0 {
		return decimal.Zero, fmt.Errorf("malformed expression %q", expression)
	}

	var operands []decimal.Decimal
	var operators []string

	apply := func() error {
		if len(operators) == 0 || len(operands) < 2 {
			return fmt.Errorf("malformed expression %q", expression)
		}
		op := operators[len(operators)-1]
		operators = operators[:len(operators)-1]
		b := operands[len(operands)-1]
		a := operands[len(operands)-2]
		operands = operands[:len(operands)-2]

		var v decimal.Decimal
		switch op {
		case "+":
			v = a.Add(b)
		case "-":
			v = a.Sub(b)
		case "*":
			v = a.Mul(b)
		case "/":
			if b.IsZero() {
				return fmt.Errorf("division by zero in %q", expression)
			}
			v = a.Div(b)
		default:
			return fmt.Errorf("unsupported operator %q in %q", op, expression)
		}
		operands = append(operands, v)
		return nil
	}

	negateNext := false
	for _, token := range tokens {
		switch token.TType {
		case efp.TokenTypeWhitespace:
			continue
		case efp.TokenTypeOperand:
			var value decimal.Decimal
			if token.TSubType == efp.TokenSubTypeNumber {
				parsed, err := decimal.NewFromString(token.TValue)
				if err != nil {
					return decimal.Zero, fmt.Errorf("invalid number %q in %q", token.TValue, expression)
				}
				value = parsed
			} else {
				name := strings.ToLower(strings.TrimSpace(token.TValue))
				resolvedValue, ok := resolve(name)
				if !ok {
					return decimal.Zero, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
				}
				value = resolvedValue
			}
			if negateNext {
				value = value.Neg()
				negateNext = false
			}
			operands = append(operands, value)
		case efp.TokenTypeOperatorPrefix:
			if token.TValue == "-" {
				negateNext = !negateNext
			}
		case efp.TokenTypeOperatorInfix:
			current, ok := precedence[token.TValue]
			if !ok {
				return decimal.Zero, fmt.Errorf("unsupported operator %q in %q", token.TValue, expression)
			}
			for len(operators) > 0 {
				top := operators[len(operators)-1]
				if top == "(" || precedence[top] < current {
					break
				}
				if err := apply(); err != nil {
					return decimal.Zero, err
				}
			}
			operators = append(operators, token.TValue)
		case efp.TokenTypeSubexpression:
			switch token.TSubType {
			case efp.TokenSubTypeStart:
				operators = append(operators, "(")
			case efp.TokenSubTypeStop:
				for len(operators) > 0 && operators[len(operators)-1] != "(" {
					if err := apply(); err != nil {
						return decimal.Zero, err
					}
				}
				if len(operators) == 0 {
					return decimal.Zero, fmt.Errorf("unbalanced parentheses in %q", expression)
				}
				operators = operators[:len(operators)-1]
			}
		default:
			return decimal.Zero, fmt.Errorf("unsupported token %q (%s) in %q", token.TValue, token.TType, expression)
		}
	}

	for len(operators) > 0 {
		if operators[len(operators)-1] == "(" {
			return decimal.Zero, fmt.Errorf("unbalanced parentheses in %q", expression)
		}
		if err := apply(); err != nil {
			return decimal.Zero, err
		}
	}
	if len(operands) != 1 {
		return decimal.Zero, fmt.Errorf("malformed expression %q", expression)
	}
	return operands[0], nil
}

// NewRecordFieldResolver builds a field resolver over a normalized record set
// and its prior period.
//
// Field naming: a bare canonical account ID (e.g. total_assets) resolves when
// exactly one statement carries that account. A statement-qualified name
// (e.g. income_statement_net_income) always resolves against that statement.
// A prior_ prefix reads the prior period with the same rules.
func NewRecordFieldResolver(records, prior RecordSet) FieldResolver {
	current := buildFieldTable(records)
	previous := buildFieldTable(prior)
	return func(name string) (decimal.Decimal, bool) {
		if rest, ok := strings.CutPrefix(name, "prior_"); ok {
			v, found := previous[rest]
			return v, found
		}
		v, found := current[name]
		return v, found
	}
}

// buildFieldTable sums record amounts per canonical account. Bare names are
// only kept when unambiguous across statements; qualified names always exist.
func buildFieldTable(records RecordSet) map[string]decimal.Decimal {
	table := make(map[string]decimal.Decimal)
	owners := make(map[string]map[DocumentType]bool)
	for _, doc := range records.DocumentTypes() {
		for i := range records[doc] {
			r := &records[doc][i]
			if !r.IsMapped() {
				continue
			}
			qualified := string(doc) + "_" + r.CanonicalAccountID
			table[qualified] = table[qualified].Add(r.Amount)
			if owners[r.CanonicalAccountID] == nil {
				owners[r.CanonicalAccountID] = make(map[DocumentType]bool)
			}
			owners[r.CanonicalAccountID][doc] = true
		}
	}
	for canonical, docs := range owners {
		if len(docs) != 1 {
			continue
		}
		for doc := range docs {
			table[canonical] = table[string(doc)+"_"+canonical]
		}
	}
	return table
}
