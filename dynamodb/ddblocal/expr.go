package ddblocal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// exprEnv resolves the placeholder names ("#0") and values (":0") the
// expression builder substitutes into every generated expression.
type exprEnv struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func newExprEnv(names map[string]string, values map[string]types.AttributeValue) exprEnv {
	return exprEnv{names: names, values: values}
}

func (e exprEnv) name(tok string) (string, error) {
	tok = strings.TrimSpace(tok)
	if !strings.HasPrefix(tok, "#") {
		return tok, nil
	}
	n, ok := e.names[tok]
	if !ok {
		return "", fmt.Errorf("ddblocal: unresolved name placeholder %q", tok)
	}
	return n, nil
}

func (e exprEnv) value(tok string) (types.AttributeValue, error) {
	tok = strings.TrimSpace(tok)
	if !strings.HasPrefix(tok, ":") {
		return nil, fmt.Errorf("ddblocal: expected value placeholder, got %q", tok)
	}
	v, ok := e.values[tok]
	if !ok {
		return nil, fmt.Errorf("ddblocal: unresolved value placeholder %q", tok)
	}
	return v, nil
}

// evalCondition evaluates a generated condition or key-condition
// expression against an item. A nil item (no such key yet) makes every
// attribute lookup miss, which is exactly DynamoDB's behavior for
// conditional writes on absent items.
//
// Supported forms: attribute_exists, attribute_not_exists, begins_with,
// the six comparators, and AND conjunctions.
func evalCondition(cond string, item map[string]types.AttributeValue, env exprEnv) (bool, error) {
	cond = strings.Join(strings.Fields(cond), " ")
	if cond == "" {
		return true, nil
	}
	for _, term := range splitAnd(cond) {
		term = stripParens(term)
		// Chained conjunctions nest left, "((a) AND (b)) AND (c)", so
		// stripping parentheses can expose another conjunction.
		var (
			ok  bool
			err error
		)
		if strings.Contains(term, " AND ") {
			ok, err = evalCondition(term, item, env)
		} else {
			ok, err = evalTerm(term, item, env)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalTerm(term string, item map[string]types.AttributeValue, env exprEnv) (bool, error) {
	switch {
	case strings.HasPrefix(term, "attribute_exists"):
		name, err := env.name(callArg(term))
		if err != nil {
			return false, err
		}
		_, ok := item[name]
		return ok, nil

	case strings.HasPrefix(term, "attribute_not_exists"):
		name, err := env.name(callArg(term))
		if err != nil {
			return false, err
		}
		_, ok := item[name]
		return !ok, nil

	case strings.HasPrefix(term, "begins_with"):
		args := strings.SplitN(callArg(term), ",", 2)
		if len(args) != 2 {
			return false, fmt.Errorf("ddblocal: malformed begins_with in %q", term)
		}
		name, err := env.name(args[0])
		if err != nil {
			return false, err
		}
		want, err := env.value(args[1])
		if err != nil {
			return false, err
		}
		got, ok := item[name].(*types.AttributeValueMemberS)
		prefix, pok := want.(*types.AttributeValueMemberS)
		if !ok || !pok {
			return false, nil
		}
		return strings.HasPrefix(got.Value, prefix.Value), nil

	default:
		return evalComparison(term, item, env)
	}
}

func evalComparison(term string, item map[string]types.AttributeValue, env exprEnv) (bool, error) {
	fields := strings.Fields(term)
	if len(fields) != 3 {
		return false, fmt.Errorf("ddblocal: unsupported condition term %q", term)
	}
	name, err := env.name(fields[0])
	if err != nil {
		return false, err
	}
	want, err := env.value(fields[2])
	if err != nil {
		return false, err
	}
	got, ok := item[name]
	if !ok {
		return false, nil
	}
	cmp, comparable := compareAV(got, want)
	if !comparable {
		return false, nil
	}
	switch fields[1] {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("ddblocal: unsupported comparator %q", fields[1])
	}
}

// compareAV orders two scalar attribute values of the same type.
func compareAV(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		af, err1 := strconv.ParseFloat(av.Value, 64)
		bf, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok {
			return 0, false
		}
		if av.Value == bv.Value {
			return 0, true
		}
		return 1, true
	default:
		return 0, false
	}
}

// callArg extracts the argument list of "fn (args)".
func callArg(term string) string {
	open := strings.Index(term, "(")
	close := strings.LastIndex(term, ")")
	if open < 0 || close < open {
		return ""
	}
	return term[open+1 : close]
}

// splitAnd splits on " AND " at parenthesis depth zero.
func splitAnd(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i+5 <= len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && s[i:i+5] == " AND " {
			parts = append(parts, s[start:i])
			start = i + 5
		}
	}
	return append(parts, s[start:])
}

// stripParens removes balanced outer parentheses: "((a))" -> "a".
func stripParens(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		depth := 0
		balanced := true
		inner := s[1 : len(s)-1]
		for _, c := range inner {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth < 0 {
				balanced = false
				break
			}
		}
		if !balanced || depth != 0 {
			break
		}
		s = strings.TrimSpace(inner)
	}
	return s
}

// applyUpdate mutates item according to a generated update expression.
// Only the SET and REMOVE clauses the facade emits are supported.
func applyUpdate(exprStr string, item map[string]types.AttributeValue, env exprEnv) error {
	for _, clause := range strings.Split(exprStr, "\n") {
		clause = strings.Join(strings.Fields(clause), " ")
		if clause == "" {
			continue
		}
		keyword, rest, found := strings.Cut(clause, " ")
		if !found {
			return fmt.Errorf("ddblocal: malformed update clause %q", clause)
		}
		switch keyword {
		case "SET":
			for _, assign := range strings.Split(rest, ",") {
				lhs, rhs, ok := strings.Cut(assign, "=")
				if !ok {
					return fmt.Errorf("ddblocal: malformed SET action %q", assign)
				}
				name, err := env.name(lhs)
				if err != nil {
					return err
				}
				val, err := env.value(rhs)
				if err != nil {
					return err
				}
				item[name] = val
			}
		case "REMOVE":
			for _, field := range strings.Split(rest, ",") {
				name, err := env.name(field)
				if err != nil {
					return err
				}
				delete(item, name)
			}
		default:
			return fmt.Errorf("ddblocal: unsupported update clause %q", keyword)
		}
	}
	return nil
}
