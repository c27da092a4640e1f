package ddbstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// The store evaluates the expression subset ddbsdk emits through the
// feature/dynamodb/expression builder:
//
//	condition: attribute_exists (#0) AND attribute_not_exists (#1)
//	update:    SET #0 = :0, #1.#2 = :1
//
// Anything else fails with ErrUnsupported.

var (
	existsRegex = regexp.MustCompile(`^attribute_(not_)?exists\s*\(\s*([^()\s]+)\s*\)$`)
	assignRegex = regexp.MustCompile(`^([^=\s]+)\s*=\s*(:[A-Za-z0-9_]+)$`)
)

// evalCondition reports whether item satisfies the condition expression.
// A nil expression always holds; a nil item has no attributes.
func evalCondition(expr *string, names map[string]string, item map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, term := range strings.Split(stripParens(*expr), " AND ") {
		term = stripParens(term)
		m := existsRegex.FindStringSubmatch(term)
		if m == nil {
			return false, fmt.Errorf("%w: condition %q", ErrUnsupported, term)
		}
		path, err := resolvePath(m[2], names)
		if err != nil {
			return false, err
		}
		exists := pathExists(item, path)
		if m[1] == "not_" {
			exists = !exists
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}

type setAction struct {
	path  []string
	value types.AttributeValue
}

// parseSetExpression parses an update expression made of a single SET clause
// of plain assignments.
func parseSetExpression(expr string, names map[string]string, values map[string]types.AttributeValue) ([]setAction, error) {
	expr = strings.TrimSpace(expr)
	if strings.Contains(expr, "\n") {
		return nil, fmt.Errorf("%w: update with more than one clause", ErrUnsupported)
	}
	const set = "SET "
	if len(expr) < len(set) || !strings.EqualFold(expr[:len(set)], set) {
		return nil, fmt.Errorf("%w: update %q is not a SET clause", ErrUnsupported, expr)
	}

	var actions []setAction
	for _, assignment := range strings.Split(expr[len(set):], ",") {
		m := assignRegex.FindStringSubmatch(strings.TrimSpace(assignment))
		if m == nil {
			return nil, fmt.Errorf("%w: assignment %q", ErrUnsupported, assignment)
		}
		path, err := resolvePath(m[1], names)
		if err != nil {
			return nil, err
		}
		v, ok := values[m[2]]
		if !ok {
			return nil, fmt.Errorf("expression attribute value %s is not defined", m[2])
		}
		actions = append(actions, setAction{path: path, value: v})
	}
	return actions, nil
}

// resolvePath turns "#0.#1" into attribute names using the expression names.
func resolvePath(raw string, names map[string]string) ([]string, error) {
	parts := strings.Split(raw, ".")
	for i, p := range parts {
		if strings.Contains(p, "[") {
			return nil, fmt.Errorf("%w: list index in path %q", ErrUnsupported, raw)
		}
		if !strings.HasPrefix(p, "#") {
			continue
		}
		name, ok := names[p]
		if !ok {
			return nil, fmt.Errorf("expression attribute name %s is not defined", p)
		}
		parts[i] = name
	}
	return parts, nil
}

// stripParens removes parentheses wrapping the whole expression.
func stripParens(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' && wraps(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// wraps reports whether the opening parenthesis of s closes at its last byte.
func wraps(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

func pathExists(item map[string]types.AttributeValue, path []string) bool {
	cur := item
	for i, name := range path {
		v, ok := cur[name]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return false
		}
		cur = m.Value
	}
	return false
}

// setPath assigns value at path, copying every map it descends into so that
// item's previous contents are left untouched.
func setPath(item map[string]types.AttributeValue, path []string, value types.AttributeValue) error {
	if len(path) == 1 {
		item[path[0]] = value
		return nil
	}
	m, ok := item[path[0]].(*types.AttributeValueMemberM)
	if !ok {
		return fmt.Errorf("the document path %q is invalid for update", strings.Join(path, "."))
	}
	child := make(map[string]types.AttributeValue, len(m.Value)+1)
	for k, v := range m.Value {
		child[k] = v
	}
	if err := setPath(child, path[1:], value); err != nil {
		return err
	}
	item[path[0]] = &types.AttributeValueMemberM{Value: child}
	return nil
}
