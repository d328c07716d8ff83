package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ExpressionType identifies a string expression variant.
type ExpressionType string

const (
	ExprRegexMatch ExpressionType = "regexMatch"
	ExprEquals     ExpressionType = "equals"
	ExprStartsWith ExpressionType = "startsWith"
	ExprEndsWith   ExpressionType = "endsWith"
	ExprContains   ExpressionType = "contains"
)

// StringExpression is a single predicate over a string. Regex expressions
// hold the compiled pattern alongside its source; compilation happens
// eagerly at construction or unmarshal time, and equality is defined on the
// source, not the compiled automaton.
type StringExpression struct {
	Type  ExpressionType
	Value string

	re *regexp.Regexp
}

// RegexMatch compiles pattern and returns the matching expression.
func RegexMatch(pattern string) (StringExpression, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return StringExpression{}, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return StringExpression{Type: ExprRegexMatch, Value: pattern, re: re}, nil
}

// Equals matches strings equal to value.
func Equals(value string) StringExpression {
	return StringExpression{Type: ExprEquals, Value: value}
}

// StartsWith matches strings with the given prefix.
func StartsWith(value string) StringExpression {
	return StringExpression{Type: ExprStartsWith, Value: value}
}

// EndsWith matches strings with the given suffix.
func EndsWith(value string) StringExpression {
	return StringExpression{Type: ExprEndsWith, Value: value}
}

// Contains matches strings containing value.
func Contains(value string) StringExpression {
	return StringExpression{Type: ExprContains, Value: value}
}

// Matches reports whether s satisfies the expression.
func (e StringExpression) Matches(s string) bool {
	switch e.Type {
	case ExprRegexMatch:
		return e.re != nil && e.re.MatchString(s)
	case ExprEquals:
		return s == e.Value
	case ExprStartsWith:
		return strings.HasPrefix(s, e.Value)
	case ExprEndsWith:
		return strings.HasSuffix(s, e.Value)
	case ExprContains:
		return strings.Contains(s, e.Value)
	}
	return false
}

// Equal compares expressions by type and source value.
func (e StringExpression) Equal(o StringExpression) bool {
	return e.Type == o.Type && e.Value == o.Value
}

type expressionJSON struct {
	Type  ExpressionType `json:"type"`
	Value string         `json:"value"`
}

func (e StringExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(expressionJSON{Type: e.Type, Value: e.Value})
}

func (e *StringExpression) UnmarshalJSON(data []byte) error {
	var raw expressionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case ExprRegexMatch:
		expr, err := RegexMatch(raw.Value)
		if err != nil {
			return err
		}
		*e = expr
	case ExprEquals, ExprStartsWith, ExprEndsWith, ExprContains:
		*e = StringExpression{Type: raw.Type, Value: raw.Value}
	default:
		return fmt.Errorf("unknown expression type %q", raw.Type)
	}
	return nil
}

type conditionKind int

const (
	condInvalid conditionKind = iota
	condAny
	condOne
	condAnd
	condOr
	condNot
)

// Condition is a recursive boolean predicate over strings. The JSON form
// uses two discriminator styles: composites are tagged by a lowercase key
// ("any", {"and":[...]}, {"or":[...]}, {"not":...}) while a leaf expression
// is the untagged {"type":...,"value":...} object.
type Condition struct {
	kind conditionKind
	expr StringExpression
	subs []Condition
}

// AnyCondition matches every string.
func AnyCondition() Condition {
	return Condition{kind: condAny}
}

// ExprCondition wraps a single string expression.
func ExprCondition(expr StringExpression) Condition {
	return Condition{kind: condOne, expr: expr}
}

// AndCondition matches when all sub-conditions match.
func AndCondition(subs ...Condition) Condition {
	return Condition{kind: condAnd, subs: subs}
}

// OrCondition matches when at least one sub-condition matches.
func OrCondition(subs ...Condition) Condition {
	return Condition{kind: condOr, subs: subs}
}

// NotCondition negates a condition.
func NotCondition(sub Condition) Condition {
	return Condition{kind: condNot, subs: []Condition{sub}}
}

// Matches evaluates the condition against s. AND stops at the first false
// sub-condition, OR at the first true one.
func (c Condition) Matches(s string) bool {
	switch c.kind {
	case condAny:
		return true
	case condOne:
		return c.expr.Matches(s)
	case condAnd:
		for _, sub := range c.subs {
			if !sub.Matches(s) {
				return false
			}
		}
		return true
	case condOr:
		for _, sub := range c.subs {
			if sub.Matches(s) {
				return true
			}
		}
		return false
	case condNot:
		return !c.subs[0].Matches(s)
	}
	return false
}

// Equal compares condition trees structurally; regex leaves compare by
// pattern source.
func (c Condition) Equal(o Condition) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case condOne:
		return c.expr.Equal(o.expr)
	case condAnd, condOr, condNot:
		if len(c.subs) != len(o.subs) {
			return false
		}
		for i := range c.subs {
			if !c.subs[i].Equal(o.subs[i]) {
				return false
			}
		}
	}
	return true
}

func (c Condition) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case condAny:
		return json.Marshal("any")
	case condOne:
		return json.Marshal(c.expr)
	case condAnd:
		return json.Marshal(map[string][]Condition{"and": c.subs})
	case condOr:
		return json.Marshal(map[string][]Condition{"or": c.subs})
	case condNot:
		return json.Marshal(map[string]Condition{"not": c.subs[0]})
	}
	return nil, fmt.Errorf("cannot marshal invalid condition")
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag != "any" {
			return fmt.Errorf("unknown condition %q", tag)
		}
		*c = AnyCondition()
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	switch {
	case fields["and"] != nil:
		var subs []Condition
		if err := json.Unmarshal(fields["and"], &subs); err != nil {
			return err
		}
		*c = AndCondition(subs...)
	case fields["or"] != nil:
		var subs []Condition
		if err := json.Unmarshal(fields["or"], &subs); err != nil {
			return err
		}
		*c = OrCondition(subs...)
	case fields["not"] != nil:
		var sub Condition
		if err := json.Unmarshal(fields["not"], &sub); err != nil {
			return err
		}
		*c = NotCondition(sub)
	case fields["type"] != nil:
		var expr StringExpression
		if err := json.Unmarshal(data, &expr); err != nil {
			return err
		}
		*c = ExprCondition(expr)
	default:
		return fmt.Errorf("unrecognized condition shape")
	}
	return nil
}
