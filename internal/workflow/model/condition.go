package model

import (
	"fmt"
	"strconv"
)

// ConditionOperator is the fixed set of comparison operators supported by
// template activation conditions.
type ConditionOperator string

const (
	OperatorGreaterThan    ConditionOperator = ">"
	OperatorGreaterOrEqual ConditionOperator = ">="
	OperatorLessThan       ConditionOperator = "<"
	OperatorLessOrEqual    ConditionOperator = "<="
	OperatorEqual          ConditionOperator = "=="
	OperatorIn             ConditionOperator = "in"
)

// ActivationCondition is a single declarative predicate against a plant
// profile field (e.g. {field: "powerKw", operator: ">", value: 1000}).
// Conditions are data, not expressions: there is no nesting or boolean
// composition beyond the AND of all conditions in a ConditionSet.
type ActivationCondition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value"`
}

// ConditionSet maps a condition key to its predicate. All entries must hold
// for a template to activate. Stored as a jsonb column on the template.
type ConditionSet map[string]ActivationCondition

// Validate checks that the condition is well-formed.
func (c ActivationCondition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("activation condition must name a field")
	}
	switch c.Operator {
	case OperatorGreaterThan, OperatorGreaterOrEqual, OperatorLessThan, OperatorLessOrEqual, OperatorEqual:
		if c.Value == nil {
			return fmt.Errorf("activation condition on %q must carry a value", c.Field)
		}
	case OperatorIn:
		if _, ok := c.Value.([]any); !ok {
			return fmt.Errorf("activation condition on %q with operator %q requires a list value", c.Field, c.Operator)
		}
	default:
		return fmt.Errorf("unknown activation condition operator %q", c.Operator)
	}
	return nil
}

// Evaluate applies the condition to the given field values. Pure function:
// a missing field or a non-comparable value yields false, never an error.
func (c ActivationCondition) Evaluate(fields map[string]any) bool {
	actual, ok := fields[c.Field]
	if !ok {
		return false
	}

	switch c.Operator {
	case OperatorEqual:
		if an, aok := toFloat(actual); aok {
			if en, eok := toFloat(c.Value); eok {
				return an == en
			}
			return false
		}
		return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", c.Value)
	case OperatorIn:
		list, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, candidate := range list {
			if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", candidate) {
				return true
			}
		}
		return false
	default:
		an, aok := toFloat(actual)
		en, eok := toFloat(c.Value)
		if !aok || !eok {
			return false
		}
		switch c.Operator {
		case OperatorGreaterThan:
			return an > en
		case OperatorGreaterOrEqual:
			return an >= en
		case OperatorLessThan:
			return an < en
		case OperatorLessOrEqual:
			return an <= en
		}
	}
	return false
}

// Evaluate reports whether every condition in the set holds for the given
// field values. An empty set always holds.
func (cs ConditionSet) Evaluate(fields map[string]any) bool {
	for _, cond := range cs {
		if !cond.Evaluate(fields) {
			return false
		}
	}
	return true
}

// Validate checks every condition in the set.
func (cs ConditionSet) Validate() error {
	for key, cond := range cs {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("condition %q: %w", key, err)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
