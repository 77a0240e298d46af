package habit

import (
	"errors"
	"strings"
)

var (
	ErrNotFound         = errors.New("habit not found")
	ErrTemplateNotFound = errors.New("public template not found")
	// ErrProtected rejects any edit of a public template, whoever asks.
	ErrProtected = errors.New("public templates cannot be modified")
)

type Rule string

const (
	RuleRequired              Rule = "required"
	RuleRewardWithLinkedHabit Rule = "reward_with_linked_habit"
	RulePleasantWithReward    Rule = "pleasant_with_reward"
	RulePleasantWithLinked    Rule = "pleasant_with_linked_habit"
	RuleLinkedNotPleasant     Rule = "linked_habit_not_pleasant"
	RuleLinkedForeignOwner    Rule = "linked_habit_foreign_owner"
	RuleLinkedSelf            Rule = "linked_habit_self"
	RuleLinkedNotFound        Rule = "linked_habit_not_found"
	RulePeriodicityRange      Rule = "periodicity_out_of_range"
	RuleDurationRange         Rule = "duration_out_of_range"
)

type Violation struct {
	Rule    Rule   `json:"rule"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rule a candidate habit breaks.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, string(v.Rule))
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

func (e *ValidationError) Has(rule Rule) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

func asError(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}
