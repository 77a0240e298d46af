package habit

import (
	"context"
	"errors"
	"fmt"
)

// LinkLookup returns the stored habit with the given id, or ErrNotFound.
type LinkLookup func(ctx context.Context, id uint64) (*Habit, error)

type Validator struct {
	Lookup LinkLookup
}

// Validate checks the full candidate state of a habit edited by ownerID.
// It returns a *ValidationError listing every broken rule, or a lookup error.
func (v *Validator) Validate(ctx context.Context, h *Habit, ownerID uint64) error {
	vs := exclusivity(h)

	link, err := v.linkage(ctx, h, ownerID)
	if err != nil {
		return err
	}
	vs = append(vs, link...)
	vs = append(vs, bounds(h)...)
	return asError(vs)
}

// CheckStructure runs the rules that need no store access.
func CheckStructure(h *Habit) error {
	return asError(append(exclusivity(h), bounds(h)...))
}

func exclusivity(h *Habit) []Violation {
	var vs []Violation
	if h.Reward != "" && h.LinkedHabitID != nil {
		vs = append(vs, Violation{RuleRewardWithLinkedHabit, "reward", "reward and linked habit cannot be set together"})
	}
	if h.IsPleasant {
		if h.Reward != "" {
			vs = append(vs, Violation{RulePleasantWithReward, "reward", "a pleasant habit cannot have a reward"})
		}
		if h.LinkedHabitID != nil {
			vs = append(vs, Violation{RulePleasantWithLinked, "linked_habit", "a pleasant habit cannot have a linked habit"})
		}
	}
	return vs
}

func (v *Validator) linkage(ctx context.Context, h *Habit, ownerID uint64) ([]Violation, error) {
	if h.LinkedHabitID == nil {
		return nil, nil
	}
	id := *h.LinkedHabitID
	if h.ID != 0 && id == h.ID {
		return []Violation{{RuleLinkedSelf, "linked_habit", "a habit cannot be linked to itself"}}, nil
	}

	linked, err := v.Lookup(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return []Violation{{RuleLinkedNotFound, "linked_habit", fmt.Sprintf("habit %d does not exist", id)}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load linked habit: %w", err)
	}

	var vs []Violation
	if !linked.IsPleasant {
		vs = append(vs, Violation{RuleLinkedNotPleasant, "linked_habit", "only a pleasant habit can be linked"})
	}
	if linked.UserID != ownerID {
		vs = append(vs, Violation{RuleLinkedForeignOwner, "linked_habit", "the linked habit must belong to the same user"})
	}
	return vs, nil
}

func bounds(h *Habit) []Violation {
	var vs []Violation
	if h.PeriodicityDays < MinPeriodicityDays || h.PeriodicityDays > MaxPeriodicityDays {
		vs = append(vs, Violation{RulePeriodicityRange, "periodicity_days", "periodicity must be between 1 and 7 days"})
	}
	if h.DurationSeconds < 0 || h.DurationSeconds > MaxDurationSeconds {
		vs = append(vs, Violation{RuleDurationRange, "duration_seconds", "duration must be between 0 and 120 seconds"})
	}
	return vs
}
