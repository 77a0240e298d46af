package habit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB *gorm.DB
}

// Input is a full or partial edit of a habit. Nil fields keep the stored
// value (or the default on create). is_public is deliberately absent.
type Input struct {
	Place           *string
	TimeOfDay       *TimeOfDay
	Action          *string
	IsPleasant      *bool
	LinkedHabit     LinkChange
	PeriodicityDays *int
	Reward          *string
	DurationSeconds *int
}

// LinkChange edits linked_habit: Set=false leaves it alone, Set=true with a
// nil ID clears it.
type LinkChange struct {
	Set bool
	ID  *uint64
}

func (in Input) applyTo(h *Habit) {
	if in.Place != nil {
		h.Place = strings.TrimSpace(*in.Place)
	}
	if in.TimeOfDay != nil {
		h.TimeOfDay = *in.TimeOfDay
	}
	if in.Action != nil {
		h.Action = strings.TrimSpace(*in.Action)
	}
	if in.IsPleasant != nil {
		h.IsPleasant = *in.IsPleasant
	}
	if in.LinkedHabit.Set {
		h.LinkedHabitID = in.LinkedHabit.ID
	}
	if in.PeriodicityDays != nil {
		h.PeriodicityDays = *in.PeriodicityDays
	}
	if in.Reward != nil {
		h.Reward = strings.TrimSpace(*in.Reward)
	}
	if in.DurationSeconds != nil {
		h.DurationSeconds = *in.DurationSeconds
	}
}

func (in Input) missing() []Violation {
	var vs []Violation
	if in.Place == nil || strings.TrimSpace(*in.Place) == "" {
		vs = append(vs, Violation{RuleRequired, "place", "place is required"})
	}
	if in.TimeOfDay == nil {
		vs = append(vs, Violation{RuleRequired, "time", "time is required"})
	}
	if in.Action == nil || strings.TrimSpace(*in.Action) == "" {
		vs = append(vs, Violation{RuleRequired, "action", "action is required"})
	}
	return vs
}

// blank reports required text fields emptied by an edit.
func blank(h *Habit) []Violation {
	var vs []Violation
	if h.Place == "" {
		vs = append(vs, Violation{RuleRequired, "place", "place is required"})
	}
	if h.Action == "" {
		vs = append(vs, Violation{RuleRequired, "action", "action is required"})
	}
	return vs
}

// withRequired puts required-field violations ahead of the validator's.
// Errors other than *ValidationError pass through untouched.
func withRequired(required []Violation, err error) error {
	var verr *ValidationError
	if err != nil && !errors.As(err, &verr) {
		return err
	}
	if verr != nil {
		required = append(required, verr.Violations...)
	}
	return asError(required)
}

func validatorFor(tx *gorm.DB) *Validator {
	return &Validator{Lookup: func(ctx context.Context, id uint64) (*Habit, error) {
		var h Habit
		if err := tx.WithContext(ctx).Where("id = ?", id).First(&h).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return &h, nil
	}}
}

func (s *Service) Create(ctx context.Context, userID uint64, in Input) (*Habit, error) {
	h := Habit{
		UserID:          userID,
		PeriodicityDays: DefaultPeriodicityDays,
		DurationSeconds: DefaultDurationSeconds,
	}
	in.applyTo(&h)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := withRequired(in.missing(), validatorFor(tx).Validate(ctx, &h, userID))
		if err != nil {
			return err
		}
		return tx.Create(&h).Error
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Get returns one of the user's own habits.
func (s *Service) Get(ctx context.Context, userID, id uint64) (*Habit, error) {
	var h Habit
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (s *Service) List(ctx context.Context, userID uint64, page, size int) ([]Habit, int64, error) {
	q := s.DB.WithContext(ctx).Model(&Habit{}).Where("user_id = ?", userID)
	return paginate(q, page, size)
}

// likeEscaper makes LIKE metacharacters in a search term literal.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListPublic lists templates; query filters action or place case-insensitively.
func (s *Service) ListPublic(ctx context.Context, query string, page, size int) ([]Habit, int64, error) {
	q := s.DB.WithContext(ctx).Model(&Habit{}).Where("is_public = ?", true)
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
		q = q.Where(`LOWER(action) LIKE ? ESCAPE '\' OR LOWER(place) LIKE ? ESCAPE '\'`, like, like)
	}
	return paginate(q, page, size)
}

func paginate(q *gorm.DB, page, size int) ([]Habit, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	var rows []Habit
	if err := q.Order("created_at desc, id desc").Offset((page - 1) * size).Limit(size).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// loadEditable locks the habit and applies the protection and ownership
// rules shared by update and delete.
func loadEditable(tx *gorm.DB, userID, id uint64) (*Habit, error) {
	var h Habit
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var owner struct{ IsSystem bool }
	if err := tx.Table("users").Select("is_system").Where("id = ?", h.UserID).Scan(&owner).Error; err != nil {
		return nil, err
	}
	if h.IsPublic || owner.IsSystem {
		return nil, ErrProtected
	}
	if h.UserID != userID {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (s *Service) Update(ctx context.Context, userID, id uint64, in Input) (*Habit, error) {
	var out Habit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadEditable(tx, userID, id)
		if err != nil {
			return err
		}

		candidate := *current
		in.applyTo(&candidate)
		if err := withRequired(blank(&candidate), validatorFor(tx).Validate(ctx, &candidate, userID)); err != nil {
			return err
		}

		changes := map[string]any{
			"place":            candidate.Place,
			"time_of_day":      candidate.TimeOfDay,
			"action":           candidate.Action,
			"is_pleasant":      candidate.IsPleasant,
			"linked_habit_id":  candidate.LinkedHabitID,
			"periodicity_days": candidate.PeriodicityDays,
			"reward":           candidate.Reward,
			"duration_seconds": candidate.DurationSeconds,
		}
		// a new slot is computed by the next scan
		if candidate.TimeOfDay != current.TimeOfDay || candidate.PeriodicityDays != current.PeriodicityDays {
			changes["next_run_at"] = nil
		}
		if err := tx.Model(&Habit{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the habit and unlinks every habit that pointed at it.
func (s *Service) Delete(ctx context.Context, userID, id uint64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadEditable(tx, userID, id); err != nil {
			return err
		}
		if err := tx.Model(&Habit{}).Where("linked_habit_id = ?", id).Update("linked_habit_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&Habit{}, id).Error
	})
}

// Adopt clones a public template, and the pleasant habit it links to, into
// the user's private habits. Either both clones are stored or neither.
func (s *Service) Adopt(ctx context.Context, templateID, userID uint64) (*Habit, error) {
	var out Habit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl Habit
		if err := tx.Preload("LinkedHabit").Where("id = ? AND is_public = ?", templateID, true).First(&tpl).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTemplateNotFound
			}
			return err
		}

		// a broken template is a server fault, so violations are not wrapped
		var linkedID *uint64
		if !tpl.IsPleasant && tpl.LinkedHabit != nil {
			pleasant := cloneFor(tpl.LinkedHabit, userID, nil)
			if err := CheckStructure(&pleasant); err != nil {
				return fmt.Errorf("clone linked habit %d: %v", tpl.LinkedHabit.ID, err)
			}
			if err := tx.Create(&pleasant).Error; err != nil {
				return err
			}
			linkedID = &pleasant.ID
		}

		out = cloneFor(&tpl, userID, linkedID)
		if err := CheckStructure(&out); err != nil {
			return fmt.Errorf("clone template %d: %v", tpl.ID, err)
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func cloneFor(src *Habit, userID uint64, linked *uint64) Habit {
	reward := src.Reward
	if src.IsPleasant {
		reward = ""
	}
	return Habit{
		UserID:          userID,
		Place:           src.Place,
		TimeOfDay:       src.TimeOfDay,
		Action:          src.Action,
		IsPleasant:      src.IsPleasant,
		LinkedHabitID:   linked,
		PeriodicityDays: src.PeriodicityDays,
		Reward:          reward,
		DurationSeconds: src.DurationSeconds,
		IsPublic:        false,
	}
}
