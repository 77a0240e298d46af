package habit

import (
	"context"
	"errors"
	"time"

	"habits/internal/auth"

	"gorm.io/gorm"
)

// TemplateOwnerEmail identifies the system account that owns public templates.
const TemplateOwnerEmail = "templates@habits.local"

type Template struct {
	Action          string
	Place           string
	Time            TimeOfDay
	DurationSeconds int
	IsPleasant      bool
	// Pleasant is seeded first and linked from this template.
	Pleasant *Template
}

type SeedResult struct {
	Created int
	Existed int
}

// EnsureTemplateOwner returns the system account, creating it when missing.
func (s *Service) EnsureTemplateOwner(ctx context.Context) (*auth.User, error) {
	var u auth.User
	err := s.DB.WithContext(ctx).
		Where(auth.User{Email: TemplateOwnerEmail}).
		Attrs(auth.User{PasswordHash: auth.UnusablePassword, IsSystem: true, CreatedAt: time.Now()}).
		FirstOrCreate(&u).Error
	if err != nil {
		return nil, err
	}
	if !u.IsSystem {
		if err := s.DB.WithContext(ctx).Model(&u).Update("is_system", true).Error; err != nil {
			return nil, err
		}
	}
	return &u, nil
}

// EnsureTemplates seeds the catalog. Templates are keyed on
// owner+action+time+place, so running it again creates nothing.
func (s *Service) EnsureTemplates(ctx context.Context, catalog []Template) (SeedResult, error) {
	var res SeedResult
	owner, err := s.EnsureTemplateOwner(ctx)
	if err != nil {
		return res, err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range catalog {
			var linked *uint64
			if t.Pleasant != nil && !t.IsPleasant {
				p, err := ensureTemplate(tx, owner.ID, *t.Pleasant, nil, &res)
				if err != nil {
					return err
				}
				linked = &p.ID
			}
			if _, err := ensureTemplate(tx, owner.ID, t, linked, &res); err != nil {
				return err
			}
		}
		return nil
	})
	return res, err
}

func ensureTemplate(tx *gorm.DB, ownerID uint64, t Template, linked *uint64, res *SeedResult) (*Habit, error) {
	var h Habit
	err := tx.Where("user_id = ? AND action = ? AND time_of_day = ? AND place = ?", ownerID, t.Action, t.Time, t.Place).
		First(&h).Error
	if err == nil {
		res.Existed++
		return &h, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	h = Habit{
		UserID:          ownerID,
		Place:           t.Place,
		TimeOfDay:       t.Time,
		Action:          t.Action,
		IsPleasant:      t.IsPleasant,
		PeriodicityDays: DefaultPeriodicityDays,
		DurationSeconds: t.DurationSeconds,
		IsPublic:        true,
	}
	if !t.IsPleasant {
		h.LinkedHabitID = linked
	}
	if err := CheckStructure(&h); err != nil {
		return nil, err
	}
	if err := tx.Create(&h).Error; err != nil {
		return nil, err
	}
	res.Created++
	return &h, nil
}

func at(hour, minute int) TimeOfDay { return NewTimeOfDay(hour, minute, 0) }

// Catalog is the built-in set of public templates.
var Catalog = []Template{
	// health
	{Action: "Drink a glass of water", Place: "Kitchen", Time: at(7, 0), DurationSeconds: 60},
	{Action: "Hold a plank for 30-60 seconds", Place: "Bedroom mat", Time: at(7, 30), DurationSeconds: 60},
	{Action: "Do eye exercises", Place: "Desk", Time: at(14, 0), DurationSeconds: 120},
	{Action: "Step outside for fresh air", Place: "Street or park", Time: at(13, 0), DurationSeconds: 120},
	// learning
	{Action: "Read one page of a book", Place: "Bed", Time: at(22, 30), DurationSeconds: 120},
	{Action: "Learn one new English word", Place: "Kitchen", Time: at(8, 0), DurationSeconds: 60},
	{Action: "Review one pull request", Place: "Workplace", Time: at(9, 0), DurationSeconds: 120},
	// mindfulness
	{Action: "Write down one thing I am grateful for", Place: "Journal", Time: at(19, 30), DurationSeconds: 60},
	{Action: "Sit in silence and follow the breath", Place: "Armchair", Time: at(18, 30), DurationSeconds: 120},
	{Action: "Put the phone face down", Place: "Bedside table", Time: at(22, 0), DurationSeconds: 10},
	// home
	{Action: "Make the bed", Place: "Bedroom", Time: at(7, 5), DurationSeconds: 60},
	{Action: "Wash my cup", Place: "Kitchen", Time: at(16, 0), DurationSeconds: 60},
	{Action: "Lay out clothes for tomorrow", Place: "Wardrobe", Time: at(21, 0), DurationSeconds: 120},
	// useful habit rewarded by a pleasant one
	{
		Action: "Learn 5 editor shortcuts", Place: "Desk", Time: at(10, 0), DurationSeconds: 120,
		Pleasant: &Template{Action: "Watch a funny video", Place: "Phone", Time: at(20, 0), DurationSeconds: 120, IsPleasant: true},
	},
}
