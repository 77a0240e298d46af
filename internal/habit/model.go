package habit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"habits/internal/auth"
)

const (
	MinPeriodicityDays = 1
	MaxPeriodicityDays = 7
	MaxDurationSeconds = 120

	DefaultPeriodicityDays = 1
	DefaultDurationSeconds = 60

	DefaultPageSize = 5
)

// Habit is either useful (may carry a reward or a link to a pleasant habit)
// or pleasant (neither). Public habits are templates owned by a system account.
type Habit struct {
	ID     uint64     `gorm:"primaryKey"`
	UserID uint64     `gorm:"index;not null"`
	Owner  *auth.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	Place     string    `gorm:"type:varchar(255);not null"`
	TimeOfDay TimeOfDay `gorm:"type:varchar(8);not null"`
	Action    string    `gorm:"type:varchar(255);not null"`

	IsPleasant    bool    `gorm:"not null;default:false"`
	LinkedHabitID *uint64 `gorm:"index"`
	LinkedHabit   *Habit  `gorm:"foreignKey:LinkedHabitID;constraint:OnDelete:SET NULL"`

	PeriodicityDays int    `gorm:"not null"`
	Reward          string `gorm:"type:varchar(255);not null;default:''"`
	DurationSeconds int    `gorm:"not null"`

	IsPublic bool `gorm:"index;not null;default:false"`

	NextRunAt      *time.Time `gorm:"index"`
	LastNotifiedAt *time.Time

	CreatedAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ReminderText is the body of the Telegram notification for h.
func (h *Habit) ReminderText() string {
	var b strings.Builder
	b.WriteString("Habit reminder:\n• ")
	b.WriteString(h.Action)
	if h.Place != "" {
		b.WriteString(" at ")
		b.WriteString(h.Place)
	}
	b.WriteString("\n⏰ ")
	b.WriteString(h.TimeOfDay.Clock())
	return b.String()
}

// TimeOfDay is a wall clock time without a date, stored as HH:MM:SS.
type TimeOfDay struct {
	Hour, Minute, Second int
}

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	layout := "15:04:05"
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Clock formats as HH:MM.
func (t TimeOfDay) Clock() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return t.set(v)
	case []byte:
		return t.set(string(v))
	case time.Time:
		*t = TimeOfDay{Hour: v.Hour(), Minute: v.Minute(), Second: v.Second()}
		return nil
	case nil:
		*t = TimeOfDay{}
		return nil
	default:
		return fmt.Errorf("unsupported time of day source %T", src)
	}
}

func (t *TimeOfDay) set(s string) error {
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time of day must be a string")
	}
	return t.set(s)
}
