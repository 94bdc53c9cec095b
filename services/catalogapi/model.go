package catalogapi

import (
	"math"
	"time"
)

type Course struct {
	UID            string `gorm:"primaryKey"`
	Title          string
	Description    string `datastore:",noindex"`
	Category       string
	Price          float64 // list price in major currency units
	InstructorName string
	LessonCount    int
	CreatedAt      time.Time
	LastModified   *time.Time
}

func (c Course) PriceInCents() int64 {
	return ToMinorUnits(c.Price)
}

type User struct {
	UID              string `gorm:"primaryKey"`
	Email            string
	FullName         string
	StripeCustomerID string
	CreatedAt        time.Time
	LastModified     *time.Time
}

// ToMinorUnits converts a major-unit amount to cents, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
