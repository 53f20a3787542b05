package domain

import "time"

// LimitedDrop gates purchasability of a collection to a time window,
// independent of raw stock.
type LimitedDrop struct {
	ID           string     `json:"id"`
	CollectionID string     `json:"collectionId"`
	StartsAt     time.Time  `json:"startsAt"`
	EndsAt       *time.Time `json:"endsAt,omitempty"`
	WaitlistOpen bool       `json:"waitlistOpen"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ActiveAt reports whether the drop window covers now.
func (d LimitedDrop) ActiveAt(now time.Time) bool {
	if now.Before(d.StartsAt) {
		return false
	}
	return d.EndsAt == nil || now.Before(*d.EndsAt)
}

type WaitlistEntry struct {
	ID        string    `json:"id"`
	DropID    string    `json:"dropId"`
	Email     string    `json:"email"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
