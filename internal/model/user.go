// Package model defines domain entities for the application.
package model

import "time"

// DefaultUserName is assigned when registration omits a display name.
const DefaultUserName = "Unknown"

// User is a ledger account keyed by avatar.
// Avatar and APIKey are unique across the collection and never change.
type User struct {
	Avatar       string    `json:"avatar"`
	Name         string    `json:"name"`
	APIKey       string    `json:"apiKey"`
	RegisteredAt time.Time `json:"registeredAt"`
	Balance      float64   `json:"balance"`
	LastLogin    time.Time `json:"lastLogin"`
}

// Touch refreshes the last login timestamp.
func (u *User) Touch(now time.Time) {
	u.LastLogin = now.UTC()
}

// CanAfford reports whether the balance covers amount.
func (u *User) CanAfford(amount float64) bool {
	return u.Balance >= amount
}
