// Package model defines the core domain types shared across the application.
package model

import (
	"fmt"
	"time"
)

// UserProfile is the slice of the user's account the companion needs to
// render time-cost warnings: who they are, what an hour of their work is
// worth, and how much money they have across accounts.
type UserProfile struct {
	FullName   string  `json:"fullName"`
	HourlyRate float64 `json:"hourlyRate"`
	Balance    float64 `json:"balance"`
}

// TimeCost returns the hours of work a purchase costs at the user's hourly
// rate, formatted to one decimal place. Returns "?" when no usable rate is
// known.
func (u UserProfile) TimeCost(price float64) string {
	if u.HourlyRate <= 0 {
		return "?"
	}
	return fmt.Sprintf("%.1f", price/u.HourlyRate)
}

// Session is the stored credential blob: a bearer token plus the profile
// fetched at login time.
type Session struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
	Saved time.Time   `json:"saved"`
}

// Account is a single account row from the finance API, used to compute the
// user's total balance at login.
type Account struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}
