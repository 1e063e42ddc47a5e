// Package usage decides whether an account may create another story and
// keeps the counters that decision is based on.
package usage

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusGuest      Status = "guest"
	StatusRegistered Status = "registered"
	StatusSubscribed Status = "subscribed"
	StatusOwner      Status = "owner"
)

type Tier string

const (
	Tier1 Tier = "tier1"
	Tier2 Tier = "tier2"
)

// Account is who is asking for a story.
type Account struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Tier   Tier   `json:"tier,omitempty"`
}

// CanUsePremium reports whether the account may pick voices and interactive stories.
func (a Account) CanUsePremium() bool {
	return a.Status == StatusSubscribed || a.Status == StatusOwner
}

// Daily is the per-day creation counter of a subscriber.
type Daily struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Ledger holds the usage counters of one account.
type Ledger struct {
	GuestSimpleCreations      int   `json:"guest_simple_creations"`
	RegisteredSimpleCreations int   `json:"registered_simple_creations"`
	Daily                     Daily `json:"daily_creations"`
}

// DailyCount is the number of creations made on today.
func (l Ledger) DailyCount(today string) int {
	if l.Daily.Date != today {
		return 0
	}
	return l.Daily.Count
}

// Limits are the caps the policy enforces.
type Limits struct {
	GuestSimple      int
	RegisteredSimple int
	Daily            map[Tier]int
}

func DefaultLimits() Limits {
	return Limits{
		GuestSimple:      3,
		RegisteredSimple: 3,
		Daily: map[Tier]int{
			Tier1: 3,
			Tier2: 7,
		},
	}
}

// DailyLimit is the cap for a tier; unknown tiers get the tier1 cap.
func (l Limits) DailyLimit(tier Tier) int {
	if n, ok := l.Daily[tier]; ok {
		return n
	}
	return l.Daily[Tier1]
}

type Reason string

const (
	ReasonRegistrationRequired Reason = "registrationRequired"
	ReasonSubscriptionRequired Reason = "subscriptionRequired"
	ReasonDailyLimitReached    Reason = "dailyLimitReached"
)

var ErrPolicyDenied = errors.New("usage policy denied")

// DeniedError carries the reason a creation was refused. It matches
// ErrPolicyDenied with errors.Is.
type DeniedError struct {
	Reason Reason
	Limit  int
}

func (e *DeniedError) Error() string {
	if e.Reason == ReasonDailyLimitReached {
		return fmt.Sprintf("%s: %s (%d per day)", ErrPolicyDenied, e.Reason, e.Limit)
	}
	return fmt.Sprintf("%s: %s", ErrPolicyDenied, e.Reason)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrPolicyDenied
}

// Today formats t as the ledger's date key.
func Today(t time.Time) string {
	return t.Format("2006-01-02")
}

// Evaluate checks whether account may create a story of the given kind.
// It never mutates the ledger.
func (l Limits) Evaluate(account Account, ledger Ledger, interactive bool, today string) error {
	if account.Status == StatusOwner {
		return nil
	}

	if interactive && account.Status != StatusSubscribed {
		return &DeniedError{Reason: ReasonSubscriptionRequired}
	}

	if !interactive {
		switch account.Status {
		case StatusGuest:
			if ledger.GuestSimpleCreations >= l.GuestSimple {
				return &DeniedError{Reason: ReasonRegistrationRequired, Limit: l.GuestSimple}
			}
		case StatusRegistered:
			if ledger.RegisteredSimpleCreations >= l.RegisteredSimple {
				return &DeniedError{Reason: ReasonSubscriptionRequired, Limit: l.RegisteredSimple}
			}
		}
	}

	if account.Status == StatusSubscribed {
		limit := l.DailyLimit(account.Tier)
		if ledger.DailyCount(today) >= limit {
			return &DeniedError{Reason: ReasonDailyLimitReached, Limit: limit}
		}
	}
	return nil
}

// Record applies one successful creation to the ledger. Exactly one counter
// moves; owners and interactive guests leave it untouched.
func Record(ledger Ledger, account Account, interactive bool, today string) Ledger {
	switch {
	case account.Status == StatusGuest && !interactive:
		ledger.GuestSimpleCreations++
	case account.Status == StatusRegistered && !interactive:
		ledger.RegisteredSimpleCreations++
	case account.Status == StatusSubscribed:
		ledger.Daily = Daily{Date: today, Count: ledger.DailyCount(today) + 1}
	}
	return ledger
}

// Evaluate applies the default limits.
func Evaluate(account Account, ledger Ledger, interactive bool, today string) error {
	return DefaultLimits().Evaluate(account, ledger, interactive, today)
}
