package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fairytales/internal/domain/story"

	"github.com/sirupsen/logrus"
)

// Gate binds the policy to one account and its ledger store.
type Gate struct {
	account Account
	store   Store
	limits  Limits
	now     func() time.Time
	log     *logrus.Entry
}

func NewGate(account Account, store Store, limits Limits) *Gate {
	return &Gate{
		account: account,
		store:   store,
		limits:  limits,
		now:     time.Now,
		log:     logrus.WithFields(logrus.Fields{"component": "usage", "account": account.ID}),
	}
}

func (g *Gate) Account() Account {
	return g.account
}

// Check evaluates the policy against the stored ledger.
func (g *Gate) Check(ctx context.Context, interactive bool) error {
	ledger, err := g.store.Load(ctx, g.account.ID)
	if err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}
	if err := g.limits.Evaluate(g.account, ledger, interactive, Today(g.now())); err != nil {
		g.log.WithField("interactive", interactive).Info(err.Error())
		return err
	}
	return nil
}

// Record counts one successful creation. The limit is evaluated again inside
// the store update; a creation over the cap is denied and not counted.
func (g *Gate) Record(ctx context.Context, interactive bool) error {
	today := Today(g.now())
	ledger, err := g.store.Update(ctx, g.account.ID, func(l *Ledger) error {
		if err := g.limits.Evaluate(g.account, *l, interactive, today); err != nil {
			return err
		}
		*l = Record(*l, g.account, interactive, today)
		return nil
	})
	if errors.Is(err, ErrPolicyDenied) {
		g.log.WithField("interactive", interactive).Warn("Creation over the limit was not counted")
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	g.log.WithFields(logrus.Fields{
		"guest":      ledger.GuestSimpleCreations,
		"registered": ledger.RegisteredSimpleCreations,
		"daily":      ledger.Daily.Count,
	}).Debug("Usage recorded")
	return nil
}

// Ledger returns the stored counters.
func (g *Gate) Ledger(ctx context.Context) (Ledger, error) {
	return g.store.Load(ctx, g.account.ID)
}

// Remaining reports how many more creations of the kind are allowed;
// -1 means unlimited.
func (g *Gate) Remaining(ctx context.Context, interactive bool) (int, error) {
	ledger, err := g.Ledger(ctx)
	if err != nil {
		return 0, err
	}
	today := Today(g.now())
	switch {
	case g.account.Status == StatusOwner:
		return -1, nil
	case interactive && g.account.Status != StatusSubscribed:
		return 0, nil
	case g.account.Status == StatusGuest:
		return max(0, g.limits.GuestSimple-ledger.GuestSimpleCreations), nil
	case g.account.Status == StatusRegistered:
		return max(0, g.limits.RegisteredSimple-ledger.RegisteredSimpleCreations), nil
	default:
		return max(0, g.limits.DailyLimit(g.account.Tier)-ledger.DailyCount(today)), nil
	}
}

// VoiceFor returns the narrator voice the account is allowed to use. Only
// premium accounts pick their voice; everyone else hears the default.
func VoiceFor(account Account, requested string) string {
	if account.CanUsePremium() && story.IsKnownVoice(requested) {
		return requested
	}
	return story.DefaultVoice
}
