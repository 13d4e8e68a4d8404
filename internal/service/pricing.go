package service

import (
	"context"
	"math"

	"fleetbook/internal/interval"
	"fleetbook/internal/repository"
)

// PricingTarget names what is being priced: a vehicle or a group.
type PricingTarget struct {
	VehicleID string
	GroupID   string
}

type Quote struct {
	DailyRate float64 `json:"daily_rate"`
	Days      int     `json:"days"`
	Total     float64 `json:"total"`
}

type Pricer interface {
	Quote(ctx context.Context, target PricingTarget, iv interval.Interval) (Quote, error)
}

// DailyRatePricer multiplies the per-day price by the number of days. Groups are
// priced by their primary unit.
type DailyRatePricer struct {
	store repository.Store
}

func NewDailyRatePricer(store repository.Store) *DailyRatePricer {
	return &DailyRatePricer{store: store}
}

func (p *DailyRatePricer) Quote(ctx context.Context, target PricingTarget, iv interval.Interval) (Quote, error) {
	var rate float64
	err := p.store.View(ctx, func(repo repository.Repository) error {
		if target.VehicleID != "" {
			v, err := repo.GetVehicle(ctx, target.VehicleID)
			if err != nil {
				return err
			}
			rate = v.PricePerDay
			return nil
		}
		if _, err := repo.GetGroup(ctx, target.GroupID); err != nil {
			return err
		}
		members, err := repo.ListGroupMembers(ctx, target.GroupID, false)
		if err != nil {
			return err
		}
		for i, m := range members {
			if m.IsGroupPrimary || i == 0 {
				rate = m.PricePerDay
			}
			if m.IsGroupPrimary {
				break
			}
		}
		return nil
	})
	if err != nil {
		return Quote{}, err
	}
	days := iv.Days()
	return Quote{DailyRate: rate, Days: days, Total: roundCents(rate * float64(days))}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// priceMatches compares a client-side total with the computed one.
func priceMatches(expected, actual, tolerance float64) bool {
	return math.Abs(expected-actual) <= tolerance+1e-9
}
