package service

import (
	"context"
	"time"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"
	"fleetbook/internal/repository"
)

// Conflict sources.
const (
	ConflictReservation = "reservation"
	ConflictManualBlock = "manual_block"
)

// Conflict is one existing claim on a vehicle that overlaps the requested range.
type Conflict struct {
	Source    string    `json:"source"`
	ID        string    `json:"id"`
	Status    string    `json:"status,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type SingleAvailability struct {
	VehicleID string            `json:"vehicle_id"`
	Interval  interval.Interval `json:"interval"`
	Available bool              `json:"available"`
	Disabled  bool              `json:"disabled"`
	Conflicts []Conflict        `json:"conflicts"`
}

type OccupiedUnit struct {
	VehicleID         string     `json:"vehicle_id"`
	DisplayID         string     `json:"display_id"`
	GroupIndex        int        `json:"group_index"`
	Disabled          bool       `json:"disabled"`
	Conflicts         []Conflict `json:"conflicts"`
	NextAvailableDate *time.Time `json:"next_available_date"`
}

type GroupAvailability struct {
	GroupID          string            `json:"group_id"`
	Interval         interval.Interval `json:"interval"`
	TotalUnits       int               `json:"total_units"`
	AvailableUnits   int               `json:"available_units"`
	AvailableUnitIDs []string          `json:"available_unit_ids"`
	Occupied         []OccupiedUnit    `json:"occupied"`
}

// AvailabilityTarget selects a vehicle or a group; exactly one must be set.
type AvailabilityTarget struct {
	VehicleID string
	GroupID   string
}

type Availability struct {
	Single *SingleAvailability `json:"single,omitempty"`
	Group  *GroupAvailability  `json:"group,omitempty"`
}

func (t AvailabilityTarget) validate() error {
	if (t.VehicleID == "") == (t.GroupID == "") {
		return apperrors.Validation("exactly one of vehicle_id or group_id is required")
	}
	return nil
}

func validateInterval(iv interval.Interval) error {
	if !iv.Start.Before(iv.End) {
		return apperrors.Validation("start date must be before end date")
	}
	return nil
}

// CheckAvailability answers for either kind of target. Results are advisory: a
// booking made from them is re-checked under lock.
func (s *ReservationService) CheckAvailability(ctx context.Context, target AvailabilityTarget, iv interval.Interval) (*Availability, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	if target.VehicleID != "" {
		single, err := s.CheckSingle(ctx, target.VehicleID, iv)
		if err != nil {
			return nil, err
		}
		return &Availability{Single: single}, nil
	}
	group, err := s.CheckGroup(ctx, target.GroupID, iv)
	if err != nil {
		return nil, err
	}
	return &Availability{Group: group}, nil
}

func (s *ReservationService) CheckSingle(ctx context.Context, vehicleID string, iv interval.Interval) (*SingleAvailability, error) {
	if err := validateInterval(iv); err != nil {
		return nil, err
	}
	out := &SingleAvailability{VehicleID: vehicleID, Interval: iv}
	err := s.store.View(ctx, func(repo repository.Repository) error {
		v, err := repo.GetVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		out.Conflicts, err = liveConflicts(ctx, repo, v.ID, iv)
		if err != nil {
			return err
		}
		out.Disabled = !v.IsAvailable
		out.Available = v.IsAvailable && len(out.Conflicts) == 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ReservationService) CheckGroup(ctx context.Context, groupID string, iv interval.Interval) (*GroupAvailability, error) {
	if err := validateInterval(iv); err != nil {
		return nil, err
	}
	out := &GroupAvailability{GroupID: groupID, Interval: iv, AvailableUnitIDs: []string{}, Occupied: []OccupiedUnit{}}
	err := s.store.View(ctx, func(repo repository.Repository) error {
		g, err := repo.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		out.TotalUnits = g.TotalQuantity

		members, err := repo.ListGroupMembers(ctx, groupID, false)
		if err != nil {
			return err
		}
		for _, m := range members {
			conflicts, err := liveConflicts(ctx, repo, m.ID, iv)
			if err != nil {
				return err
			}
			if m.IsAvailable && len(conflicts) == 0 {
				out.AvailableUnitIDs = append(out.AvailableUnitIDs, m.ID)
				continue
			}
			unit := OccupiedUnit{
				VehicleID:  m.ID,
				DisplayID:  m.DisplayID,
				GroupIndex: m.GroupIndex,
				Disabled:   !m.IsAvailable,
				Conflicts:  conflicts,
			}
			if m.IsAvailable {
				next, err := nextAvailableDate(ctx, repo, m.ID, conflicts)
				if err != nil {
					return err
				}
				unit.NextAvailableDate = &next
			}
			out.Occupied = append(out.Occupied, unit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.AvailableUnits = len(out.AvailableUnitIDs)
	return out, nil
}

// liveConflicts reads the source-of-truth records: active reservations and manual
// blocks overlapping iv. Both allocation and availability use it.
func liveConflicts(ctx context.Context, repo repository.Repository, vehicleID string, iv interval.Interval) ([]Conflict, error) {
	reservations, err := repo.ListActiveReservations(ctx, vehicleID, iv)
	if err != nil {
		return nil, err
	}
	blocks, err := repo.ListManualBlocks(ctx, vehicleID, iv)
	if err != nil {
		return nil, err
	}
	conflicts := make([]Conflict, 0, len(reservations)+len(blocks))
	for _, r := range reservations {
		if !r.Interval().Overlaps(iv) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Source: ConflictReservation, ID: r.ID, Status: r.Status, StartDate: r.StartDate, EndDate: r.EndDate,
		})
	}
	for _, b := range blocks {
		if !b.Interval().Overlaps(iv) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Source: ConflictManualBlock, ID: b.ID, StartDate: b.StartDate, EndDate: b.EndDate,
		})
	}
	return conflicts, nil
}

// nextAvailableDate is the first day on or after the latest conflicting end that no
// active reservation or manual block covers. Back-to-back claims are followed.
func nextAvailableDate(ctx context.Context, repo repository.Repository, vehicleID string, conflicts []Conflict) (time.Time, error) {
	var candidate time.Time
	for _, c := range conflicts {
		if c.EndDate.After(candidate) {
			candidate = c.EndDate
		}
	}

	ahead := interval.From(candidate)
	reservations, err := repo.ListActiveReservations(ctx, vehicleID, ahead)
	if err != nil {
		return time.Time{}, err
	}
	blocks, err := repo.ListManualBlocks(ctx, vehicleID, ahead)
	if err != nil {
		return time.Time{}, err
	}

	spans := make([]interval.Interval, 0, len(reservations)+len(blocks))
	for _, r := range reservations {
		spans = append(spans, r.Interval())
	}
	for _, b := range blocks {
		spans = append(spans, b.Interval())
	}
	interval.Sort(spans)

	for _, sp := range spans {
		if sp.Contains(candidate) {
			candidate = sp.End
		}
	}
	return candidate, nil
}

func unitAvailable(ctx context.Context, repo repository.Repository, v *db.Vehicle, iv interval.Interval) (bool, error) {
	if !v.IsAvailable {
		return false, nil
	}
	conflicts, err := liveConflicts(ctx, repo, v.ID, iv)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}
