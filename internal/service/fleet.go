package service

import (
	"context"
	"strings"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"
	"fleetbook/internal/repository"
)

type CreateVehicleRequest struct {
	ShopID      string  `json:"shop_id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	PricePerDay float64 `json:"price_per_day"`
}

func (s *ReservationService) CreateVehicle(ctx context.Context, req CreateVehicleRequest, actor auth.Actor) (*db.Vehicle, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Type) == "" {
		return nil, apperrors.Validation("name and type are required")
	}
	if req.PricePerDay < 0 {
		return nil, apperrors.Validation("price_per_day must not be negative")
	}
	if actor.Role == auth.RoleShop && req.ShopID == "" {
		req.ShopID = actor.ShopID
	}
	if !s.authz.CanManageShop(actor, req.ShopID) {
		return nil, apperrors.Forbidden("not allowed to manage this shop")
	}

	now := s.now().UTC()
	v := &db.Vehicle{
		ID:          s.newID(),
		ShopID:      req.ShopID,
		Name:        strings.TrimSpace(req.Name),
		Type:        strings.TrimSpace(req.Type),
		Category:    strings.TrimSpace(req.Category),
		IsAvailable: true,
		PricePerDay: req.PricePerDay,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		return repo.InsertVehicle(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *ReservationService) GetVehicle(ctx context.Context, vehicleID string) (*db.Vehicle, error) {
	var v *db.Vehicle
	err := s.store.View(ctx, func(repo repository.Repository) error {
		var err error
		v, err = repo.GetVehicle(ctx, vehicleID)
		return err
	})
	return v, err
}

// SetAvailability switches a vehicle on or off. A switched-off unit keeps its
// reservations but takes no new ones.
func (s *ReservationService) SetAvailability(ctx context.Context, vehicleID string, available bool, actor auth.Actor) (*db.Vehicle, error) {
	var v *db.Vehicle
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		var err error
		v, err = repo.LockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if !s.authz.CanManageShop(actor, v.ShopID) {
			return apperrors.Forbidden("not allowed to manage this vehicle")
		}
		if v.IsAvailable == available {
			return nil
		}
		v.IsAvailable = available
		v.UpdatedAt = s.now().UTC()
		return repo.UpdateVehicle(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// BlockDates takes a vehicle out of service for a range. Days already held by an
// active reservation cannot be blocked.
func (s *ReservationService) BlockDates(ctx context.Context, vehicleID string, iv interval.Interval, reason string, actor auth.Actor) (*db.ManualBlock, error) {
	if err := validateInterval(iv); err != nil {
		return nil, err
	}
	var block *db.ManualBlock
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		v, err := repo.LockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if !s.authz.CanManageShop(actor, v.ShopID) {
			return apperrors.Forbidden("not allowed to manage this vehicle")
		}
		active, err := repo.ListActiveReservations(ctx, vehicleID, iv)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return apperrors.Conflict("dates overlap an active reservation").WithDetail("reservation_id", active[0].ID)
		}

		block = &db.ManualBlock{
			ID:        s.newID(),
			VehicleID: vehicleID,
			StartDate: iv.Start,
			EndDate:   iv.End,
			Reason:    strings.TrimSpace(reason),
			CreatedBy: actor.ID,
			CreatedAt: s.now().UTC(),
		}
		if err := repo.InsertManualBlock(ctx, block); err != nil {
			return err
		}
		return s.calendar.BlockManual(ctx, repo, block)
	})
	if err != nil {
		return nil, err
	}
	s.calendar.Invalidate(ctx, vehicleID)
	return block, nil
}

func (s *ReservationService) UnblockDates(ctx context.Context, vehicleID, blockID string, actor auth.Actor) error {
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		block, err := repo.GetManualBlock(ctx, blockID)
		if err != nil {
			return err
		}
		if block.VehicleID != vehicleID {
			return apperrors.NotFound("block not found on this vehicle")
		}
		v, err := repo.LockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if !s.authz.CanManageShop(actor, v.ShopID) {
			return apperrors.Forbidden("not allowed to manage this vehicle")
		}
		if err := repo.DeleteManualBlock(ctx, blockID); err != nil {
			return err
		}
		return s.calendar.UnblockManual(ctx, repo, block)
	})
	if err != nil {
		return err
	}
	s.calendar.Invalidate(ctx, vehicleID)
	return nil
}
