package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/repository"
	"fleetbook/internal/utils"

	"go.uber.org/zap"
)

type ConvertGroupRequest struct {
	ShopID      string   `json:"shop_id"`
	Name        string   `json:"name"`
	NamePattern string   `json:"name_pattern"`
	VehicleIDs  []string `json:"vehicle_ids"`
}

type GroupResult struct {
	Group   *db.VehicleGroup `json:"group"`
	Members []db.Vehicle     `json:"members"`
}

func (r *ConvertGroupRequest) validate() ([]string, error) {
	if strings.TrimSpace(r.ShopID) == "" {
		return nil, apperrors.Validation("shop_id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return nil, apperrors.Validation("group name is required")
	}
	seen := make(map[string]bool, len(r.VehicleIDs))
	ids := make([]string, 0, len(r.VehicleIDs))
	for _, id := range r.VehicleIDs {
		if seen[id] {
			return nil, apperrors.Validation(fmt.Sprintf("vehicle %s listed twice", id))
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, apperrors.Validation("a group needs at least two vehicles")
	}
	return ids, nil
}

// ConvertToGroup pools existing vehicles of one shop into an interchangeable group.
// Members are ordered by creation time, numbered from 1, and the first becomes the
// primary unit. Either every vehicle joins or none does.
func (s *ReservationService) ConvertToGroup(ctx context.Context, req ConvertGroupRequest, actor auth.Actor) (*GroupResult, error) {
	ids, err := req.validate()
	if err != nil {
		return nil, err
	}
	if !s.authz.CanManageShop(actor, req.ShopID) {
		return nil, apperrors.Forbidden("not allowed to manage this shop")
	}

	var result *GroupResult
	err = s.store.Update(ctx, func(repo repository.Repository) error {
		vehicles, err := repo.LockVehicles(ctx, ids)
		if err != nil {
			return err
		}
		if len(vehicles) != len(ids) {
			return apperrors.NotFound(fmt.Sprintf("vehicle %s not found", missingID(ids, vehicles)))
		}

		first := vehicles[0]
		for _, v := range vehicles {
			if v.ShopID != req.ShopID {
				return apperrors.Validation(fmt.Sprintf("vehicle %s belongs to another shop", v.ID))
			}
			if v.InGroup() {
				return apperrors.Validation(fmt.Sprintf("vehicle %s is already in a group", v.ID))
			}
			if !utils.SameVehicleKind(first.Type, first.Category, v.Type, v.Category) {
				return apperrors.Validation("all vehicles in a group must share type and category")
			}
		}

		sort.Slice(vehicles, func(i, j int) bool {
			if !vehicles[i].CreatedAt.Equal(vehicles[j].CreatedAt) {
				return vehicles[i].CreatedAt.Before(vehicles[j].CreatedAt)
			}
			return vehicles[i].ID < vehicles[j].ID
		})

		now := s.now().UTC()
		group := &db.VehicleGroup{
			ID:            s.newID(),
			ShopID:        req.ShopID,
			Name:          strings.TrimSpace(req.Name),
			NamePattern:   strings.TrimSpace(req.NamePattern),
			TotalQuantity: len(vehicles),
			CreatedAt:     now,
		}
		if err := repo.InsertGroup(ctx, group); err != nil {
			return err
		}

		for i := range vehicles {
			v := &vehicles[i]
			groupID := group.ID
			v.GroupID = &groupID
			v.GroupIndex = i + 1
			v.IsGroupPrimary = i == 0
			v.DisplayID = utils.GroupDisplayID(group.NamePattern, group.Name, v.GroupIndex)
			v.UpdatedAt = now
			if err := repo.UpdateVehicle(ctx, v); err != nil {
				return err
			}
		}
		result = &GroupResult{Group: group, Members: vehicles}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("vehicles grouped", zap.String("group_id", result.Group.ID), zap.Int("units", len(result.Members)))
	return result, nil
}

// DissolveGroup turns a group back into standalone vehicles. Membership is frozen
// once any reservation exists against a member.
func (s *ReservationService) DissolveGroup(ctx context.Context, groupID string, actor auth.Actor) error {
	return s.store.Update(ctx, func(repo repository.Repository) error {
		group, err := repo.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if !s.authz.CanManageShop(actor, group.ShopID) {
			return apperrors.Forbidden("not allowed to manage this shop")
		}
		members, err := repo.ListGroupMembers(ctx, groupID, true)
		if err != nil {
			return err
		}
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = m.ID
		}
		n, err := repo.CountReservationsForVehicles(ctx, ids)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Conflict("group has reservations and cannot be dissolved")
		}

		now := s.now().UTC()
		for i := range members {
			m := &members[i]
			m.GroupID = nil
			m.GroupIndex = 0
			m.IsGroupPrimary = false
			m.DisplayID = ""
			m.UpdatedAt = now
			if err := repo.UpdateVehicle(ctx, m); err != nil {
				return err
			}
		}
		return repo.DeleteGroup(ctx, groupID)
	})
}

func (s *ReservationService) GetGroup(ctx context.Context, groupID string) (*GroupResult, error) {
	result := &GroupResult{}
	err := s.store.View(ctx, func(repo repository.Repository) error {
		var err error
		if result.Group, err = repo.GetGroup(ctx, groupID); err != nil {
			return err
		}
		result.Members, err = repo.ListGroupMembers(ctx, groupID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func missingID(ids []string, found []db.Vehicle) string {
	present := make(map[string]bool, len(found))
	for _, v := range found {
		present[v.ID] = true
	}
	for _, id := range ids {
		if !present[id] {
			return id
		}
	}
	return ""
}
