package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"
)

// errReadOnly is returned by write methods called from View.
var errReadOnly = errors.New("write attempted in read-only unit of work")

// MemoryStore keeps everything in process. Update holds an exclusive lock and works on
// a copy of the state that replaces the live one only when fn succeeds, which gives the
// same all-or-nothing behaviour as a serializable transaction.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) View(ctx context.Context, fn func(Repository) error) error {
	if err := ctx.Err(); err != nil {
		return mapError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memRepo{st: s.state, readOnly: true})
}

func (s *MemoryStore) Update(ctx context.Context, fn func(Repository) error) error {
	if err := ctx.Err(); err != nil {
		return mapError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	if err := fn(&memRepo{st: draft}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return mapError(err)
	}
	s.state = draft
	return nil
}

type memState struct {
	vehicles      map[string]db.Vehicle
	groups        map[string]db.VehicleGroup
	reservations  map[string]db.Reservation
	idemKeys      map[string]string
	audits        []db.OverrideAudit
	blocks        map[string]db.ManualBlock
	blocked       map[string]map[string]db.BlockedDay
	paymentEvents map[string]db.PaymentEvent
	accounts      map[string]db.Account
}

func newMemState() *memState {
	return &memState{
		vehicles:      map[string]db.Vehicle{},
		groups:        map[string]db.VehicleGroup{},
		reservations:  map[string]db.Reservation{},
		idemKeys:      map[string]string{},
		blocks:        map[string]db.ManualBlock{},
		blocked:       map[string]map[string]db.BlockedDay{},
		paymentEvents: map[string]db.PaymentEvent{},
		accounts:      map[string]db.Account{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *memState) clone() *memState {
	c := &memState{
		vehicles:      copyMap(st.vehicles),
		groups:        copyMap(st.groups),
		reservations:  copyMap(st.reservations),
		idemKeys:      copyMap(st.idemKeys),
		audits:        append([]db.OverrideAudit(nil), st.audits...),
		blocks:        copyMap(st.blocks),
		blocked:       make(map[string]map[string]db.BlockedDay, len(st.blocked)),
		paymentEvents: copyMap(st.paymentEvents),
		accounts:      copyMap(st.accounts),
	}
	for vehicleID, days := range st.blocked {
		cd := make(map[string]db.BlockedDay, len(days))
		for k, d := range days {
			d.Sources = append([]string(nil), d.Sources...)
			cd[k] = d
		}
		c.blocked[vehicleID] = cd
	}
	return c
}

type memRepo struct {
	st       *memState
	readOnly bool
}

func (r *memRepo) writable() error {
	if r.readOnly {
		return errReadOnly
	}
	return nil
}

func (r *memRepo) GetVehicle(ctx context.Context, id string) (*db.Vehicle, error) {
	v, ok := r.st.vehicles[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("vehicle %s not found", id))
	}
	return &v, nil
}

// Row locks are implicit: Update already holds the store lock.
func (r *memRepo) LockVehicle(ctx context.Context, id string) (*db.Vehicle, error) {
	return r.GetVehicle(ctx, id)
}

func (r *memRepo) LockVehicles(ctx context.Context, ids []string) ([]db.Vehicle, error) {
	var out []db.Vehicle
	for _, id := range ids {
		if v, ok := r.st.vehicles[id]; ok {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) InsertVehicle(ctx context.Context, v *db.Vehicle) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.st.vehicles[v.ID]; ok {
		return apperrors.Conflict("duplicate record")
	}
	r.st.vehicles[v.ID] = *v
	return nil
}

func (r *memRepo) UpdateVehicle(ctx context.Context, v *db.Vehicle) error {
	if err := r.writable(); err != nil {
		return err
	}
	cur, ok := r.st.vehicles[v.ID]
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("vehicle %s not found", v.ID))
	}
	cur.Name = v.Name
	cur.IsAvailable = v.IsAvailable
	cur.PricePerDay = v.PricePerDay
	cur.GroupID = v.GroupID
	cur.GroupIndex = v.GroupIndex
	cur.IsGroupPrimary = v.IsGroupPrimary
	cur.DisplayID = v.DisplayID
	cur.UpdatedAt = v.UpdatedAt
	r.st.vehicles[v.ID] = cur
	return nil
}

func (r *memRepo) GetGroup(ctx context.Context, id string) (*db.VehicleGroup, error) {
	g, ok := r.st.groups[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("group %s not found", id))
	}
	return &g, nil
}

func (r *memRepo) InsertGroup(ctx context.Context, g *db.VehicleGroup) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.st.groups[g.ID]; ok {
		return apperrors.Conflict("duplicate record")
	}
	r.st.groups[g.ID] = *g
	return nil
}

func (r *memRepo) DeleteGroup(ctx context.Context, id string) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.st.groups[id]; !ok {
		return apperrors.NotFound(fmt.Sprintf("group %s not found", id))
	}
	delete(r.st.groups, id)
	return nil
}

func (r *memRepo) ListGroupMembers(ctx context.Context, groupID string, lock bool) ([]db.Vehicle, error) {
	var out []db.Vehicle
	for _, v := range r.st.vehicles {
		if v.GroupID != nil && *v.GroupID == groupID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupIndex < out[j].GroupIndex })
	return out, nil
}

func (r *memRepo) InsertReservation(ctx context.Context, res *db.Reservation) error {
	if err := r.writable(); err != nil {
		return err
	}
	if res.IdempotencyKey != nil {
		if _, ok := r.st.idemKeys[*res.IdempotencyKey]; ok {
			return ErrDuplicateIdempotencyKey
		}
	}
	if res.IsActive() {
		iv := res.Interval()
		for _, other := range r.st.reservations {
			if other.VehicleID == res.VehicleID && other.IsActive() && other.Interval().Overlaps(iv) {
				return apperrors.Unavailable()
			}
		}
	}
	r.st.reservations[res.ID] = *res
	if res.IdempotencyKey != nil {
		r.st.idemKeys[*res.IdempotencyKey] = res.ID
	}
	return nil
}

func (r *memRepo) GetReservation(ctx context.Context, id string, lock bool) (*db.Reservation, error) {
	res, ok := r.st.reservations[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("reservation %s not found", id))
	}
	return &res, nil
}

func (r *memRepo) GetReservationByIdempotencyKey(ctx context.Context, key string) (*db.Reservation, error) {
	id, ok := r.st.idemKeys[key]
	if !ok {
		return nil, apperrors.NotFound("no reservation for idempotency key")
	}
	return r.GetReservation(ctx, id, false)
}

func (r *memRepo) UpdateReservation(ctx context.Context, res *db.Reservation) error {
	if err := r.writable(); err != nil {
		return err
	}
	cur, ok := r.st.reservations[res.ID]
	if !ok {
		return apperrors.NotFound(fmt.Sprintf("reservation %s not found", res.ID))
	}
	if res.IsActive() && !cur.IsActive() {
		iv := cur.Interval()
		for _, other := range r.st.reservations {
			if other.ID != cur.ID && other.VehicleID == cur.VehicleID && other.IsActive() && other.Interval().Overlaps(iv) {
				return apperrors.Unavailable()
			}
		}
	}
	cur.Status = res.Status
	cur.PaymentStatus = res.PaymentStatus
	cur.DepositPaid = res.DepositPaid
	cur.AutoCancelOverride = res.AutoCancelOverride
	cur.CancelledBy = res.CancelledBy
	cur.CancelledAt = res.CancelledAt
	cur.UpdatedAt = res.UpdatedAt
	r.st.reservations[res.ID] = cur
	return nil
}

func (r *memRepo) filterReservations(keep func(db.Reservation) bool) []db.Reservation {
	var out []db.Reservation
	for _, res := range r.st.reservations {
		if keep(res) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memRepo) ListActiveReservations(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.Reservation, error) {
	return r.filterReservations(func(res db.Reservation) bool {
		return res.VehicleID == vehicleID && res.IsActive() && res.Interval().Overlaps(iv)
	}), nil
}

func (r *memRepo) ListCalendarReservations(ctx context.Context, vehicleID string) ([]db.Reservation, error) {
	return r.filterReservations(func(res db.Reservation) bool {
		return res.VehicleID == vehicleID && res.IsActive()
	}), nil
}

func (r *memRepo) ListOverdueReservationIDs(ctx context.Context, deadline time.Time, afterID string, limit int) ([]string, error) {
	var ids []string
	for _, res := range r.st.reservations {
		if res.Status == db.StatusPending && !res.AutoCancelOverride && res.PickupAt.Before(deadline) && res.ID > afterID {
			ids = append(ids, res.ID)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *memRepo) ListFinishedReservationIDs(ctx context.Context, today time.Time) ([]string, error) {
	var ids []string
	for _, res := range r.st.reservations {
		if res.Status == db.StatusConfirmed && !res.EndDate.After(today) {
			ids = append(ids, res.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memRepo) CountReservationsForVehicles(ctx context.Context, vehicleIDs []string) (int, error) {
	set := make(map[string]bool, len(vehicleIDs))
	for _, id := range vehicleIDs {
		set[id] = true
	}
	n := 0
	for _, res := range r.st.reservations {
		if set[res.VehicleID] {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ListReservations(ctx context.Context, f ReservationFilter) ([]db.Reservation, int64, error) {
	all := r.filterReservations(func(res db.Reservation) bool {
		if f.ShopID != "" && res.ShopID != f.ShopID {
			return false
		}
		if f.VehicleID != "" && res.VehicleID != f.VehicleID {
			return false
		}
		if f.Status != "" && res.Status != f.Status {
			return false
		}
		if f.Date != nil && !res.Interval().Contains(*f.Date) {
			return false
		}
		return true
	})
	// newest first, matching the SQL listing
	sort.SliceStable(all, func(i, j int) bool { return all[i].StartDate.After(all[j].StartDate) })

	total := int64(len(all))
	if f.Offset > 0 {
		if f.Offset >= len(all) {
			return nil, total, nil
		}
		all = all[f.Offset:]
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r *memRepo) InsertOverrideAudit(ctx context.Context, a *db.OverrideAudit) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.st.audits = append(r.st.audits, *a)
	return nil
}

func (r *memRepo) ListOverrideAudits(ctx context.Context, reservationID string) ([]db.OverrideAudit, error) {
	var out []db.OverrideAudit
	for _, a := range r.st.audits {
		if a.ReservationID == reservationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) InsertManualBlock(ctx context.Context, b *db.ManualBlock) error {
	if err := r.writable(); err != nil {
		return err
	}
	r.st.blocks[b.ID] = *b
	return nil
}

func (r *memRepo) GetManualBlock(ctx context.Context, id string) (*db.ManualBlock, error) {
	b, ok := r.st.blocks[id]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("block %s not found", id))
	}
	return &b, nil
}

func (r *memRepo) DeleteManualBlock(ctx context.Context, id string) error {
	if err := r.writable(); err != nil {
		return err
	}
	if _, ok := r.st.blocks[id]; !ok {
		return apperrors.NotFound(fmt.Sprintf("block %s not found", id))
	}
	delete(r.st.blocks, id)
	return nil
}

func (r *memRepo) ListManualBlocks(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.ManualBlock, error) {
	var out []db.ManualBlock
	for _, b := range r.st.blocks {
		if b.VehicleID == vehicleID && b.Interval().Overlaps(iv) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *memRepo) UpsertBlockedDays(ctx context.Context, vehicleID string, days []time.Time, source, reason string) error {
	if err := r.writable(); err != nil {
		return err
	}
	cal, ok := r.st.blocked[vehicleID]
	if !ok {
		cal = map[string]db.BlockedDay{}
		r.st.blocked[vehicleID] = cal
	}
	for _, d := range days {
		key := d.Format(interval.DateLayout)
		row, exists := cal[key]
		if !exists {
			cal[key] = db.BlockedDay{VehicleID: vehicleID, Day: interval.Day(d), Reason: reason, Sources: []string{source}}
			continue
		}
		if !containsString(row.Sources, source) {
			row.Sources = append(row.Sources, source)
		}
		if reason == db.BlockReasonBooking {
			row.Reason = db.BlockReasonBooking
		}
		cal[key] = row
	}
	return nil
}

func (r *memRepo) RemoveBlockedDaySource(ctx context.Context, vehicleID, source string) error {
	if err := r.writable(); err != nil {
		return err
	}
	cal := r.st.blocked[vehicleID]
	for key, row := range cal {
		if !containsString(row.Sources, source) {
			continue
		}
		kept := row.Sources[:0]
		for _, s := range row.Sources {
			if s != source {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(cal, key)
			continue
		}
		row.Sources = kept
		row.Reason = db.BlockReasonManual
		for _, s := range kept {
			if strings.HasPrefix(s, "reservation:") {
				row.Reason = db.BlockReasonBooking
				break
			}
		}
		cal[key] = row
	}
	return nil
}

func (r *memRepo) DeleteBlockedDays(ctx context.Context, vehicleID string) error {
	if err := r.writable(); err != nil {
		return err
	}
	delete(r.st.blocked, vehicleID)
	return nil
}

func (r *memRepo) ListBlockedDays(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.BlockedDay, error) {
	var out []db.BlockedDay
	for _, row := range r.st.blocked[vehicleID] {
		if iv.Contains(row.Day) {
			row.Sources = append([]string(nil), row.Sources...)
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (r *memRepo) MarkPaymentEventProcessed(ctx context.Context, ev *db.PaymentEvent) (bool, error) {
	if err := r.writable(); err != nil {
		return false, err
	}
	if _, ok := r.st.paymentEvents[ev.EventID]; ok {
		return false, nil
	}
	r.st.paymentEvents[ev.EventID] = *ev
	return true, nil
}

func (r *memRepo) GetAccountByEmail(ctx context.Context, email string) (*db.Account, error) {
	a, ok := r.st.accounts[strings.ToLower(email)]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("account %s not found", email))
	}
	return &a, nil
}

func (r *memRepo) InsertAccount(ctx context.Context, a *db.Account, password string) error {
	if err := r.writable(); err != nil {
		return err
	}
	key := strings.ToLower(a.Email)
	if _, ok := r.st.accounts[key]; ok {
		return apperrors.Conflict("duplicate record")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	r.st.accounts[key] = *a
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
