package ledger

import (
	"context"

	"github.com/harborclinic/scheduling-agent/internal/scheduling"
)

// Store persists the full reservation record set. Implementations must make
// Save atomic: after a crash, a reader sees either the prior state or the
// new state, never a partial write. The ledger serializes all calls.
type Store interface {
	Load(ctx context.Context) ([]Reservation, error)
	Save(ctx context.Context, reservations []Reservation) error
}

// StoreSource adapts a Store into the slot calculator's read-only view of
// confirmed reservation windows.
type StoreSource struct {
	store Store
}

// NewStoreSource wraps a reservation store for the slot calculator.
func NewStoreSource(store Store) *StoreSource {
	if store == nil {
		panic("ledger: store cannot be nil")
	}
	return &StoreSource{store: store}
}

// ConfirmedWindows returns the [start, end) windows of every confirmed
// reservation on the date. Cancelled reservations free their cells.
func (s *StoreSource) ConfirmedWindows(ctx context.Context, date string) ([]scheduling.BookedWindow, error) {
	all, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	var windows []scheduling.BookedWindow
	for i := range all {
		r := &all[i]
		if r.Date != date || r.Status != StatusConfirmed {
			continue
		}
		iv, err := r.Window()
		if err != nil {
			return nil, err
		}
		windows = append(windows, scheduling.BookedWindow{
			BookingID: r.BookingID,
			Start:     iv.Start,
			End:       iv.End,
		})
	}
	return windows, nil
}

var _ scheduling.ReservationSource = (*StoreSource)(nil)
