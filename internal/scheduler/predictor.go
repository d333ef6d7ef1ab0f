package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/satwatch/satwatch/internal/predict"
	"github.com/satwatch/satwatch/internal/tle"
)

// StorePredictor binds the element store and the pass predictor into the
// Predictor the scheduler consumes.
type StorePredictor struct {
	store   *tle.Store
	obs     predict.Observer
	minElev float64
	log     *slog.Logger
}

// NewStorePredictor creates a predictor for one fixed observer.
func NewStorePredictor(store *tle.Store, obs predict.Observer, minElev float64, logger *slog.Logger) *StorePredictor {
	return &StorePredictor{store: store, obs: obs, minElev: minElev, log: logger}
}

// Passes loads current elements and predicts every pass inside the window.
func (p *StorePredictor) Passes(start, end time.Time) ([]predict.Pass, error) {
	entries, err := p.store.Entries()
	if err != nil {
		return nil, fmt.Errorf("loading elements: %w", err)
	}
	return predict.Predict(p.obs, entries, start, end, p.minElev, p.log), nil
}

// Refresh forces an element refetch and reports how many satellites the new
// catalog holds.
func (p *StorePredictor) Refresh() (int, error) {
	entries, err := p.store.ForceRefresh()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// SatelliteName looks up the catalog name for an ID.
func (p *StorePredictor) SatelliteName(catalogID int) (string, bool) {
	entries, err := p.store.Entries()
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.CatalogID == catalogID {
			return e.Name, true
		}
	}
	return "", false
}
