package page

import (
	"context"
	"log/slog"
	"sync"

	"github.com/importdesk/importdesk/internal/model"
)

// Home shows row counts and last import times for both data sources.
type Home struct {
	toasts
	backend StatsBackend

	MySQL   model.Stats
	MongoDB model.Stats
	Loading bool
}

// NewHome creates the home page view-model.
func NewHome(b StatsBackend) *Home {
	return &Home{backend: b}
}

// Load fetches both sources concurrently. A failing source falls back to
// empty stats without affecting the other.
func (h *Home) Load(ctx context.Context) {
	h.Loading = true
	defer func() { h.Loading = false }()

	var (
		wg           sync.WaitGroup
		mysql, mongo model.Stats
	)
	fetch := func(source model.DataSource, dst *model.Stats) {
		defer wg.Done()
		s, err := h.backend.Stats(ctx, source)
		if err != nil {
			slog.Error("load stats", "source", source, "error", err)
			return
		}
		*dst = *s
	}
	wg.Add(2)
	go fetch(model.SourceMySQL, &mysql)
	go fetch(model.SourceMongoDB, &mongo)
	wg.Wait()

	h.MySQL = mysql
	h.MongoDB = mongo
}
