package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsReporter logs room and participant counts on a fixed interval.
type StatsReporter struct {
	rooms    *RoomService
	interval time.Duration
}

func NewStatsReporter(rooms *RoomService, interval time.Duration) *StatsReporter {
	return &StatsReporter{
		rooms:    rooms,
		interval: interval,
	}
}

// Run blocks until ctx is done. A non-positive interval disables reporting.
func (r *StatsReporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := r.rooms.Stats()
			log.Info().Int("rooms", st.Rooms).Int("participants", st.Participants).Msg("Stats")
		}
	}
}
