package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/topi314/campus-events/internal/attendance"
	"github.com/topi314/campus-events/internal/xtime"
	"github.com/topi314/campus-events/server/database"
	"github.com/topi314/campus-events/server/database/memstore"
	"github.com/topi314/campus-events/server/notify"
)

func newWorkerServer(t *testing.T) (*Server, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	require.NoError(t, memstore.Seed(context.Background(), store))

	notifier, err := notify.New(notify.Config{})
	require.NoError(t, err)

	return &Server{
		Cfg: Config{
			Attendance: AttendanceConfig{
				AutoNoShow:  true,
				GracePeriod: xtime.Duration(time.Hour),
			},
		},
		DB:       store,
		Notifier: notifier,
		done:     make(chan struct{}),
	}, store
}

func summitRoster(t *testing.T, store *memstore.Store) []attendance.Attendee {
	t.Helper()

	events, err := store.GetEvents(context.Background(), database.EventFilter{Search: "Tech Innovation Summit"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	roster, err := store.GetRoster(context.Background(), events[0].ID)
	require.NoError(t, err)
	return roster
}

func TestSweepNoShowsRespectsGracePeriod(t *testing.T) {
	s, store := newWorkerServer(t)

	// the summit ends in about three hours
	s.doSweepNoShows(time.Now().Add(3 * time.Hour))
	assert.Equal(t, 5, attendance.Count(summitRoster(t, store)).Registered)
}

func TestSweepNoShows(t *testing.T) {
	s, store := newWorkerServer(t)

	s.doSweepNoShows(time.Now().Add(5 * time.Hour))

	roster := summitRoster(t, store)
	assert.Equal(t, attendance.Counts{Total: 15, CheckedIn: 8, NoShow: 7}, attendance.Count(roster))
	for _, a := range roster {
		assert.True(t, a.Valid(), a.Name)
	}

	// a second sweep has nothing left to do
	s.doSweepNoShows(time.Now().Add(5 * time.Hour))
	assert.Equal(t, 7, attendance.Count(summitRoster(t, store)).NoShow)
}

func TestSleepStops(t *testing.T) {
	s, _ := newWorkerServer(t)

	close(s.done)
	assert.False(t, s.sleep(time.Hour))
}
