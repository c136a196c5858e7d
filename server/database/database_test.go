package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/topi314/campus-events/internal/attendance"
)

// Malformed ids never reach the connection, so a zero Database is enough.
func TestMalformedIDs(t *testing.T) {
	ctx := context.Background()
	d := &Database{}
	eventID := uuid.NewString()

	_, err := d.GetEvent(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.GetAttendee(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Register(ctx, "abc", uuid.NewString(), time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Register(ctx, eventID, "abc", time.Now())
	assert.ErrorIs(t, err, ErrNotAStudent)

	_, err = d.AddAttendee(ctx, "abc", attendance.Details{Email: "a@campus.edu"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.CheckIn(ctx, eventID, "abc")
	assert.ErrorIs(t, err, attendance.ErrAttendeeNotFound)

	_, err = d.MarkNoShow(ctx, "abc", uuid.NewString())
	assert.ErrorIs(t, err, attendance.ErrAttendeeNotFound)

	roster, err := d.GetRoster(ctx, "abc")
	assert.NoError(t, err)
	assert.Empty(t, roster)

	marked, err := d.MarkPendingNoShows(ctx, "abc")
	assert.NoError(t, err)
	assert.Zero(t, marked)
}

func TestValidID(t *testing.T) {
	assert.True(t, validID(uuid.NewString()))
	assert.False(t, validID(""))
	assert.False(t, validID("abc"))
	assert.False(t, validID("' OR 1=1 --"))
}
