package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/topi314/campus-events/internal/xquery"
	"github.com/topi314/campus-events/internal/xtime"
	"github.com/topi314/campus-events/server/auth"
	"github.com/topi314/campus-events/server/database"
)

type calendarResponse struct {
	Month string        `json:"month"`
	Days  []calendarDay `json:"days"`
}

type calendarDay struct {
	Date   string          `json:"date"`
	Events []eventResponse `json:"events"`
}

func (h *handler) Calendar(w http.ResponseWriter, r *http.Request, _ auth.Session) {
	query := r.URL.Query()

	month, err := xtime.ParseMonth(query.Get("month"), time.Local)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	categories, err := parseCategories(xquery.ParseStringSlice(query, "category", nil))
	if err != nil {
		writeError(w, r, err)
		return
	}

	from, to := xtime.MonthRange(month)
	events, err := h.DB.GetEvents(r.Context(), database.EventFilter{
		Categories: categories,
		From:       from,
		To:         to,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// events are sorted by start time, so days come out in order
	now := time.Now()
	days := make([]calendarDay, 0)
	for _, e := range events {
		date := e.StartTime.In(time.Local).Format(time.DateOnly)
		if len(days) == 0 || days[len(days)-1].Date != date {
			days = append(days, calendarDay{Date: date})
		}
		last := &days[len(days)-1]
		last.Events = append(last.Events, newEventResponse(e, now))
	}

	writeJSON(w, r, http.StatusOK, calendarResponse{
		Month: xtime.MonthKey(month),
		Days:  days,
	})
}
