package attendance

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Details are the fields an organizer enters when adding an attendee by hand.
type Details struct {
	StudentID     string
	FirstName     string
	LastName      string
	Email         string
	StudentNumber string
}

// Roster tracks the attendees of a single event. It is not safe for
// concurrent use; callers serialize access.
type Roster struct {
	EventID string
	Points  int

	attendees []Attendee
	index     map[string]int
	now       func() time.Time
	newID     func() string
}

func NewRoster(eventID string, points int, attendees []Attendee) *Roster {
	r := &Roster{
		EventID:   eventID,
		Points:    points,
		attendees: make([]Attendee, 0, len(attendees)),
		index:     make(map[string]int, len(attendees)),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, a := range attendees {
		r.index[a.ID] = len(r.attendees)
		r.attendees = append(r.attendees, a)
	}
	return r
}

func (r *Roster) Len() int {
	return len(r.attendees)
}

func (r *Roster) Get(id string) (Attendee, bool) {
	i, ok := r.index[id]
	if !ok {
		return Attendee{}, false
	}
	return r.attendees[i], true
}

func (r *Roster) FindByStudentNumber(number string) (Attendee, bool) {
	for _, a := range r.attendees {
		if a.StudentNumber != "" && strings.EqualFold(a.StudentNumber, number) {
			return a, true
		}
	}
	return Attendee{}, false
}

// Attendees returns a copy of the roster in insertion order.
func (r *Roster) Attendees() []Attendee {
	return slices.Clone(r.attendees)
}

func (r *Roster) MarkCheckedIn(id string) (Attendee, bool, error) {
	i, ok := r.index[id]
	if !ok {
		return Attendee{}, false, ErrAttendeeNotFound
	}
	changed := r.attendees[i].CheckIn(r.now(), r.Points)
	return r.attendees[i], changed, nil
}

func (r *Roster) MarkNoShow(id string) (Attendee, bool, error) {
	i, ok := r.index[id]
	if !ok {
		return Attendee{}, false, ErrAttendeeNotFound
	}
	changed, err := r.attendees[i].MarkNoShow()
	if err != nil {
		return r.attendees[i], false, err
	}
	return r.attendees[i], changed, nil
}

func (r *Roster) AddAttendee(d Details) Attendee {
	a := Attendee{
		ID:            r.newID(),
		StudentID:     d.StudentID,
		Name:          strings.TrimSpace(d.FirstName + " " + d.LastName),
		Email:         d.Email,
		StudentNumber: d.StudentNumber,
		RegisteredAt:  r.now(),
		Status:        StatusRegistered,
	}
	r.index[a.ID] = len(r.attendees)
	r.attendees = append(r.attendees, a)
	return a
}

func (r *Roster) Filter(f Filter) []Attendee {
	return f.Apply(r.attendees)
}

type Counts struct {
	Total      int `json:"total"`
	Registered int `json:"registered"`
	CheckedIn  int `json:"checked_in"`
	NoShow     int `json:"no_show"`
}

func (r *Roster) Counts() Counts {
	return Count(r.attendees)
}

func Count(attendees []Attendee) Counts {
	c := Counts{Total: len(attendees)}
	for _, a := range attendees {
		switch a.Status {
		case StatusRegistered:
			c.Registered++
		case StatusCheckedIn:
			c.CheckedIn++
		case StatusNoShow:
			c.NoShow++
		}
	}
	return c
}

// Filter selects attendees by status and a free text search.
// An empty Status matches every status.
type Filter struct {
	Search string
	Status Status
}

// ParseFilter accepts "all" or an empty status as no status filter.
func ParseFilter(search string, status string) (Filter, error) {
	f := Filter{Search: strings.TrimSpace(search)}
	if status == "" || status == "all" {
		return f, nil
	}
	s, err := ParseStatus(status)
	if err != nil {
		return Filter{}, err
	}
	f.Status = s
	return f, nil
}

func (f Filter) Match(a Attendee) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	search := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(a.Name), search) ||
		strings.Contains(strings.ToLower(a.Email), search) ||
		strings.Contains(strings.ToLower(a.StudentNumber), search)
}

func (f Filter) Apply(attendees []Attendee) []Attendee {
	matched := make([]Attendee, 0, len(attendees))
	for _, a := range attendees {
		if f.Match(a) {
			matched = append(matched, a)
		}
	}
	return matched
}
