package poker

import (
	"slices"
	"sync"
	"time"

	"github.com/mustlammas/planningpoker/estimation"
)

const defaultRoomName = "Planning poker"

type Room struct {
	// Identity
	id   string
	name string

	mu sync.Mutex

	// Estimation scale
	template  estimation.Template
	templates []estimation.Template

	// Lifecycle
	lastInteraction time.Time
	removed         bool

	// Sessions in join order
	sessions []*Session
}

// RoomSnapshot is what the HTTP surface exposes about a room. Votes stay on
// the websocket so they are never leaked before a reveal.
type RoomSnapshot struct {
	Id              string                `json:"id"`
	Name            string                `json:"name"`
	Template        estimation.Template   `json:"template"`
	Templates       []estimation.Template `json:"templates"`
	Participants    int                   `json:"participants"`
	LastInteraction time.Time             `json:"lastInteraction"`
}

func newRoom(id, name string, catalog *estimation.Catalog, now time.Time) *Room {
	if name == "" {
		name = defaultRoomName
	}
	return &Room{
		id:              id,
		name:            name,
		template:        catalog.Default(),
		templates:       catalog.Templates(),
		lastInteraction: now,
		sessions:        make([]*Session, 0, 8),
	}
}

func (r *Room) Id() string   { return r.id }
func (r *Room) Name() string { return r.name }

func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	templates := make([]estimation.Template, len(r.templates))
	for i, t := range r.templates {
		templates[i] = t.Clone()
	}
	return RoomSnapshot{
		Id:              r.id,
		Name:            r.name,
		Template:        r.template.Clone(),
		Templates:       templates,
		Participants:    len(r.sessions),
		LastInteraction: r.lastInteraction,
	}
}

// Votes returns the current user list in join order.
func (r *Room) Votes() []estimation.Vote {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.votes()
}

func (r *Room) Template() estimation.Template {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.template.Clone()
}

func (r *Room) LastInteraction() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastInteraction
}

// The helpers below expect r.mu to be held.

func (r *Room) votes() []estimation.Vote {
	votes := make([]estimation.Vote, len(r.sessions))
	for i, s := range r.sessions {
		votes[i] = s.view()
	}
	return votes
}

func (r *Room) touch(now time.Time) {
	if now.After(r.lastInteraction) {
		r.lastInteraction = now
	}
}

func (r *Room) attached(s *Session) bool {
	return !r.removed && slices.Contains(r.sessions, s)
}

func (r *Room) usernameTaken(username string) bool {
	return slices.ContainsFunc(r.sessions, func(s *Session) bool {
		return s.username == username
	})
}

func (r *Room) detach(s *Session) bool {
	i := slices.Index(r.sessions, s)
	if i < 0 {
		return false
	}
	r.sessions = slices.Delete(r.sessions, i, i+1)
	return true
}

func (r *Room) resetVotes(now time.Time) {
	for _, s := range r.sessions {
		s.vote = ""
	}
	r.touch(now)
	r.publishReset()
	r.publishUsers()
}

// storeTemplate makes t active and keeps the Custom entry of the catalog in
// sync with it, adding it on first use.
func (r *Room) storeTemplate(t estimation.Template) {
	r.template = t.Clone()
	if t.Name != estimation.CustomTemplateName {
		return
	}
	for i, existing := range r.templates {
		if existing.Name == t.Name {
			r.templates[i] = t.Clone()
			return
		}
	}
	r.templates = append(r.templates, t.Clone())
}
