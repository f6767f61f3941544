package outfit

import (
	"sync"

	"outfitapi/models"
)

type EventKind int

const (
	EventPrepended EventKind = iota
	EventRemoved
	EventLoaded
)

// Event describes a change of one user's list.
type Event struct {
	Kind   EventKind
	UserID uint
	Outfit *models.GeneratedOutfit
}

// Store keeps generated outfits per user, newest first. Create one per process
// and share it.
type Store struct {
	mu          sync.RWMutex
	outfits     map[uint][]models.GeneratedOutfit
	subscribers map[int]func(Event)
	nextSub     int
}

func NewStore() *Store {
	return &Store{
		outfits:     make(map[uint][]models.GeneratedOutfit),
		subscribers: make(map[int]func(Event)),
	}
}

// List returns a copy of the user's outfits.
func (s *Store) List(userID uint) []models.GeneratedOutfit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.outfits[userID]
	out := make([]models.GeneratedOutfit, len(list))
	copy(out, list)
	return out
}

// Prepend puts the outfit at the head of the user's list. An outfit already in
// the list, such as a cached result, moves to the head.
func (s *Store) Prepend(userID uint, outfit models.GeneratedOutfit) {
	s.mu.Lock()
	list := s.outfits[userID]
	next := make([]models.GeneratedOutfit, 0, len(list)+1)
	next = append(next, outfit)
	for _, o := range list {
		if outfit.ID != 0 && o.ID == outfit.ID {
			continue
		}
		next = append(next, o)
	}
	s.outfits[userID] = next
	subs := s.subscriberList()
	s.mu.Unlock()

	publish(subs, Event{Kind: EventPrepended, UserID: userID, Outfit: &outfit})
}

// Remove deletes every entry with the given id and reports whether it was there.
func (s *Store) Remove(userID uint, outfitID uint) bool {
	s.mu.Lock()
	list := s.outfits[userID]
	var removed *models.GeneratedOutfit
	next := make([]models.GeneratedOutfit, 0, len(list))
	for i := range list {
		if list[i].ID == outfitID {
			if removed == nil {
				o := list[i]
				removed = &o
			}
			continue
		}
		next = append(next, list[i])
	}
	if removed == nil {
		s.mu.Unlock()
		return false
	}
	s.outfits[userID] = next
	subs := s.subscriberList()
	s.mu.Unlock()

	publish(subs, Event{Kind: EventRemoved, UserID: userID, Outfit: removed})
	return true
}

// Load replaces the user's list, used after refetching from the server.
func (s *Store) Load(userID uint, outfits []models.GeneratedOutfit) {
	next := make([]models.GeneratedOutfit, len(outfits))
	copy(next, outfits)
	s.mu.Lock()
	s.outfits[userID] = next
	subs := s.subscriberList()
	s.mu.Unlock()

	publish(subs, Event{Kind: EventLoaded, UserID: userID})
}

// Subscribe registers fn for every change. Call the returned func to stop.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) subscriberList() []func(Event) {
	subs := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func publish(subs []func(Event), event Event) {
	for _, fn := range subs {
		fn(event)
	}
}
