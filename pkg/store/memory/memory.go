// Package memory implements store.Store with in-memory data structures.
//
// The implementation is suitable for development, testing and ephemeral
// deployments where persistence across restarts is not required.
//
// Thread safety: all operations are protected by a single read-write mutex.
// Coarse-grained locking is simple and correct; per-row contention has not
// been a bottleneck at the connection counts this server targets.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mrosetti/forchetta/pkg/store"
)

// MemoryStore holds all rows in maps and slices guarded by one mutex.
//
// Restaurants are a slice rather than a map keyed by name: duplicate names
// are permitted (observed upstream behavior) and insertion order is the
// natural listing order.
type MemoryStore struct {
	mu sync.RWMutex

	restaurants []store.Restaurant
	reviews     []store.Review
	accounts    map[string]store.Account // keyed by exact username
	favorites   map[store.Favorite]struct{}
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]store.Account),
		favorites: make(map[store.Favorite]struct{}),
	}
}

func (s *MemoryStore) FindRestaurants(_ context.Context, filter store.SearchFilter) ([]store.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Restaurant
	for _, r := range s.restaurants {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertRestaurant(_ context.Context, r store.Restaurant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restaurants = append(s.restaurants, r)
	return true, nil
}

func (s *MemoryStore) UpdateRestaurant(_ context.Context, oldName string, upd store.RestaurantUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := false
	for i := range s.restaurants {
		if s.restaurants[i].Name != oldName {
			continue
		}
		country := s.restaurants[i].Country // country is not part of the update set
		s.restaurants[i] = store.Restaurant{
			Name:     upd.Name,
			Country:  country,
			City:     upd.City,
			Address:  upd.Address,
			Cuisine:  upd.Cuisine,
			Price:    upd.Price,
			Delivery: upd.Delivery,
			Online:   upd.Online,
		}
		updated = true
	}
	return updated, nil
}

func (s *MemoryStore) DeleteRestaurant(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.restaurants[:0]
	deleted := false
	for _, r := range s.restaurants {
		if r.Name == name {
			deleted = true
			continue
		}
		kept = append(kept, r)
	}
	s.restaurants = kept
	return deleted, nil
}

func (s *MemoryStore) FindReviews(_ context.Context, restaurant string) ([]store.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Review
	for _, rev := range s.reviews {
		if rev.Restaurant == restaurant {
			out = append(out, rev)
		}
	}
	sortChronological(out)
	return out, nil
}

func (s *MemoryStore) FindReviewsByAuthor(_ context.Context, restaurant, author string) ([]store.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Review
	for _, rev := range s.reviews {
		if rev.Restaurant == restaurant && rev.Author == author {
			out = append(out, rev)
		}
	}
	sortChronological(out)
	return out, nil
}

func (s *MemoryStore) InsertReview(_ context.Context, rev store.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reviews = append(s.reviews, rev)
	return nil
}

func (s *MemoryStore) UpdateReview(_ context.Context, key store.ReviewKey, stars int, text, newDate, newTime string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reviews {
		if s.reviews[i].Key() != key {
			continue
		}
		s.reviews[i].Stars = stars
		s.reviews[i].Text = text
		s.reviews[i].Date = newDate
		s.reviews[i].Time = newTime
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) DeleteReview(_ context.Context, key store.ReviewKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reviews {
		if s.reviews[i].Key() == key {
			s.reviews = append(s.reviews[:i], s.reviews[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) SetManagerResponse(_ context.Context, key store.ReviewKey, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reviews {
		if s.reviews[i].Key() == key {
			s.reviews[i].Response = text
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) FindAccount(_ context.Context, username string) (store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[username]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) InsertAccount(_ context.Context, a store.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.Username]; ok {
		return false, nil
	}
	s.accounts[a.Username] = a
	return true, nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, username, newStored string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[username]
	if !ok {
		return store.ErrNotFound
	}
	a.Password = newStored
	s.accounts[username] = a
	return nil
}

func (s *MemoryStore) AccountExists(_ context.Context, usernameOrEmail string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(usernameOrEmail)
	for _, a := range s.accounts {
		if strings.ToLower(a.Username) == needle || strings.ToLower(a.Email) == needle {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) IsFavorite(_ context.Context, fav store.Favorite) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.favorites[fav]
	return ok, nil
}

func (s *MemoryStore) AddFavorite(_ context.Context, fav store.Favorite) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.favorites[fav] = struct{}{}
	return true, nil
}

func (s *MemoryStore) RemoveFavorite(_ context.Context, fav store.Favorite) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.favorites[fav]
	delete(s.favorites, fav)
	return ok, nil
}

func (s *MemoryStore) AggregateRatings(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, rev := range s.reviews {
		sums[rev.Restaurant] += rev.Stars
		counts[rev.Restaurant]++
	}

	avgs := make(map[string]float64, len(sums))
	for name, sum := range sums {
		avgs[name] = float64(sum) / float64(counts[name])
	}
	return avgs, nil
}

func (s *MemoryStore) AggregateReviewCounts(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, rev := range s.reviews {
		counts[rev.Restaurant]++
	}
	return counts, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// sortChronological orders reviews by date then time, ascending. Dates are
// ISO-8601 strings so lexicographic order is chronological order.
func sortChronological(revs []store.Review) {
	sort.SliceStable(revs, func(i, j int) bool {
		if revs[i].Date != revs[j].Date {
			return revs[i].Date < revs[j].Date
		}
		return revs[i].Time < revs[j].Time
	})
}
