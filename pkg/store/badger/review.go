package badger

import (
	"context"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/mrosetti/forchetta/pkg/store"
)

func (s *BadgerStore) FindReviews(_ context.Context, restaurant string) ([]store.Review, error) {
	return s.findReviews(restaurant, "")
}

func (s *BadgerStore) FindReviewsByAuthor(_ context.Context, restaurant, author string) ([]store.Review, error) {
	return s.findReviews(restaurant, author)
}

// findReviews scans the review namespace. An empty author matches all
// authors. Review keys lead with the author, so an author-scoped query
// could use a narrower prefix; the full scan keeps one code path and review
// volumes per restaurant are small.
func (s *BadgerStore) findReviews(restaurant, author string) ([]store.Review, error) {
	var out []store.Review

	err := s.db.View(func(txn *badger.Txn) error {
		return forEachJSON(txn, prefixReview, func(_ []byte, rev store.Review) error {
			if rev.Restaurant != restaurant {
				return nil
			}
			if author != "" && rev.Author != author {
				return nil
			}
			out = append(out, rev)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find reviews for %q: %w", restaurant, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (s *BadgerStore) InsertReview(_ context.Context, rev store.Review) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, reviewKey(rev.Key()), rev)
	})
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *BadgerStore) UpdateReview(_ context.Context, key store.ReviewKey, stars int, text, newDate, newTime string) (bool, error) {
	found := false

	err := s.db.Update(func(txn *badger.Txn) error {
		var rev store.Review
		err := getJSON(txn, reviewKey(key), &rev)
		if err == store.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		rev.Stars = stars
		rev.Text = text
		rev.Date = newDate
		rev.Time = newTime

		// Date and time are part of the key, so the row moves.
		if err := txn.Delete(reviewKey(key)); err != nil {
			return err
		}
		if err := setJSON(txn, reviewKey(rev.Key()), rev); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("update review: %w", err)
	}
	return found, nil
}

func (s *BadgerStore) DeleteReview(_ context.Context, key store.ReviewKey) (bool, error) {
	found := false

	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, reviewKey(key))
		if err != nil || !ok {
			return err
		}
		found = true
		return txn.Delete(reviewKey(key))
	})
	if err != nil {
		return false, fmt.Errorf("delete review: %w", err)
	}
	return found, nil
}

func (s *BadgerStore) SetManagerResponse(_ context.Context, key store.ReviewKey, text string) (bool, error) {
	found := false

	err := s.db.Update(func(txn *badger.Txn) error {
		var rev store.Review
		err := getJSON(txn, reviewKey(key), &rev)
		if err == store.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		rev.Response = text
		found = true
		return setJSON(txn, reviewKey(key), rev)
	})
	if err != nil {
		return false, fmt.Errorf("set manager response: %w", err)
	}
	return found, nil
}

func (s *BadgerStore) AggregateRatings(_ context.Context) (map[string]float64, error) {
	sums := make(map[string]int)
	counts := make(map[string]int)

	err := s.db.View(func(txn *badger.Txn) error {
		return forEachJSON(txn, prefixReview, func(_ []byte, rev store.Review) error {
			sums[rev.Restaurant] += rev.Stars
			counts[rev.Restaurant]++
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}

	avgs := make(map[string]float64, len(sums))
	for name, sum := range sums {
		avgs[name] = float64(sum) / float64(counts[name])
	}
	return avgs, nil
}

func (s *BadgerStore) AggregateReviewCounts(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)

	err := s.db.View(func(txn *badger.Txn) error {
		return forEachJSON(txn, prefixReview, func(_ []byte, rev store.Review) error {
			counts[rev.Restaurant]++
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate review counts: %w", err)
	}
	return counts, nil
}
