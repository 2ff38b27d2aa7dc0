package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mrosetti/forchetta/pkg/store"
)

func (s *BadgerStore) FindRestaurants(_ context.Context, filter store.SearchFilter) ([]store.Restaurant, error) {
	var out []store.Restaurant

	err := s.db.View(func(txn *badger.Txn) error {
		return forEachJSON(txn, prefixRestaurant, func(_ []byte, r store.Restaurant) error {
			if filter.Matches(r) {
				out = append(out, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("find restaurants: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) InsertRestaurant(_ context.Context, r store.Restaurant) (bool, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, restaurantKey(uuid.NewString()), r)
	})
	if err != nil {
		return false, fmt.Errorf("insert restaurant: %w", err)
	}
	return true, nil
}

func (s *BadgerStore) UpdateRestaurant(_ context.Context, oldName string, upd store.RestaurantUpdate) (bool, error) {
	updated := false

	err := s.db.Update(func(txn *badger.Txn) error {
		return forEachJSON(txn, prefixRestaurant, func(key []byte, r store.Restaurant) error {
			if r.Name != oldName {
				return nil
			}
			r.Name = upd.Name
			r.City = upd.City
			r.Address = upd.Address
			r.Cuisine = upd.Cuisine
			r.Price = upd.Price
			r.Delivery = upd.Delivery
			r.Online = upd.Online
			updated = true
			return setJSON(txn, key, r)
		})
	})
	if err != nil {
		return false, fmt.Errorf("update restaurant %q: %w", oldName, err)
	}
	return updated, nil
}

func (s *BadgerStore) DeleteRestaurant(_ context.Context, name string) (bool, error) {
	deleted := false

	err := s.db.Update(func(txn *badger.Txn) error {
		var doomed [][]byte
		err := forEachJSON(txn, prefixRestaurant, func(key []byte, r store.Restaurant) error {
			if r.Name == name {
				k := make([]byte, len(key))
				copy(k, key)
				doomed = append(doomed, k)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
			deleted = true
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete restaurant %q: %w", name, err)
	}
	return deleted, nil
}
