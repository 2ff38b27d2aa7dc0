package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/mrosetti/forchetta/pkg/store"
)

func (s *BadgerStore) FindAccount(_ context.Context, username string) (store.Account, error) {
	var a store.Account

	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, accountKey(username), &a)
	})
	if err == store.ErrNotFound {
		return store.Account{}, store.ErrNotFound
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("find account %q: %w", username, err)
	}
	return a, nil
}

// InsertAccount writes the account row together with its two identity-index
// entries (lowercased username and email) in one transaction. Returns false
// without writing if the exact username is already taken; the broader
// case-insensitive duplicate check is AccountExists, which the dispatcher
// calls first.
func (s *BadgerStore) InsertAccount(_ context.Context, a store.Account) (bool, error) {
	inserted := false

	err := s.db.Update(func(txn *badger.Txn) error {
		taken, err := exists(txn, accountKey(a.Username))
		if err != nil || taken {
			return err
		}

		if err := setJSON(txn, accountKey(a.Username), a); err != nil {
			return err
		}
		if err := txn.Set(identityKey(a.Username), []byte(a.Username)); err != nil {
			return err
		}
		if a.Email != "" {
			if err := txn.Set(identityKey(a.Email), []byte(a.Username)); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert account %q: %w", a.Username, err)
	}
	return inserted, nil
}

func (s *BadgerStore) UpdatePassword(_ context.Context, username, newStored string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var a store.Account
		if err := getJSON(txn, accountKey(username), &a); err != nil {
			return err
		}
		a.Password = newStored
		return setJSON(txn, accountKey(username), a)
	})
	if err == store.ErrNotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update password for %q: %w", username, err)
	}
	return nil
}

func (s *BadgerStore) AccountExists(_ context.Context, usernameOrEmail string) (bool, error) {
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		ok, err := exists(txn, identityKey(usernameOrEmail))
		found = ok
		return err
	})
	if err != nil {
		return false, fmt.Errorf("account exists %q: %w", usernameOrEmail, err)
	}
	return found, nil
}

func (s *BadgerStore) IsFavorite(_ context.Context, fav store.Favorite) (bool, error) {
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		ok, err := exists(txn, favoriteKey(fav))
		found = ok
		return err
	})
	if err != nil {
		return false, fmt.Errorf("is favorite: %w", err)
	}
	return found, nil
}

func (s *BadgerStore) AddFavorite(_ context.Context, fav store.Favorite) (bool, error) {
	err := s.db.Update(func(txn *badger.Txn) error {
		// Set is idempotent: re-adding an edge leaves exactly one row.
		return txn.Set(favoriteKey(fav), nil)
	})
	if err != nil {
		return false, fmt.Errorf("add favorite: %w", err)
	}
	return true, nil
}

func (s *BadgerStore) RemoveFavorite(_ context.Context, fav store.Favorite) (bool, error) {
	found := false

	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, favoriteKey(fav))
		if err != nil || !ok {
			return err
		}
		found = true
		return txn.Delete(favoriteKey(fav))
	})
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	return found, nil
}
