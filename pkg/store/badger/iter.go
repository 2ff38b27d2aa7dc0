package badger

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// forEachJSON scans every key under prefix, unmarshals each value as T and
// invokes fn. The key slice passed to fn is only valid for the duration of
// the call; callers that retain it must copy it first.
func forEachJSON[T any](txn *badger.Txn, prefix string, fn func(key []byte, v T) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()

		var v T
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return fmt.Errorf("decode %q: %w", item.Key(), err)
		}

		if err := fn(item.Key(), v); err != nil {
			return err
		}
	}
	return nil
}
