// Package operation provides the low-level badger read/write primitives the
// storage layer composes its operations from. Values are encoded with
// msgpack; keys are a one-byte prefix followed by the binary key parts.
package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/lattice-foundation/lattice-go/model/lattice"
	"github.com/lattice-foundation/lattice-go/storage"
)

// makePrefix builds a storage key from a one-byte prefix and binary key
// parts.
func makePrefix(code byte, keys ...interface{}) []byte {
	key := []byte{code}
	for _, k := range keys {
		switch v := k.(type) {
		case lattice.Identifier:
			key = append(key, v[:]...)
		case uint64:
			key = append(key,
				byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
				byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
		default:
			panic(fmt.Sprintf("unsupported key type (%T)", k))
		}
	}
	return key
}

// insert returns a functor that writes the entity under the key, failing
// with ErrAlreadyExists if the key is taken.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("could not check key: %w", err)
		}

		val, err := msgpack.Marshal(entity)
		if err != nil {
			return fmt.Errorf("could not encode entity: %w", err)
		}
		err = tx.Set(key, val)
		if err != nil {
			return fmt.Errorf("could not store data: %w", err)
		}
		return nil
	}
}

// retrieve returns a functor that reads the value at the key and decodes it
// into the entity, failing with ErrNotFound if the key is absent.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("could not load data: %w", err)
		}
		err = item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, entity)
		})
		if err != nil {
			return fmt.Errorf("could not decode entity: %w", err)
		}
		return nil
	}
}

// exists returns a functor that checks key presence.
func exists(key []byte, has *bool) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			*has = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not check key: %w", err)
		}
		*has = true
		return nil
	}
}

// remove returns a functor that deletes the key, tolerating its absence.
func remove(key []byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := tx.Delete(key)
		if err != nil {
			return fmt.Errorf("could not delete key: %w", err)
		}
		return nil
	}
}

// SkipDuplicates wraps an operation so that ErrAlreadyExists is swallowed;
// used for idempotent inserts of content-addressed entities.
func SkipDuplicates(op func(*badger.Txn) error) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		err := op(tx)
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil
		}
		return err
	}
}

// RetryOnConflict retries the transaction while it fails with badger's
// optimistic concurrency conflict.
func RetryOnConflict(action func(func(*badger.Txn) error) error, op func(*badger.Txn) error) error {
	for {
		err := action(op)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}
