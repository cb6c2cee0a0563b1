package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"strings"

	"github.com/cuesight/cuesight-app/pipeline"
	badger "github.com/dgraph-io/badger/v2"
)

type Badger struct {
	db *badger.DB
}

var _ Store = (*Badger)(nil)

const (
	badgerProfilePrefix = "profiles/"
	badgerDefaultKey    = "default-profile"
)

// OpenBadger opens a badger DB with the given options as a profile store.
func OpenBadger(options badger.Options) (*Badger, error) {
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("unable to open badger db: %w", err)
	}

	return &Badger{db: db}, nil
}

// OpenBadgerPath opens a badger DB in dir, or in memory when dir is empty.
func OpenBadgerPath(dir string) (*Badger, error) {
	options := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		options = options.WithInMemory(true)
	}

	return OpenBadger(options)
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) Profile(name string) (pipeline.Config, error) {
	var c pipeline.Config

	err := b.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(badgerProfilePrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrProfileNotFound
		}
		if err != nil {
			return fmt.Errorf("couldn't get raw profile: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&c); err != nil {
				return fmt.Errorf("couldn't decode profile with gob: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return c, fmt.Errorf("unable to get profile %q: %w", name, err)
	}

	return c, nil
}

func (b *Badger) ListProfiles() ([]string, error) {
	names := make([]string, 0)

	err := b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := tx.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerProfilePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), badgerProfilePrefix))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list profiles: %w", err)
	}

	return names, nil
}

func (b *Badger) PutProfile(name string, c pipeline.Config) error {
	if name == "" {
		return errEmptyName
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("couldn't encode profile with gob: %w", err)
	}

	err := b.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(badgerProfilePrefix+name), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("unable to put profile %q: %w", name, err)
	}

	return nil
}

func (b *Badger) DefaultProfile() (string, error) {
	var def string

	err := b.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(badgerDefaultKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			def = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("unable to get default profile: %w", err)
	}

	return def, nil
}

func (b *Badger) PutDefaultProfile(def string) error {
	err := b.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(badgerDefaultKey), []byte(def))
	})
	if err != nil {
		return fmt.Errorf("unable to put default profile: %w", err)
	}

	return nil
}
