package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuesight/cuesight-app/pipeline"
	"go.etcd.io/bbolt"
)

// BBolt keeps profiles as JSON under cuesight/profiles and the default
// profile name directly in the cuesight bucket.
type BBolt struct {
	db *bbolt.DB
}

var _ Store = (*BBolt)(nil)

var (
	bboltRoot       = []byte("cuesight")
	bboltProfiles   = []byte("profiles")
	bboltDefaultKey = []byte("default-profile")
)

// OpenBBolt opens a BBoltDB database at the given path and creates the needed buckets
// if they don't exist.
func OpenBBolt(path string, mode os.FileMode, options *bbolt.Options) (*BBolt, error) {
	db, err := bbolt.Open(path, mode, options)
	if err != nil {
		return nil, fmt.Errorf("unable to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bboltRoot)
		if err != nil {
			return err
		}
		_, err = root.CreateBucketIfNotExists(bboltProfiles)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create bbolt buckets: %w", err)
	}

	return &BBolt{db: db}, nil
}

func (b *BBolt) Close() error {
	return b.db.Close()
}

// bucket walks from the root bucket down the given children.
func bucket(tx *bbolt.Tx, children ...[]byte) *bbolt.Bucket {
	bk := tx.Bucket(bboltRoot)
	for _, c := range children {
		bk = bk.Bucket(c)
	}
	return bk
}

func (b *BBolt) Profile(name string) (pipeline.Config, error) {
	var c pipeline.Config

	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := bucket(tx, bboltProfiles).Get([]byte(name))
		if raw == nil {
			return ErrProfileNotFound
		}
		return json.Unmarshal(raw, &c)
	})
	if err != nil {
		return c, fmt.Errorf("unable to get profile %q: %w", name, err)
	}

	return c, nil
}

func (b *BBolt) ListProfiles() ([]string, error) {
	names := make([]string, 0)

	err := b.db.View(func(tx *bbolt.Tx) error {
		return bucket(tx, bboltProfiles).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list profiles: %w", err)
	}

	return names, nil
}

func (b *BBolt) PutProfile(name string, c pipeline.Config) error {
	if name == "" {
		return errEmptyName
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("unable to marshal profile %q: %w", name, err)
	}

	return b.put([][]byte{bboltProfiles}, []byte(name), raw)
}

func (b *BBolt) DefaultProfile() (string, error) {
	var name string

	err := b.db.View(func(tx *bbolt.Tx) error {
		name = string(bucket(tx).Get(bboltDefaultKey))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("unable to get default profile: %w", err)
	}

	return name, nil
}

func (b *BBolt) PutDefaultProfile(name string) error {
	return b.put(nil, bboltDefaultKey, []byte(name))
}

// put stores value under key in the bucket at path below the root.
func (b *BBolt) put(path [][]byte, key, value []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return bucket(tx, path...).Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("unable to put %q: %w", key, err)
	}
	return nil
}
