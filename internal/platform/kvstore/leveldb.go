package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore is a durable on-disk Store. Writes are synced before Set
// returns.
type LevelDBStore struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates the database at path.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb get %s: %w", key, err)
	}
	return v, nil
}

func (s *LevelDBStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("leveldb put %s: %w", key, err)
	}
	return nil
}

func (s *LevelDBStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// leveldb.Delete does not report missing keys.
	if err := s.db.Delete([]byte(key), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("leveldb delete %s: %w", key, err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
