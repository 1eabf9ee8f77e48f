package cache

import (
	"encoding/json"
	"fmt"
	"games-api-go/logcolors"
	"games-api-go/utils"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "responses"

// PersistentStore wraps BoltDB with an in-memory mirror for fast reads.
// Values are stored compressed when compression is enabled; callers always
// see the plain value.
type PersistentStore struct {
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	compressionEnabled bool
}

// NewPersistentStore opens (or creates) the database at dbPath and preloads
// every entry into memory.
func NewPersistentStore(dbPath string, compressionEnabled bool) (*PersistentStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogCacheInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogCacheInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	ps := &PersistentStore{
		db:                 db,
		dbPath:             dbPath,
		compressionEnabled: compressionEnabled,
	}

	if err := ps.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCache, err)
	}

	log.Infof("%s Persistent cache initialized at %s (compression: %v)", logcolors.LogCache, dbPath, compressionEnabled)
	return ps, nil
}

// loadToMemory loads all stored entries from disk into the memory mirror
func (ps *PersistentStore) loadToMemory() error {
	count := 0
	err := ps.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var entry CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Failed to unmarshal cache entry for key %s: %v", logcolors.LogCache, string(k), err)
				return nil
			}
			ps.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d entries from disk to memory", logcolors.LogCache, count)
	return nil
}

// Get returns the entry for key with its value decompressed
func (ps *PersistentStore) Get(key string) (CacheEntry, bool) {
	v, ok := ps.memCache.Load(key)
	if !ok {
		return CacheEntry{}, false
	}
	entry := v.(CacheEntry)

	if ps.compressionEnabled {
		plain, err := utils.Decompress(entry.Value)
		if err != nil {
			log.Errorf("%s Error decompressing cache value for key %s: %v", logcolors.LogCache, key, err)
			return CacheEntry{}, false
		}
		entry.Value = string(plain)
	}
	return entry, true
}

// Set stores entry in memory and on disk, overwriting any previous value
func (ps *PersistentStore) Set(key string, entry CacheEntry) error {
	if ps.compressionEnabled {
		compressed, err := utils.Compress([]byte(entry.Value))
		if err != nil {
			log.Errorf("%s Error compressing cache value for key %s: %v", logcolors.LogCache, key, err)
			return err
		}
		entry.Value = compressed
	}

	ps.memCache.Store(key, entry)

	return ps.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Delete removes a key from memory and disk
func (ps *PersistentStore) Delete(key string) error {
	ps.memCache.Delete(key)

	return ps.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
}

// Clear removes all entries
func (ps *PersistentStore) Clear() error {
	ps.memCache.Range(func(key, _ interface{}) bool {
		ps.memCache.Delete(key)
		return true
	})

	return ps.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Len returns the number of stored entries
func (ps *PersistentStore) Len() int {
	n, _ := ps.Stats()
	return n
}

// Range iterates over all entries with their values decompressed
func (ps *PersistentStore) Range(fn func(key string, entry CacheEntry) bool) {
	ps.memCache.Range(func(k, _ interface{}) bool {
		entry, ok := ps.Get(k.(string))
		if !ok {
			return true
		}
		return fn(k.(string), entry)
	})
}

// Stats returns the number of keys and the stored (possibly compressed) size
func (ps *PersistentStore) Stats() (numKeys int, sizeInKB int) {
	ps.memCache.Range(func(k, v interface{}) bool {
		entry := v.(CacheEntry)
		numKeys++
		sizeInKB += len(k.(string)) + len(entry.Value)
		return true
	})
	sizeInKB = sizeInKB / 1024
	return
}

// Close closes the database connection
func (ps *PersistentStore) Close() error {
	if ps.db != nil {
		return ps.db.Close()
	}
	return nil
}
