package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"games-api-go/logcolors"
	"games-api-go/services/igdb"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "collection"

// Sort orders accepted by List
const (
	SortDateAdded   = "dateAdded"
	SortReleaseDate = "releaseDate"
	SortName        = "name"
)

var ErrInvalidGame = errors.New("game must have a positive id")

// Entry is one saved game
type Entry struct {
	Game    igdb.Game `json:"game"`
	AddedAt time.Time `json:"addedAt"`
}

// Store is the single local collection, keyed by game id
type Store struct {
	db  *bolt.DB
	mu  sync.RWMutex
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the AddedAt time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New opens (or creates) the collection database at dbPath
func New(dbPath string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create collection directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open collection database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collection bucket: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	log.Infof("%s Opened collection at %s with %d games", logcolors.LogCollection, dbPath, s.Len())
	return s, nil
}

func key(id int) []byte {
	return []byte(strconv.Itoa(id))
}

// Add saves game. It reports false without touching the stored entry when a
// game with the same id is already collected.
func (s *Store) Add(game igdb.Game) (bool, error) {
	if game.ID <= 0 {
		return false, ErrInvalidGame
	}
	if game.Slug == "" {
		game.Slug = igdb.FallbackSlug(game.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get(key(game.ID)) != nil {
			return nil
		}

		data, err := json.Marshal(Entry{Game: game, AddedAt: s.now()})
		if err != nil {
			return err
		}
		added = true
		return b.Put(key(game.ID), data)
	})
	if err != nil {
		return false, fmt.Errorf("adding game %d: %w", game.ID, err)
	}

	if added {
		log.Infof("%s Added %q (%d)", logcolors.LogCollection, game.Name, game.ID)
	}
	return added, nil
}

// Remove deletes a game, reporting whether it was present
func (s *Store) Remove(id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get(key(id)) == nil {
			return nil
		}
		removed = true
		return b.Delete(key(id))
	})
	if err != nil {
		return false, fmt.Errorf("removing game %d: %w", id, err)
	}

	if removed {
		log.Infof("%s Removed %d", logcolors.LogCollection, id)
	}
	return removed, nil
}

// Get returns the entry for id, or nil when it is not collected
func (s *Store) Get(id int) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get(key(id))
		if data == nil {
			return nil
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("reading game %d: %w", id, err)
	}
	return entry, nil
}

func (s *Store) Has(id int) (bool, error) {
	entry, err := s.Get(id)
	return entry != nil, err
}

func (s *Store) all() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []Entry{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Skipping undecodable entry %s: %v", logcolors.LogCollection, k, err)
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

// ValidSort reports whether order is accepted by List. Empty means dateAdded.
func ValidSort(order string) bool {
	switch order {
	case "", SortDateAdded, SortReleaseDate, SortName:
		return true
	}
	return false
}

// List returns every entry in the given order:
// dateAdded newest first, releaseDate newest first with undated games last,
// name alphabetical ignoring case. Ties fall back to the game id.
func (s *Store) List(order string) ([]Entry, error) {
	entries, err := s.all()
	if err != nil {
		return nil, fmt.Errorf("listing collection: %w", err)
	}

	var less func(a, b Entry) bool
	switch order {
	case SortReleaseDate:
		less = func(a, b Entry) bool {
			ad, bd := a.Game.FirstReleaseDate, b.Game.FirstReleaseDate
			if (ad == 0) != (bd == 0) {
				return bd == 0
			}
			return ad > bd
		}
	case SortName:
		less = func(a, b Entry) bool {
			return strings.ToLower(a.Game.Name) < strings.ToLower(b.Game.Name)
		}
	default:
		less = func(a, b Entry) bool {
			return a.AddedAt.After(b.AddedAt)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if less(entries[i], entries[j]) {
			return true
		}
		if less(entries[j], entries[i]) {
			return false
		}
		return entries[i].Game.ID < entries[j].Game.ID
	})
	return entries, nil
}

// FindBySlug returns the collected game with this slug, or nil
func (s *Store) FindBySlug(slug string) (*igdb.Game, error) {
	entries, err := s.all()
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Game.Slug == slug {
			game := entry.Game
			return &game, nil
		}
	}
	return nil, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	if err != nil {
		log.Warnf("%s Failed to count games: %v", logcolors.LogCollection, err)
		return 0
	}
	return n
}

func (s *Store) Close() error {
	return s.db.Close()
}
