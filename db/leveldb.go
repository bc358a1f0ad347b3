package db

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = leveldb.ErrNotFound

// LevelDB wraps the actual LevelDB connection
type LevelDB struct {
	conn  *leveldb.DB
	cache *lru.Cache[string, []byte]
}

// NewLevelDB opens (or creates) a LevelDB instance at the given path.
// A positive cacheEntries enables an LRU read cache in front of Get.
func NewLevelDB(path string, cacheEntries int) (*LevelDB, error) {
	conn, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return wrap(conn, cacheEntries)
}

// NewMemLevelDB opens a LevelDB instance backed by memory only.
func NewMemLevelDB(cacheEntries int) (*LevelDB, error) {
	conn, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return wrap(conn, cacheEntries)
}

func wrap(conn *leveldb.DB, cacheEntries int) (*LevelDB, error) {
	l := &LevelDB{conn: conn}
	if cacheEntries > 0 {
		c, err := lru.New[string, []byte](cacheEntries)
		if err != nil {
			conn.Close()
			return nil, err
		}
		l.cache = c
	}
	return l, nil
}

// Close safely closes the LevelDB connection
func (l *LevelDB) Close() error {
	return l.conn.Close()
}

// Get retrieves the value for a given key
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	if l.cache != nil {
		if v, ok := l.cache.Get(string(key)); ok {
			return v, nil
		}
	}
	v, err := l.conn.Get(key, nil)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Add(string(key), v)
	}
	return v, nil
}

// Write applies every operation of the batch atomically
func (l *LevelDB) Write(batch *leveldb.Batch) error {
	if err := l.conn.Write(batch, nil); err != nil {
		return err
	}
	if l.cache != nil {
		return batch.Replay(evictor{l.cache})
	}
	return nil
}

// NewIterator returns an iterator over all pairs whose key starts with prefix.
// A nil prefix iterates the whole store.
func (l *LevelDB) NewIterator(prefix []byte) iterator.Iterator {
	var rng *util.Range
	if prefix != nil {
		rng = util.BytesPrefix(prefix)
	}
	return l.conn.NewIterator(rng, nil)
}

// evictor drops every key touched by a replayed batch from the cache.
type evictor struct {
	cache *lru.Cache[string, []byte]
}

func (e evictor) Put(key, _ []byte) { e.cache.Remove(string(key)) }

func (e evictor) Delete(key []byte) { e.cache.Remove(string(key)) }
