package store

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var ErrClosed = errors.New("store: closed")

const (
	entryPrefix = "e:"
	metaPrefix  = "m:"
)

type op struct {
	key   string
	rec   *Record
	del   bool
	touch bool
	ack   chan error
}

// Store is a leveldb-backed key/value tier with a byte budget. Writes are
// applied in order by a single writer goroutine; when the budget is exceeded
// the least recently accessed tenth of the keys is evicted.
type Store struct {
	maxBytes int64

	db *leveldb.DB

	mu        sync.Mutex
	index     map[string]meta
	totalSize int64

	closeMu sync.RWMutex
	closed  bool

	ops  chan op
	done chan struct{}

	now func() time.Time
}

// Open opens (or creates) the database at path. maxBytes <= 0 disables the
// budget.
func Open(path string, maxBytes int64) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	s := &Store{
		maxBytes: maxBytes,
		db:       db,
		index:    map[string]meta{},
		ops:      make(chan op, 1024),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	if err := s.loadIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	go s.writerLoop()
	return s, nil
}

// Close drains pending writes and closes the database.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ops)
	s.closeMu.Unlock()
	<-s.done
	return s.db.Close()
}

func (s *Store) loadIndex() error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(metaPrefix)), nil)
	defer it.Release()

	var total int64
	idx := map[string]meta{}
	for it.Next() {
		key := string(bytes.TrimPrefix(it.Key(), []byte(metaPrefix)))
		var m meta
		if err := decodeGob(it.Value(), &m); err != nil {
			continue
		}
		idx[key] = m
		total += m.Size
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	s.mu.Lock()
	s.index = idx
	s.totalSize = total
	s.mu.Unlock()
	return nil
}

func (s *Store) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize
}

func (s *Store) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Peek reads a record without updating its access time.
func (s *Store) Peek(key string) (Record, bool) {
	b, err := s.db.Get([]byte(entryPrefix+key), nil)
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := decodeGob(b, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

// Get reads a record and marks it recently used.
func (s *Store) Get(key string) (Record, bool) {
	rec, ok := s.Peek(key)
	if !ok {
		return Record{}, false
	}
	s.mu.Lock()
	m, exists := s.index[key]
	if exists {
		m.LastAccess = s.now().UnixNano()
		s.index[key] = m
	}
	s.mu.Unlock()
	if exists {
		s.send(op{key: key, touch: true})
	}
	return rec, true
}

// Put writes rec and waits until it is durable.
func (s *Store) Put(key string, rec Record) error {
	clone := rec
	ack := make(chan error, 1)
	if !s.send(op{key: key, rec: &clone, ack: ack}) {
		return ErrClosed
	}
	return <-ack
}

// Delete removes key and waits for the removal to be applied, so a following
// Get cannot observe the old record.
func (s *Store) Delete(key string) error {
	ack := make(chan error, 1)
	if !s.send(op{key: key, del: true, ack: ack}) {
		return ErrClosed
	}
	return <-ack
}

func (s *Store) send(o op) bool {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return false
	}
	s.ops <- o
	return true
}

func (s *Store) writerLoop() {
	defer close(s.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for o := range s.ops {
		var err error
		switch {
		case o.del:
			err = s.applyDelete(o.key)
		case o.touch:
			err = s.applyTouch(o.key)
		case o.rec != nil:
			err = s.applyPut(o.key, o.rec)
		}
		if o.ack != nil {
			o.ack <- err
		}
	}
}

func (s *Store) applyPut(key string, rec *Record) error {
	b, err := encodeGob(*rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	size := int64(len(b))

	s.mu.Lock()
	old := s.index[key]
	s.totalSize -= old.Size
	m := meta{Size: size, LastAccess: s.now().UnixNano()}
	s.index[key] = m
	s.totalSize += size
	total := s.totalSize
	s.mu.Unlock()

	mb, err := encodeGob(m)
	if err != nil {
		return fmt.Errorf("encode meta %s: %w", key, err)
	}
	batch := new(leveldb.Batch)
	batch.Put([]byte(entryPrefix+key), b)
	batch.Put([]byte(metaPrefix+key), mb)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	if s.maxBytes > 0 && total > s.maxBytes {
		s.evictSome(key)
	}
	return nil
}

func (s *Store) applyTouch(key string) error {
	s.mu.Lock()
	m, ok := s.index[key]
	s.mu.Unlock()
	if !ok || m.Size == 0 {
		return nil
	}
	mb, err := encodeGob(m)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(metaPrefix+key), mb, nil)
}

func (s *Store) applyDelete(key string) error {
	batch := new(leveldb.Batch)
	batch.Delete([]byte(entryPrefix + key))
	batch.Delete([]byte(metaPrefix + key))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	s.mu.Lock()
	if m, ok := s.index[key]; ok {
		s.totalSize -= m.Size
		delete(s.index, key)
	}
	s.mu.Unlock()
	return nil
}

// evictSome drops the least recently accessed tenth of the keys, never the
// key that was just written.
func (s *Store) evictSome(keep string) {
	type item struct {
		key string
		m   meta
	}
	s.mu.Lock()
	items := make([]item, 0, len(s.index))
	for k, m := range s.index {
		if k == keep {
			continue
		}
		items = append(items, item{k, m})
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].m.LastAccess < items[j].m.LastAccess
	})

	n := len(items) / 10
	if n < 1 {
		n = 1
	}
	for i := 0; i < n && i < len(items); i++ {
		_ = s.applyDelete(items[i].key)
	}
}
