package crawlerpool

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pharmyrus/pharmyrus/internal/wipo"
)

// SQLiteCache persists extracted records across restarts. It delegates
// TTL handling and lookups to an embedded MemoryCache and writes each
// stored record through to SQLite. On open, persisted entries are loaded
// back with their original timestamps so the TTL still applies.
type SQLiteCache struct {
	inner *MemoryCache
	db    *sqlx.DB
	mu    sync.Mutex
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS patent_cache (
	wo_number TEXT PRIMARY KEY,
	record    TEXT NOT NULL,
	stored_at TEXT NOT NULL
);
`

func NewSQLiteCache(dbPath string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	c := &SQLiteCache{
		inner: NewMemoryCache(ttl),
		db:    db,
	}
	if err := c.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load cache: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) loadAll() error {
	rows, err := c.db.Query("SELECT wo_number, record, stored_at FROM patent_cache")
	if err != nil {
		return err
	}
	defer rows.Close()
	loaded := 0
	for rows.Next() {
		var wo, recJSON, storedAt string
		if err := rows.Scan(&wo, &recJSON, &storedAt); err != nil {
			return err
		}
		var rec wipo.PatentRecord
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			log.Printf("crawlerpool cache_row_skipped wo=%s err=%v", wo, err)
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, storedAt)
		if err != nil {
			ts = time.Now()
		}
		c.inner.putAt(wo, rec, ts)
		loaded++
	}
	log.Printf("crawlerpool cache_loaded entries=%d", loaded)
	return rows.Err()
}

func (c *SQLiteCache) Get(woNumber string) (wipo.PatentRecord, bool) {
	return c.inner.Get(woNumber)
}

func (c *SQLiteCache) Put(woNumber string, rec wipo.PatentRecord) {
	c.inner.Put(woNumber, rec)

	c.mu.Lock()
	defer c.mu.Unlock()
	recJSON, err := json.Marshal(rec)
	if err != nil {
		log.Printf("crawlerpool cache_persist_failed wo=%s err=%v", woNumber, err)
		return
	}
	if _, err := c.db.Exec(`INSERT OR REPLACE INTO patent_cache (wo_number, record, stored_at) VALUES (?, ?, ?)`,
		woNumber, string(recJSON), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		// The in-memory copy is still good; persistence failure only costs
		// warm-start coverage.
		log.Printf("crawlerpool cache_persist_failed wo=%s err=%v", woNumber, err)
	}
}

func (c *SQLiteCache) Len() int {
	return c.inner.Len()
}

var _ Cache = (*SQLiteCache)(nil)
