// Package record stores simulation results in an SQLite database.
package record

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/sim"
)

// DefaultBatchSize is the number of buffered rows that triggers a flush.
const DefaultBatchSize = 10000

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	trace         TEXT,
	total_size    INTEGER,
	block_size    INTEGER,
	associativity INTEGER,
	policy        TEXT,
	sets          INTEGER,
	seed          INTEGER,
	processed     INTEGER,
	accesses      INTEGER,
	hits          INTEGER,
	misses        INTEGER,
	evictions     INTEGER,
	hit_rate      REAL,
	wall_time_ns  INTEGER,
	baseline_hits INTEGER
);
CREATE TABLE IF NOT EXISTS progress (
	run_id     TEXT,
	processed  INTEGER,
	hits       INTEGER,
	misses     INTEGER,
	elapsed_ns INTEGER
);`

// Run is the summary of one finished simulation.
type Run struct {
	ID     string
	Trace  string
	Report sim.Report

	// Baseline holds the statistics of the true-LRU reference, if it ran.
	Baseline *cache.Statistics
}

type progressRow struct {
	runID    string
	progress sim.Progress
}

// Recorder buffers run summaries and progress samples and writes them in
// batches. It is safe for concurrent use.
type Recorder struct {
	db        *sql.DB
	path      string
	batchSize int

	mu       sync.Mutex
	runs     []Run
	progress []progressRow
}

// New opens (or creates) the database at path. An empty path creates a new
// uniquely named database in the working directory. The buffered rows are
// flushed when the process exits through atexit.
func New(path string) (*Recorder, error) {
	if path == "" {
		path = "cachesim_" + xid.New().String() + ".sqlite3"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record database: %w", err)
	}

	r, err := NewWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	r.path = path
	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// NewWithDB records into an already opened database.
func NewWithDB(db *sql.DB) (*Recorder, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create record tables: %w", err)
	}

	return &Recorder{
		db:        db,
		batchSize: DefaultBatchSize,
	}, nil
}

// Path returns the database file name, or "" for NewWithDB recorders.
func (r *Recorder) Path() string {
	return r.path
}

// SetBatchSize changes the flush threshold.
func (r *Recorder) SetBatchSize(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batchSize = max(n, 1)
}

// NewRunID returns a fresh run identifier.
func (r *Recorder) NewRunID() string {
	return xid.New().String()
}

// RecordRun queues a run summary. A run without an ID gets one.
func (r *Recorder) RecordRun(run Run) (string, error) {
	if run.ID == "" {
		run.ID = r.NewRunID()
	}

	r.mu.Lock()
	r.runs = append(r.runs, run)
	full := r.pendingLocked() >= r.batchSize
	r.mu.Unlock()

	if full {
		return run.ID, r.Flush()
	}

	return run.ID, nil
}

// RecordProgress queues a progress sample of runID.
func (r *Recorder) RecordProgress(runID string, p sim.Progress) error {
	r.mu.Lock()
	r.progress = append(r.progress, progressRow{runID: runID, progress: p})
	full := r.pendingLocked() >= r.batchSize
	r.mu.Unlock()

	if full {
		return r.Flush()
	}

	return nil
}

// ProgressHook adapts RecordProgress to a session progress hook. Write
// failures surface at the next Flush.
func (r *Recorder) ProgressHook(runID string) sim.ProgressHook {
	return func(p sim.Progress) {
		_ = r.RecordProgress(runID, p)
	}
}

func (r *Recorder) pendingLocked() int {
	return len(r.runs) + len(r.progress)
}

// Flush writes every buffered row in one transaction.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pendingLocked() == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin record transaction: %w", err)
	}

	if err := r.writeRuns(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := r.writeProgress(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}

	r.runs = nil
	r.progress = nil

	return nil
}

func (r *Recorder) writeRuns(tx *sql.Tx) error {
	if len(r.runs) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(insertStatement("runs", 16))
	if err != nil {
		return fmt.Errorf("failed to prepare run insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, run := range r.runs {
		rep := run.Report

		var hitRate, baselineHits any
		if rate, ok := rep.Stats.HitRate(); ok {
			hitRate = rate
		}
		if run.Baseline != nil {
			baselineHits = int64(run.Baseline.Hits)
		}

		_, err := stmt.Exec(
			run.ID,
			run.Trace,
			rep.Config.TotalSize,
			rep.Config.BlockSize,
			rep.Config.Associativity,
			rep.Config.Policy.String(),
			rep.Config.SetNum,
			int64(rep.Seed),
			int64(rep.Processed),
			int64(rep.Stats.Accesses),
			int64(rep.Stats.Hits),
			int64(rep.Stats.Misses),
			int64(rep.Stats.Evictions),
			hitRate,
			rep.WallTime.Nanoseconds(),
			baselineHits,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
		}
	}

	return nil
}

func (r *Recorder) writeProgress(tx *sql.Tx) error {
	if len(r.progress) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(insertStatement("progress", 5))
	if err != nil {
		return fmt.Errorf("failed to prepare progress insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range r.progress {
		p := row.progress

		_, err := stmt.Exec(
			row.runID,
			int64(p.Processed),
			int64(p.Stats.Hits),
			int64(p.Stats.Misses),
			p.Elapsed.Nanoseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert progress of %s: %w", row.runID, err)
		}
	}

	return nil
}

func insertStatement(table string, columns int) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", columns), ", ")
	return "INSERT INTO " + table + " VALUES (" + marks + ")"
}

// Close flushes and closes the database.
func (r *Recorder) Close() error {
	if err := r.Flush(); err != nil {
		_ = r.db.Close()
		return err
	}

	return r.db.Close()
}
