package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/adhocore/gronx/pkg/tasker"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"tasksync/internal/entity"
)

const DefaultRetention = 7 * 24 * time.Hour

var _ Sink = (*Journal)(nil)

// Journal appends every non-empty change set to a JSON lines file and then
// passes it on to the next sink.
type Journal struct {
	Retention time.Duration

	path     string
	fileLock *sync.RWMutex
	next     Sink
	pool     *pool.ContextPool
	now      func() time.Time
}

type JournalEntry struct {
	At      time.Time        `json:"at"`
	Changes entity.ChangeSet `json:"changes"`
}

func NewJournal(ctx context.Context, path string, next Sink) *Journal {
	return &Journal{
		Retention: DefaultRetention,
		path:      path,
		fileLock:  &sync.RWMutex{},
		next:      next,
		pool:      pool.New().WithContext(ctx).WithMaxGoroutines(1),
		now:       time.Now,
	}
}

func (j *Journal) Refresh(ctx context.Context, changes entity.ChangeSet) error {
	if !changes.Empty() {
		if err := j.append(JournalEntry{At: j.now().UTC(), Changes: changes}); err != nil {
			log.Err(err).Str("journal", j.path).Msg("can't write change journal")
		}
	}
	return j.next.Refresh(ctx, changes)
}

func (j *Journal) append(entry JournalEntry) error {
	j.fileLock.Lock()
	defer j.fileLock.Unlock()
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "error opening journal")
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return errors.Wrap(err, "error encoding journal entry")
	}
	return nil
}

// Entries reads the journal. A missing file has no entries.
func (j *Journal) Entries() ([]JournalEntry, error) {
	j.fileLock.RLock()
	defer j.fileLock.RUnlock()
	return j.read()
}

func (j *Journal) read() ([]JournalEntry, error) {
	f, err := os.Open(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "error opening journal")
	}
	defer f.Close()

	var out []JournalEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("journal", j.path).Msg("skipping malformed journal line")
			continue
		}
		out = append(out, e)
	}
	return out, errors.Wrap(sc.Err(), "error reading journal")
}

// Prune drops entries older than Retention.
func (j *Journal) Prune() error {
	log.Debug().Str("task", "journal-pruning").Msg("tick for pruning journal")
	j.fileLock.Lock()
	defer j.fileLock.Unlock()
	entries, err := j.read()
	if err != nil {
		return err
	}
	cutoff := j.now().UTC().Add(-j.Retention)
	kept := entries[:0]
	for _, e := range entries {
		if e.At.After(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "error truncating journal")
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, e := range kept {
		if err := enc.Encode(e); err != nil {
			return errors.Wrap(err, "error encoding journal entry")
		}
	}
	log.Debug().Int("dropped", len(entries)-len(kept)).Msg("journal pruned")
	return nil
}

// PruneEvery schedules Prune on cronExpr until the context given to
// NewJournal is done.
func (j *Journal) PruneEvery(cronExpr string) {
	taskr := tasker.New(tasker.Option{})
	taskr.Task(cronExpr, func(_ context.Context) (int, error) {
		if err := j.Prune(); err != nil {
			log.Err(err).Str("task", "journal-pruning").Msg("can't prune journal")
			return 1, err
		}
		return 0, nil
	})
	j.pool.Go(func(ctx context.Context) error {
		taskr.WithContext(ctx).Run()
		return nil
	})
}

func (j *Journal) Stop() {
	_ = j.pool.Wait()
}
