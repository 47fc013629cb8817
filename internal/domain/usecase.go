package domain

import (
	"context"
	"time"

	"github.com/adhocore/gronx/pkg/tasker"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"tasksync/internal/entity"
	"tasksync/internal/metrics"
	"tasksync/internal/reconcile"
	"tasksync/internal/remote"
	"tasksync/internal/store"
	"tasksync/internal/ui"
)

// Sessions hands out the validated remote session. session.Manager
// implements it.
type Sessions interface {
	Session(ctx context.Context) (remote.Session, error)
	// Calendars re-probes the task capable calendars.
	Calendars(ctx context.Context) ([]remote.Calendar, error)
}

type UseCase struct {
	sessions Sessions
	store    store.Store
	sink     ui.Sink
	group    singleflight.Group
	pool     *pool.ContextPool
	ctx      context.Context
	now      func() time.Time
}

func New(ctx context.Context, sessions Sessions, st store.Store, sink ui.Sink) *UseCase {
	return &UseCase{
		sessions: sessions,
		store:    st,
		sink:     sink,
		pool:     pool.New().WithContext(ctx).WithMaxGoroutines(10),
		ctx:      ctx,
		now:      time.Now,
	}
}

// SyncOnce runs one full reconciliation and hands the resulting change set
// to the sink exactly once. Without a session or when the first calendar
// probe fails nothing is changed and the sink is not called.
func (uc *UseCase) SyncOnce(ctx context.Context) (entity.ChangeSet, error) {
	start := time.Now()
	log.Info().Msg("sync tasks with remote")

	session, err := uc.sessions.Session(ctx)
	if err != nil {
		metrics.ObserveRun(metrics.ResultNoSession, start)
		return entity.ChangeSet{}, err
	}
	cals, err := uc.sessions.Calendars(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("sync skipped")
		metrics.ObserveRun(metrics.ResultProbeFailed, start)
		return entity.ChangeSet{}, err
	}

	changes := &entity.ChangeSet{}
	run := reconcile.NewRun(uc.store, changes).WithClock(uc.now)
	if err := run.Lists(ctx, session, cals); err != nil {
		log.Err(err).Msg("can't reconcile lists")
	}

	// list reconciliation may have created or removed calendars
	result := metrics.ResultOK
	cals, err = uc.sessions.Calendars(ctx)
	if err != nil {
		result = metrics.ResultProbeFailed
	}
	for _, cal := range cals {
		if terr := run.Tasks(ctx, cal); terr != nil {
			log.Err(terr).Str("list", cal.ID()).Msg("can't reconcile tasks")
		}
	}

	log.Debug().Msg("sync: update ui")
	if rerr := uc.sink.Refresh(ctx, *changes); rerr != nil {
		log.Err(rerr).Msg("ui refresh failed")
	}
	record(run, result, start)
	return *changes, err
}

// Sync runs SyncOnce unless a run is already in progress, in which case the
// caller shares that run's outcome.
func (uc *UseCase) Sync(ctx context.Context) (entity.ChangeSet, error) {
	v, err, shared := uc.group.Do("sync", func() (any, error) {
		return uc.SyncOnce(ctx)
	})
	if shared {
		log.Debug().Msg("joined running sync")
	}
	changes, _ := v.(entity.ChangeSet)
	return changes, err
}

func (uc *UseCase) TaskSync(cronExpr string) {
	taskr := tasker.New(tasker.Option{})
	taskr.Task(cronExpr, func(ctx context.Context) (int, error) {
		if _, err := uc.Sync(ctx); err != nil {
			return 1, errors.Wrap(err, "scheduled sync failed")
		}
		return 0, nil
	})
	uc.pool.Go(func(ctx context.Context) error {
		taskr.WithContext(ctx).Run()
		return nil
	})
}

func (uc *UseCase) Stop() {
	_ = uc.pool.Wait()
}

func record(run *reconcile.Run, result string, start time.Time) {
	actions := make(map[string]int, len(run.Actions))
	for a, n := range run.Actions {
		actions[string(a)] = n
	}
	metrics.AddActions(actions)
	metrics.AddItemErrors(len(run.Errors))
	metrics.ObserveRun(result, start)
	log.Info().
		Interface("actions", actions).
		Int("errors", len(run.Errors)).
		Dur("took", time.Since(start)).
		Msg("sync finished")
}
