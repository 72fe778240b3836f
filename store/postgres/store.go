// Package postgres implements the Courier store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	courier "github.com/datafield/courier"
	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
	courierstore "github.com/datafield/courier/store"
)

// compile-time interface check
var _ courierstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("courier/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("courier/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Hook Store ====================

func (s *Store) CreateHook(ctx context.Context, h *hook.Hook) error {
	m := toHookModel(h)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetHook(ctx context.Context, hookID id.ID) (*hook.Hook, error) {
	m := new(hookModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", hookID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrHookNotFound
		}
		return nil, err
	}
	return fromHookModel(m)
}

func (s *Store) UpdateHook(ctx context.Context, h *hook.Hook) error {
	m := toHookModel(h)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return courier.ErrHookNotFound
	}
	return nil
}

func (s *Store) DeleteHook(ctx context.Context, hookID id.ID) error {
	// Logs cascade via the hook_id foreign key.
	res, err := s.pg.NewDelete((*hookModel)(nil)).
		Where("id = $1", hookID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return courier.ErrHookNotFound
	}
	return nil
}

func (s *Store) ListHooks(ctx context.Context, projectID string, opts hook.ListOpts) ([]*hook.Hook, error) {
	var models []hookModel
	q := s.pg.NewSelect(&models).Where("project_id = $1", projectID)

	if opts.Active != nil {
		q = q.Where("active = $2", *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*hook.Hook, len(models))
	for i := range models {
		h, err := fromHookModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = h
	}
	return result, nil
}

func (s *Store) ListActiveHooks(ctx context.Context, projectID string) ([]*hook.Hook, error) {
	var models []hookModel
	if err := s.pg.NewSelect(&models).
		Where("project_id = $1", projectID).
		Where("active = true").
		OrderExpr("created_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*hook.Hook, len(models))
	for i := range models {
		h, err := fromHookModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = h
	}
	return result, nil
}

func (s *Store) SetActive(ctx context.Context, hookID id.ID, active bool) error {
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*hookModel)(nil)).
		Set("active = $1", active).
		Set("updated_at = $2", now).
		Where("id = $3", hookID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return courier.ErrHookNotFound
	}
	return nil
}

// ==================== Log Store ====================

func (s *Store) CreateLogIfAbsent(ctx context.Context, l *hooklog.Log) (bool, error) {
	m := toLogModel(l)
	res, err := s.pg.NewInsert(m).
		OnConflict("(hook_id, submission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) GetLog(ctx context.Context, logID id.ID) (*hooklog.Log, error) {
	m := new(logModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", logID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrLogNotFound
		}
		return nil, err
	}
	return fromLogModel(m)
}

func (s *Store) GetLogForSubmission(ctx context.Context, hookID id.ID, submissionID int64) (*hooklog.Log, error) {
	m := new(logModel)
	err := s.pg.NewSelect(m).
		Where("hook_id = $1", hookID.String()).
		Where("submission_id = $2", submissionID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrLogNotFound
		}
		return nil, err
	}
	return fromLogModel(m)
}

func (s *Store) ListLogs(ctx context.Context, hookID id.ID, opts hooklog.ListOpts) ([]*hooklog.Log, error) {
	var models []logModel
	q := s.pg.NewSelect(&models).Where("hook_id = $1", hookID.String())

	argIdx := 1
	if opts.State != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("state = $%d", argIdx), string(*opts.State))
	}
	if opts.ModifiedAfter != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("updated_at >= $%d", argIdx), *opts.ModifiedAfter)
	}
	if opts.ModifiedBefore != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("updated_at <= $%d", argIdx), *opts.ModifiedBefore)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*hooklog.Log, len(models))
	for i := range models {
		l, err := fromLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

func (s *Store) Apply(ctx context.Context, t hooklog.Transition) (*hooklog.Log, error) {
	inc := 0
	if t.IncrementTries {
		inc = 1
	}

	// The state guard in the WHERE clause makes the whole transition a
	// single atomic statement: PostgreSQL re-evaluates the guard under the
	// row lock, so a concurrent writer either wins cleanly or is rejected.
	var models []logModel
	err := s.pg.NewRaw(`
		UPDATE courier_hook_logs
		SET state = $1,
		    status_code = $2,
		    message = $3,
		    tries = tries + $4,
		    next_attempt_at = COALESCE($5, next_attempt_at),
		    updated_at = NOW()
		WHERE id = $6 AND state IN (`+stateList(t.From)+`)
		RETURNING *
	`, string(t.State), t.StatusCode, t.Message, inc, t.NextAttemptAt, t.LogID.String()).
		Scan(ctx, &models)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		if _, getErr := s.GetLog(ctx, t.LogID); getErr != nil {
			return nil, getErr
		}
		return nil, hooklog.ErrTransitionRejected
	}
	return fromLogModel(&models[0])
}

func (s *Store) Dequeue(ctx context.Context, limit int) ([]*hooklog.Log, error) {
	// FOR UPDATE SKIP LOCKED makes concurrent engines claim disjoint rows.
	// Joining on the hook keeps logs of inactive hooks out of the queue.
	var models []logModel
	err := s.pg.NewRaw(`
		UPDATE courier_hook_logs
		SET state = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT l.id FROM courier_hook_logs l
			JOIN courier_hooks h ON h.id = l.hook_id
			WHERE l.state = 'pending' AND l.next_attempt_at <= NOW() AND h.active
			ORDER BY l.next_attempt_at ASC
			LIMIT $1
			FOR UPDATE OF l SKIP LOCKED
		)
		RETURNING *
	`, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*hooklog.Log, len(models))
	for i := range models {
		l, err := fromLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

func (s *Store) ListStalledPending(ctx context.Context, before time.Time) ([]*hooklog.Log, error) {
	var models []logModel
	err := s.pg.NewRaw(`
		SELECT l.* FROM courier_hook_logs l
		JOIN courier_hooks h ON h.id = l.hook_id
		WHERE l.state = 'pending'
		  AND l.status_code = 0
		  AND l.message = ''
		  AND l.updated_at < $1
		  AND h.active
		ORDER BY l.updated_at ASC
	`, before).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*hooklog.Log, len(models))
	for i := range models {
		l, err := fromLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

func (s *Store) ListZombieProcessing(ctx context.Context, before time.Time) ([]*hooklog.Log, error) {
	var models []logModel
	if err := s.pg.NewSelect(&models).
		Where("state = $1", string(hooklog.StateProcessing)).
		Where("updated_at < $2", before).
		OrderExpr("updated_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*hooklog.Log, len(models))
	for i := range models {
		l, err := fromLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

func (s *Store) CountByState(ctx context.Context, hookID id.ID) (map[hooklog.State]int64, error) {
	states := []hooklog.State{
		hooklog.StatePending,
		hooklog.StateProcessing,
		hooklog.StateSuccess,
		hooklog.StateFailed,
	}
	counts := make(map[hooklog.State]int64, len(states))
	for _, st := range states {
		count, err := s.pg.NewSelect((*logModel)(nil)).
			Where("hook_id = $1", hookID.String()).
			Where("state = $2", string(st)).
			Count(ctx)
		if err != nil {
			return nil, err
		}
		counts[st] = count
	}
	return counts, nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	count, err := s.pg.NewSelect((*logModel)(nil)).
		Where("state = $1", string(hooklog.StatePending)).
		Count(ctx)
	return count, err
}

// stateList renders a From guard as a SQL IN list. States are internal
// constants, never user input.
func stateList(states []hooklog.State) string {
	quoted := make([]string, len(states))
	for i, st := range states {
		quoted[i] = "'" + string(st) + "'"
	}
	return strings.Join(quoted, ", ")
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
