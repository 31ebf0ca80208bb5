package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examroom/examroom-backend/internal/config"
	"github.com/examroom/examroom-backend/internal/model"
)

const (
	CheatBatchSize    = 100
	CheatBatchTimeout = 2 * time.Second
	CheatPollTimeout  = 1 * time.Second
)

// CheatWorker drains queued tab-switch events into the cheat_events table.
// Events are advisory context for teachers reviewing results; losing one to a
// crash is acceptable, duplicating one is harmless.
type CheatWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewCheatWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *CheatWorker {
	return &CheatWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "cheat_worker").Logger(),
	}
}

func (w *CheatWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CheatWorker started")

	batch := make([]*model.CheatEventPayload, 0, CheatBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= CheatBatchSize || time.Since(lastFlush) >= CheatBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, CheatPollTimeout, config.WorkerKey.PersistCheatsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p model.CheatEventPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *CheatWorker) flushSafe(ctx context.Context, batch []*model.CheatEventPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk cheat insert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("Single cheat insert failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistCheatsQueue, raw)
			}
		}
	}
}

func (w *CheatWorker) bulkInsert(ctx context.Context, batch []*model.CheatEventPayload) error {
	n := len(batch)
	examIDs := make([]uuid.UUID, 0, n)
	students := make([]int, 0, n)
	counts := make([]int, 0, n)
	occurredAts := make([]time.Time, 0, n)

	for _, p := range batch {
		examIDs = append(examIDs, p.ExamID)
		students = append(students, p.StudentID)
		counts = append(counts, p.Count)
		occurredAts = append(occurredAts, p.OccurredAt)
	}

	query := `
		INSERT INTO cheat_events (exam_id, student_id, tab_switch_count, occurred_at)
		SELECT u.exam_id, u.student_id, u.tab_switch_count, u.occurred_at
		FROM UNNEST(
			$1::uuid[],
			$2::int[],
			$3::int[],
			$4::timestamptz[]
		) AS u (exam_id, student_id, tab_switch_count, occurred_at)`

	_, err := w.pool.Exec(ctx, query, examIDs, students, counts, occurredAts)
	return err
}

func (w *CheatWorker) persistSingle(ctx context.Context, p *model.CheatEventPayload) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO cheat_events (exam_id, student_id, tab_switch_count, occurred_at)
		 VALUES ($1, $2, $3, $4)`,
		p.ExamID, p.StudentID, p.Count, p.OccurredAt)
	return err
}
