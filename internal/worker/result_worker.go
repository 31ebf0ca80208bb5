package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examroom/examroom-backend/internal/config"
	"github.com/examroom/examroom-backend/internal/model"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker drains the result persistence queue into Postgres. Result IDs
// are deterministic per attempt, so replays from a requeue or a retried
// submission land on ON CONFLICT DO NOTHING instead of duplicating rows.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*model.Result, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

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
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res model.Result
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert wrapper
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.Result) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk result insert failed, using fallback")

		for _, res := range batch {
			if err := w.persistSingle(ctx, res); err != nil {
				w.log.Error().Err(err).Str("resultId", res.ID.String()).Msg("Single insert failed, requeueing")
				raw, _ := json.Marshal(res)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	// Results are durable → drop the Redis attempt state they supersede.
	w.bulkClearAttemptState(ctx, batch)
}

const insertResultSQL = `
	INSERT INTO results (id, exam_id, student_id, answers, score, total_points, percentage, passed,
	                     started_at, completed_at, time_spent_seconds, tab_switches)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO NOTHING`

// bulkInsert pushes the whole batch through one pipelined round trip.
func (w *ResultWorker) bulkInsert(ctx context.Context, batch []*model.Result) error {
	b := &pgx.Batch{}
	for _, res := range batch {
		answers, err := json.Marshal(res.Answers)
		if err != nil {
			return err
		}
		b.Queue(insertResultSQL,
			res.ID, res.ExamID, res.StudentID, answers, res.Score, res.TotalPoints,
			res.Percentage, res.Passed, res.StartedAt, res.CompletedAt,
			res.TimeSpentSeconds, res.TabSwitches)
	}
	return w.pool.SendBatch(ctx, b).Close()
}

// ----------------------------------------------------------------
// Bulk Redis DEL for superseded attempt state
// ----------------------------------------------------------------

func (w *ResultWorker) bulkClearAttemptState(ctx context.Context, batch []*model.Result) {
	pipe := w.rdb.Pipeline()
	for _, res := range batch {
		pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(res.ExamID.String(), res.StudentID))
		pipe.Del(ctx, config.CacheKey.AttemptStartKey(res.ExamID.String(), res.StudentID))
	}
	_, _ = pipe.Exec(ctx)
}

// ----------------------------------------------------------------
// Fallback single insert
// ----------------------------------------------------------------

func (w *ResultWorker) persistSingle(ctx context.Context, res *model.Result) error {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx, insertResultSQL,
		res.ID, res.ExamID, res.StudentID, answers, res.Score, res.TotalPoints,
		res.Percentage, res.Passed, res.StartedAt, res.CompletedAt,
		res.TimeSpentSeconds, res.TabSwitches)
	return err
}
