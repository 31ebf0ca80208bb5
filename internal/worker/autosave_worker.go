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
	AutosaveBatchSize    = 100
	AutosaveBatchTimeout = 2 * time.Second
	AutosavePollTimeout  = 1 * time.Second
)

// AutosaveWorker drains the answer persistence queue into the attempt_answers
// audit table. The Redis hash stays the source of truth for reconnect
// restores; this table is the durable trail behind it.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AutosaveWorker started")

	batch := make([]*model.AutosavePayload, 0, AutosaveBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AutosaveBatchSize || time.Since(lastFlush) >= AutosaveBatchTimeout) {

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
			item, err := w.rdb.BLPop(ctx, AutosavePollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p model.AutosavePayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *AutosaveWorker) flushSafe(ctx context.Context, batch []*model.AutosavePayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk answer upsert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("Single answer upsert failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
			}
		}
	}
}

// bulkUpsert writes the batch in one UNNEST statement. Later saves for the
// same question overwrite earlier ones, matching the engine's
// last-write-wins answer slots.
func (w *AutosaveWorker) bulkUpsert(ctx context.Context, batch []*model.AutosavePayload) error {
	n := len(batch)
	examIDs := make([]uuid.UUID, 0, n)
	students := make([]int, 0, n)
	questionIDs := make([]uuid.UUID, 0, n)
	answers := make([][]byte, 0, n)
	savedAts := make([]time.Time, 0, n)

	for _, p := range batch {
		raw, err := json.Marshal(p.Answer)
		if err != nil {
			return err
		}
		examIDs = append(examIDs, p.ExamID)
		students = append(students, p.StudentID)
		questionIDs = append(questionIDs, p.QuestionID)
		answers = append(answers, raw)
		savedAts = append(savedAts, p.SavedAt)
	}

	query := `
		INSERT INTO attempt_answers (exam_id, student_id, question_id, answer, saved_at)
		SELECT u.exam_id, u.student_id, u.question_id, u.answer, u.saved_at
		FROM UNNEST(
			$1::uuid[],
			$2::int[],
			$3::uuid[],
			$4::jsonb[],
			$5::timestamptz[]
		) AS u (exam_id, student_id, question_id, answer, saved_at)
		ON CONFLICT (exam_id, student_id, question_id)
		DO UPDATE SET answer = EXCLUDED.answer, saved_at = EXCLUDED.saved_at
		WHERE attempt_answers.saved_at <= EXCLUDED.saved_at`

	_, err := w.pool.Exec(ctx, query, examIDs, students, questionIDs, answers, savedAts)
	return err
}

func (w *AutosaveWorker) persistSingle(ctx context.Context, p *model.AutosavePayload) error {
	raw, err := json.Marshal(p.Answer)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx,
		`INSERT INTO attempt_answers (exam_id, student_id, question_id, answer, saved_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (exam_id, student_id, question_id)
		 DO UPDATE SET answer = EXCLUDED.answer, saved_at = EXCLUDED.saved_at
		 WHERE attempt_answers.saved_at <= EXCLUDED.saved_at`,
		p.ExamID, p.StudentID, p.QuestionID, raw, p.SavedAt)
	return err
}
