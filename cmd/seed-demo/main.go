package main

import (
	"context"
	"fmt"
	"time"

	"github.com/examroom/examroom-backend/internal/config"
	"github.com/examroom/examroom-backend/internal/database"
	"github.com/examroom/examroom-backend/internal/logger"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/repository"
	"github.com/examroom/examroom-backend/internal/service"
)

// Seeds one teacher, three students, and a published demo exam covering every
// question type. Intended for local development against a fresh database.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	authService := service.NewAuthService(cfg, userRepo, rdb)
	examService := service.NewExamService(examRepo, questionRepo, rdb, log)

	teacher, err := authService.Register(ctx, &model.RegisterRequest{
		Name:     "Demo Teacher",
		Email:    "teacher@example.com",
		Password: "password123",
		Role:     string(model.RoleTeacher),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed teacher")
	}

	for i := 1; i <= 3; i++ {
		if _, err := authService.Register(ctx, &model.RegisterRequest{
			Name:     fmt.Sprintf("Demo Student %d", i),
			Email:    fmt.Sprintf("student%d@example.com", i),
			Password: "password123",
			Role:     string(model.RoleStudent),
		}); err != nil {
			log.Fatal().Err(err).Int("n", i).Msg("Failed to seed student")
		}
	}

	endAt := time.Now().Add(30 * 24 * time.Hour)
	exam, err := examService.Create(ctx, teacher.ID, &model.CreateExamRequest{
		Title:           "General Knowledge Demo",
		Description:     "Covers every supported question type.",
		DurationMinutes: 30,
		Settings: model.ExamSettings{
			EndAt:                  &endAt,
			ShuffleQuestions:       true,
			ShuffleOptions:         true,
			ShowResultsImmediately: true,
			PassingScore:           60,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed exam")
	}

	one := 1
	if _, err := examService.ReplaceQuestions(ctx, teacher.ID, exam.ID, &model.ReplaceQuestionsRequest{
		Questions: []model.QuestionInput{
			{
				Type:          string(model.QuestionSingleChoice),
				Prompt:        "Which planet is known as the Red Planet?",
				Options:       []string{"Venus", "Mars", "Jupiter", "Mercury"},
				CorrectChoice: &one,
				Points:        2,
				Category:      "science",
			},
			{
				Type:        string(model.QuestionTrueFalse),
				Prompt:      "The Pacific is the largest ocean on Earth.",
				CorrectText: "true",
				Points:      1,
				Category:    "geography",
			},
			{
				Type:           string(model.QuestionMultiSelect),
				Prompt:         "Select all prime numbers.",
				Options:        []string{"2", "4", "7", "9"},
				CorrectChoices: []int{0, 2},
				Points:         3,
				Category:       "math",
			},
			{
				Type:        string(model.QuestionShortAnswer),
				Prompt:      "What is the chemical symbol for gold?",
				CorrectText: "Au; gold",
				Points:      2,
				Category:    "science",
			},
			{
				Type:        string(model.QuestionFillBlank),
				Prompt:      "The capital of France is ____.",
				CorrectText: "Paris",
				Points:      1,
				Category:    "geography",
			},
			{
				Type:     string(model.QuestionEssay),
				Prompt:   "Describe the water cycle in your own words.",
				Points:   5,
				Category: "science",
			},
		},
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed questions")
	}

	if _, err := examService.Publish(ctx, teacher.ID, exam.ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish exam")
	}

	fmt.Printf("Seeded teacher teacher@example.com, 3 students, and exam %s\n", exam.ID)
}
