package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/examroom/examroom-backend/internal/config"
	"github.com/examroom/examroom-backend/internal/handler"
	"github.com/examroom/examroom-backend/internal/middleware"
	"github.com/examroom/examroom-backend/internal/model"
	"github.com/examroom/examroom-backend/internal/response"
	"github.com/examroom/examroom-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exam    *handler.ExamHandler
	Grading *handler.GradingHandler
	Student *handler.StudentHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	rdb *redis.Client,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Compress larger bodies (question sets, result breakdowns).
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.RateLimit(rdb, 30, time.Minute))
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
		auth.POST("/logout", middleware.RequireAuth(authService), handlers.Auth.Logout)
	}

	// ─── 2. Teacher Group (JWT + Role) ─────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleTeacher),
	)
	{
		teacherAPI.GET("/exams", handlers.Exam.List)
		teacherAPI.POST("/exams", handlers.Exam.Create)
		teacherAPI.GET("/exams/:exam_id", handlers.Exam.Get)
		teacherAPI.PATCH("/exams/:exam_id", handlers.Exam.Update)
		teacherAPI.DELETE("/exams/:exam_id", handlers.Exam.Delete)
		teacherAPI.GET("/exams/:exam_id/questions", handlers.Exam.Questions)
		teacherAPI.PUT("/exams/:exam_id/questions", handlers.Exam.ReplaceQuestions)
		teacherAPI.POST("/exams/:exam_id/publish", handlers.Exam.Publish)
		teacherAPI.POST("/exams/:exam_id/archive", handlers.Exam.Archive)
		teacherAPI.GET("/exams/:exam_id/results", handlers.Grading.ExamResults)
		teacherAPI.GET("/exams/:exam_id/stats", handlers.Grading.ExamStats)
		teacherAPI.POST("/results/:result_id/grade", handlers.Grading.Grade)
	}

	// ─── 3. Student Group (JWT + Role) ─────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleStudent),
	)
	{
		studentAPI.GET("/exams", handlers.Student.Lobby)
		studentAPI.GET("/exams/:exam_id", handlers.Student.ExamDetail)
		studentAPI.GET("/results", handlers.Student.Results)
		studentAPI.GET("/results/:result_id", handlers.Student.Result)
	}

	// ─── 4. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireAuth(authService),
		middleware.RequireRole(model.RoleStudent),
	)
	{
		ws.GET("/student/exams/:exam_id/attempt", handlers.WS.AttemptStream)
	}

	return router
}
