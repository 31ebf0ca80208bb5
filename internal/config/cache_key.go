package config

import (
	"fmt"
	"strconv"
	"strings"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AttemptAnswersKey returns the cache key for a student's autosaved answers.
func (r *CacheKeyStruct) AttemptAnswersKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:answers", studentID, examID)
}

// AttemptStartKey returns the cache key for a student's attempt start time.
func (r *CacheKeyStruct) AttemptStartKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:attempt_start", studentID, examID)
}

// AttemptStartPattern returns the SCAN glob matching every attempt start key.
func (r *CacheKeyStruct) AttemptStartPattern() string {
	return "student:*:exam:*:attempt_start"
}

// ParseAttemptStartKey reverses AttemptStartKey. ok is false for keys that do
// not follow its layout.
func (r *CacheKeyStruct) ParseAttemptStartKey(key string) (examID string, studentID int, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "student" || parts[2] != "exam" || parts[4] != "attempt_start" {
		return "", 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return parts[3], id, true
}

// ExamPayloadKey returns the cache key for an exam's student-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

var CacheKey = NewCacheKeyStruct()
