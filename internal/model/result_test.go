package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestResultIDDeterministic(t *testing.T) {
	examID := uuid.New()
	startedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	a := ResultID(examID, 7, startedAt)
	b := ResultID(examID, 7, startedAt)
	if a != b {
		t.Errorf("same attempt produced different IDs: %s vs %s", a, b)
	}

	// Same instant in a different zone is the same attempt.
	jakarta := time.FixedZone("WIB", 7*3600)
	c := ResultID(examID, 7, startedAt.In(jakarta))
	if a != c {
		t.Errorf("timezone changed the ID: %s vs %s", a, c)
	}

	if a == ResultID(examID, 8, startedAt) {
		t.Error("different students must get different IDs")
	}
	if a == ResultID(uuid.New(), 7, startedAt) {
		t.Error("different exams must get different IDs")
	}
	if a == ResultID(examID, 7, startedAt.Add(time.Second)) {
		t.Error("a retake at a later start must get a different ID")
	}
}

func TestAnswerIsEmpty(t *testing.T) {
	zero := 0
	empty := ""
	text := "x"

	tests := []struct {
		name string
		ans  Answer
		want bool
	}{
		{"zero value", Answer{}, true},
		{"empty text", Answer{Text: &empty}, true},
		{"choice zero is an answer", Answer{Choice: &zero}, false},
		{"choices", Answer{Choices: []int{1}}, false},
		{"text", Answer{Text: &text}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ans.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}
