package config

import "testing"

func TestParseAttemptStartKeyRoundTrip(t *testing.T) {
	examID := "0d4f3a7e-9a4b-4e0e-8d2a-1f2e3c4b5a69"
	key := CacheKey.AttemptStartKey(examID, 42)

	gotExam, gotStudent, ok := CacheKey.ParseAttemptStartKey(key)
	if !ok {
		t.Fatalf("ParseAttemptStartKey(%q) not ok", key)
	}
	if gotExam != examID || gotStudent != 42 {
		t.Errorf("ParseAttemptStartKey(%q) = (%q, %d), want (%q, 42)", key, gotExam, gotStudent, examID)
	}
}

func TestParseAttemptStartKeyRejectsForeignKeys(t *testing.T) {
	keys := []string{
		"login:42",
		"student:42:exam:abc:answers",
		"exam:abc:payload",
		"student:notanumber:exam:abc:attempt_start",
		"",
	}
	for _, key := range keys {
		if _, _, ok := CacheKey.ParseAttemptStartKey(key); ok {
			t.Errorf("ParseAttemptStartKey(%q) ok, want rejected", key)
		}
	}
}
