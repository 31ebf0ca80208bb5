package model

import (
	"reflect"
	"testing"
)

func intp(v int) *int { return &v }

func TestAcceptedAlternatives(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want []string
	}{
		{"single", "Paris", []string{"paris"}},
		{"multiple trimmed and folded", "Au; Gold ;AURUM", []string{"au", "gold", "aurum"}},
		{"empty alternatives dropped", "a;;b; ", []string{"a", "b"}},
		{"unset key", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Question{Type: QuestionShortAnswer, CorrectText: tt.key}
			if got := q.AcceptedAlternatives(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AcceptedAlternatives() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{
			"valid single choice",
			Question{Type: QuestionSingleChoice, Options: []string{"a", "b"}, CorrectChoice: intp(1), Points: 1},
			false,
		},
		{
			"single choice index out of range",
			Question{Type: QuestionSingleChoice, Options: []string{"a", "b"}, CorrectChoice: intp(2), Points: 1},
			true,
		},
		{
			"single choice missing key",
			Question{Type: QuestionSingleChoice, Options: []string{"a", "b"}, Points: 1},
			true,
		},
		{
			"multi select needs a correct index",
			Question{Type: QuestionMultiSelect, Options: []string{"a", "b"}, Points: 1},
			true,
		},
		{
			"true_false rejects arbitrary text",
			Question{Type: QuestionTrueFalse, CorrectText: "yes", Points: 1},
			true,
		},
		{
			"true_false accepts mixed case",
			Question{Type: QuestionTrueFalse, CorrectText: " True ", Points: 1},
			false,
		},
		{
			"essay key is optional",
			Question{Type: QuestionEssay, Points: 5},
			false,
		},
		{
			"short answer key is optional",
			Question{Type: QuestionShortAnswer, Points: 2},
			false,
		},
		{
			"negative points rejected",
			Question{Type: QuestionEssay, Points: -1},
			true,
		},
		{
			"unknown type rejected",
			Question{Type: "matching", Points: 1},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.q.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
