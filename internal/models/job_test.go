package models

import (
	"testing"
)

func TestJobStageTransitions(t *testing.T) {
	allowed := []struct {
		from, to JobStage
	}{
		{StageUploaded, StageParsing},
		{StageParsing, StageMatching},
		{StageMatching, StageAwaitingConfirmation},
		{StageAwaitingConfirmation, StageImporting},
		{StageImporting, StageCategorizing},
		{StageCategorizing, StageCompleted},
	}

	for _, tt := range allowed {
		if !tt.from.CanTransitionTo(tt.to) {
			t.Errorf("expected %s -> %s to be allowed", tt.from, tt.to)
		}
	}

	denied := []struct {
		from, to JobStage
	}{
		{StageUploaded, StageMatching},
		{StageParsing, StageImporting},
		{StageMatching, StageImporting},
		{StageAwaitingConfirmation, StageCompleted},
		{StageCompleted, StageParsing},
		{StageCompleted, StageCompleted},
		{StageFailed, StageParsing},
	}

	for _, tt := range denied {
		if tt.from.CanTransitionTo(tt.to) {
			t.Errorf("expected %s -> %s to be denied", tt.from, tt.to)
		}
	}
}

func TestJobStageFailedReachability(t *testing.T) {
	nonTerminal := []JobStage{
		StageUploaded, StageParsing, StageMatching,
		StageAwaitingConfirmation, StageImporting, StageCategorizing,
	}
	for _, stage := range nonTerminal {
		if !stage.CanTransitionTo(StageFailed) {
			t.Errorf("expected %s -> failed to be allowed", stage)
		}
	}

	if StageCompleted.CanTransitionTo(StageFailed) {
		t.Error("expected completed -> failed to be denied")
	}
	if StageFailed.CanTransitionTo(StageFailed) {
		t.Error("expected failed -> failed to be denied")
	}
}

func TestJobStageProgressMonotonic(t *testing.T) {
	pipeline := []JobStage{
		StageUploaded, StageParsing, StageMatching,
		StageAwaitingConfirmation, StageImporting, StageCategorizing, StageCompleted,
	}

	last := -1
	for _, stage := range pipeline {
		p := stage.Progress()
		if p < last {
			t.Errorf("progress regressed at stage %s: %d < %d", stage, p, last)
		}
		if p < 0 || p > 100 {
			t.Errorf("progress out of range at stage %s: %d", stage, p)
		}
		last = p
	}

	if StageCompleted.Progress() != 100 {
		t.Errorf("expected completed progress 100, got %d", StageCompleted.Progress())
	}
}

func TestImportJobValidate(t *testing.T) {
	job := &ImportJob{
		ID:       "job-1",
		UserID:   "user-1",
		Stage:    StageUploaded,
		Progress: 5,
		FileName: "statement.csv",
	}
	if err := job.Validate(); err != nil {
		t.Errorf("expected valid job, got %v", err)
	}

	invalid := &ImportJob{ID: "job-2", UserID: "user-1", Stage: "sideways", Progress: 5}
	if err := invalid.Validate(); err == nil {
		t.Error("expected validation error for unknown stage")
	}

	outOfRange := &ImportJob{ID: "job-3", UserID: "user-1", Stage: StageParsing, Progress: 150}
	if err := outOfRange.Validate(); err == nil {
		t.Error("expected validation error for out-of-range progress")
	}
}
