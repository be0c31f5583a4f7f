package logger

import (
	"time"
)

// StageLogger logs the lifecycle of one pipeline stage within an import
// job: start, row-level warnings, and completion with timing.
type StageLogger struct {
	logger    Logger
	stage     string
	startTime time.Time
}

// NewStageLogger starts timing a pipeline stage for the given job.
func NewStageLogger(logger Logger, jobID, stage string) *StageLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	sl := &StageLogger{
		logger:    logger.WithJob(jobID).WithField("stage", stage),
		stage:     stage,
		startTime: time.Now(),
	}

	sl.logger.Info("Stage started")
	return sl
}

// Progress logs item-level progress within the stage.
func (sl *StageLogger) Progress(message string, processed, total int) {
	fields := Fields{
		"processed": processed,
		"total":     total,
	}
	sl.logger.WithFields(fields).Info(message)
}

// Warn logs a recoverable problem inside the stage, such as a dropped row.
func (sl *StageLogger) Warn(message string, fields Fields) {
	sl.logger.WithFields(fields).Warn(message)
}

// Done logs successful stage completion with duration and result counts.
func (sl *StageLogger) Done(fields Fields) {
	if fields == nil {
		fields = Fields{}
	}
	fields["duration"] = time.Since(sl.startTime).String()
	sl.logger.WithFields(fields).Info("Stage completed")
}

// Failed logs stage failure with duration.
func (sl *StageLogger) Failed(err error) {
	sl.logger.WithError(err).
		WithField("duration", time.Since(sl.startTime).String()).
		Error("Stage failed")
}
