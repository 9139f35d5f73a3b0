package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldJobID identifies the job posting a log entry refers to.
	FieldJobID = "job_id"
	// FieldCandidateID identifies the candidate a log entry refers to.
	FieldCandidateID = "candidate_id"
	// FieldStrategy names the scoring strategy that produced a score.
	FieldStrategy = "strategy"
	// FieldStage names the step of a worker run.
	FieldStage = "stage"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// WithCommonFields attaches the AI provider and model fields.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// MatchFields returns the fields identifying a (job, candidate) pair. Empty ids are skipped.
func MatchFields(jobID, candidateID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldJobID, Value: jobID},
		StringField{Key: FieldCandidateID, Value: candidateID},
	)
}

// ForMatch returns a child logger scoped to a (job, candidate) pair.
func ForMatch(logger *zap.Logger, jobID, candidateID string) *zap.Logger {
	return WithFields(logger, MatchFields(jobID, candidateID)...)
}
