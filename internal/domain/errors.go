package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyRunning is returned when a run is started on a busy executor.
	ErrAlreadyRunning = errors.New("batch processing already in progress")
	// ErrNoRecords is returned when the source yields no tips for a run.
	ErrNoRecords = errors.New("no tips found for pipeline run")
	// ErrCancelled marks tips that were not finished because the run was cancelled.
	ErrCancelled = errors.New("processing cancelled")
)

// ConfigValidationError carries every message produced by config validation.
type ConfigValidationError struct {
	Problems []string
}

func (e *ConfigValidationError) Error() string {
	return "invalid pipeline config: " + strings.Join(e.Problems, "; ")
}

// EnhancementError wraps a failed enhancement of one tip.
type EnhancementError struct {
	TipID string
	Err   error
}

func (e *EnhancementError) Error() string {
	return fmt.Sprintf("enhance tip %s: %v", e.TipID, e.Err)
}

func (e *EnhancementError) Unwrap() error { return e.Err }

// ProductionError wraps a failed (tip, kind) production attempt.
type ProductionError struct {
	TipID string
	Kind  OutputKind
	Err   error
}

func (e *ProductionError) Error() string {
	return fmt.Sprintf("produce %s for tip %s: %v", e.Kind, e.TipID, e.Err)
}

func (e *ProductionError) Unwrap() error { return e.Err }
