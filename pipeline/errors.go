package pipeline

import (
	"fmt"
)

// Stage names a step of the per-tick pipeline.
type Stage string

const (
	StageCapture   Stage = "capture"
	StagePreview   Stage = "preview"
	StageInference Stage = "inference"
	StageDecode    Stage = "decode"
	StageSerialize Stage = "serialize"
	StagePublish   Stage = "publish"
)

// StageError is returned by Tick when a stage fails. Only the current tick is aborted.
type StageError struct {
	Stage Stage
	Cause error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
	}
	return string(e.Stage)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

func stageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Cause: err}
}
