package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrVideoJobFailed reports a video job that reached a terminal FAILED
	// status. It is distinct from TimeoutError so operators can tell a broken
	// job apart from a slow provider.
	ErrVideoJobFailed = errors.New("video generation job failed")
)

// Stage identifies the external dependency a pipeline error originated from.
type Stage string

const (
	StageChat        Stage = "chat"
	StageSpeech      Stage = "speech"
	StageVideoSubmit Stage = "video_submit"
	StageVideoPoll   Stage = "video_poll"
	StageImage       Stage = "image"
	StageUpload      Stage = "upload"
	StageTranscode   Stage = "transcode"
)

// ValidationError rejects a request before any external call or write happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// ExternalServiceError normalizes provider failures (network errors, non-2xx
// statuses, malformed payloads, error codes embedded in 200 bodies) so the
// orchestrator can apply a single fallback policy per stage.
type ExternalServiceError struct {
	Stage Stage
	Err   error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// TranscodeError reports a failed mux attempt. It is always recoverable: the
// caller falls back to the silent video.
type TranscodeError struct {
	Detail string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcode: %s: %v", e.Detail, e.Err)
	}
	return "transcode: " + e.Detail
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps session/message bookkeeping failures. These abort the
// request: without committed rows there is no coherent result to report.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// TimeoutError reports an exhausted polling budget without a terminal status.
type TimeoutError struct {
	Stage  Stage
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no terminal status within %s", e.Stage, e.Budget)
}
