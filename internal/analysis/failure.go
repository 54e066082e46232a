package analysis

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a terminal per-clip failure.
type FailureKind string

const (
	FailInvalidInput    FailureKind = "invalid_input"
	FailUnsupported     FailureKind = "unsupported"
	FailNotFound        FailureKind = "not_found"
	FailAccessDenied    FailureKind = "access_denied"
	FailTimeout         FailureKind = "timeout"
	FailTooLarge        FailureKind = "too_large"
	FailNetwork         FailureKind = "network_error"
	FailFrameExtraction FailureKind = "frame_extraction_failed"
	FailParse           FailureKind = "parse_failure"
	FailCancelled       FailureKind = "cancelled"
)

// Stage names the pipeline state a clip was in when it failed.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageValidating   Stage = "validating"
	StageDownloading  Stage = "downloading"
	StageSampling     Stage = "sampling"
	StageTranscribing Stage = "transcribing"
	StageComposing    Stage = "composing"
	StageInferring    Stage = "inferring"
	StageParsing      Stage = "parsing"
	StagePersisting   Stage = "persisting"
)

// Failure is a classified terminal error for one clip. Transcription
// never produces one; every other stage may.
type Failure struct {
	Kind   FailureKind
	Stage  Stage
	Reason string
	Cause  error
}

func NewFailure(kind FailureKind, stage Stage, reason string) *Failure {
	return &Failure{Kind: kind, Stage: stage, Reason: reason}
}

func WrapFailure(kind FailureKind, stage Stage, reason string, cause error) *Failure {
	return &Failure{Kind: kind, Stage: stage, Reason: reason, Cause: cause}
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", f.Kind, f.Stage, f.Reason, f.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Kind, f.Stage, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// AsFailure extracts a *Failure from err, wrapping unclassified errors
// as network errors so callers always see a kind. An error chain that
// carries context.Canceled is always reported as cancelled, whatever
// kind the stage that observed it assigned; a clip abandoned mid-flight
// must never masquerade as a network or extraction problem.
func AsFailure(err error, stage Stage) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		if f.Kind != FailCancelled && errors.Is(err, context.Canceled) {
			return WrapFailure(FailCancelled, f.Stage, "analysis cancelled", err)
		}
		return f
	}
	if errors.Is(err, context.Canceled) {
		return WrapFailure(FailCancelled, stage, "analysis cancelled", err)
	}
	return WrapFailure(FailNetwork, stage, "unclassified error", err)
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind FailureKind) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}

// FailureDescriptor is the externally visible form of a Failure,
// bound to the clip it belongs to.
type FailureDescriptor struct {
	ClipID    string      `json:"clip_id,omitempty"`
	SourceURL string      `json:"video_url"`
	Kind      FailureKind `json:"kind"`
	Stage     Stage       `json:"stage"`
	Reason    string      `json:"reason"`
}

// Describe binds a failure to its clip for batch reporting.
func (f *Failure) Describe(ref ClipReference) FailureDescriptor {
	return FailureDescriptor{
		ClipID:    ref.ID,
		SourceURL: ref.SourceURL,
		Kind:      f.Kind,
		Stage:     f.Stage,
		Reason:    f.Reason,
	}
}
