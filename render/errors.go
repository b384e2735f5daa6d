package render

import (
	"errors"
	"fmt"
)

var (
	// ErrRenderTimeout marks a render that did not become ready in time.
	// The caller may retry.
	ErrRenderTimeout = errors.New("render: timeout")
	// ErrCapture marks a screenshot failure after a successful load.
	ErrCapture = errors.New("render: capture failed")
)

// Render stages reported by RenderTimeoutError.
const (
	StageQueued = "queued"
	StageLoad   = "load"
	StageFonts  = "fonts"
	StageGrace  = "grace"
)

// RenderTimeoutError reports a job whose page did not become ready before
// its deadline.
type RenderTimeoutError struct {
	Index int
	Stage string
	Err   error
}

func (e *RenderTimeoutError) Error() string {
	return fmt.Sprintf("render: job %d: timeout during %s: %v", e.Index, e.Stage, e.Err)
}

func (e *RenderTimeoutError) Unwrap() []error { return []error{ErrRenderTimeout, e.Err} }

// CaptureError reports a failed screenshot. Clip is the clip rectangle
// index, or -1 for a full-viewport capture.
type CaptureError struct {
	Index int
	Clip  int
	Err   error
}

func (e *CaptureError) Error() string {
	if e.Clip < 0 {
		return fmt.Sprintf("render: job %d: capture: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("render: job %d: capture clip %d: %v", e.Index, e.Clip, e.Err)
}

func (e *CaptureError) Unwrap() []error { return []error{ErrCapture, e.Err} }
