package cropper

import "errors"

var (
	// ErrRenderUnavailable means no drawing surface could be made, or the
	// source image is not decoded. It aborts session creation or a commit.
	ErrRenderUnavailable = errors.New("render surface unavailable")
	// ErrEncodeFailed means rasterizing or encoding produced no data. The
	// session stays open so the commit can be retried.
	ErrEncodeFailed = errors.New("encode failed")
	// ErrSessionClosed is returned by any call on a committed or cancelled
	// editor.
	ErrSessionClosed = errors.New("crop session closed")
	// ErrCommitInProgress is returned when a commit starts while another one
	// on the same editor has not resolved.
	ErrCommitInProgress = errors.New("commit already in progress")
)
