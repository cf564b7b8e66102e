package main

import (
	"context"
	"fmt"
	"io"

	"cropstudio/cropper"
)

// EditorCropper is an implementation of the Cropper interface that drives a
// cropper.Editor with recorded input.
type EditorCropper struct {
	Config  cropper.Config
	Options []cropper.Option
}

// Crop decodes the image read from r, replays the script's events against a
// fresh editor and commits it.
func (c *EditorCropper) Crop(ctx context.Context, r io.Reader, script Script) (*cropper.Result, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	editor, err := cropper.CreateSession(ctx, buf, script.Spec, c.Config, c.Options...)
	if err != nil {
		return nil, err
	}
	for _, ev := range script.Events {
		ev.Apply(editor)
	}

	return editor.Commit(ctx)
}

func NewEditorCropper(cfg cropper.Config, opts ...cropper.Option) *EditorCropper {
	return &EditorCropper{Config: cfg, Options: opts}
}
