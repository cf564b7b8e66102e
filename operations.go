package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"cropstudio/cropper"
)

type EventKind string

const (
	EventDown  EventKind = "down"
	EventMove  EventKind = "move"
	EventUp    EventKind = "up"
	EventLeave EventKind = "leave"
	EventWheel EventKind = "wheel"
)

// Event is one recorded input event in surface-local coordinates.
type Event struct {
	Kind   EventKind `json:"type"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	DeltaY float64   `json:"deltaY,omitempty"`
}

func (e *Event) UnmarshalJSON(data []byte) error {
	type event Event
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch ev.Kind {
	case EventDown, EventMove, EventUp, EventLeave, EventWheel:
	default:
		return fmt.Errorf("unknown event %q", ev.Kind)
	}
	*e = Event(ev)
	return nil
}

// Apply forwards the event to the editor.
func (e Event) Apply(editor *cropper.Editor) {
	switch e.Kind {
	case EventDown:
		editor.PointerDown(e.X, e.Y)
	case EventMove:
		editor.PointerMove(e.X, e.Y)
	case EventUp:
		editor.PointerUp()
	case EventLeave:
		editor.PointerLeave()
	case EventWheel:
		editor.Wheel(e.DeltaY, e.X, e.Y)
	}
}

// Script is a recorded crop session for one image.
type Script struct {
	Filename string             `json:"filename"`
	Spec     cropper.OutputSpec `json:"spec"`
	Events   []Event            `json:"events"`
}

func (s Script) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", s.Filename, s.Spec)
	for _, ev := range s.Events {
		fmt.Fprintf(&b, " %s(%g,%g,%g)", ev.Kind, ev.X, ev.Y, ev.DeltaY)
	}
	return b.String()
}

// ID is a stable digest of the script, used to name its output.
func (s Script) ID() string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s.String())))[:12]
}

// readScripts parses one Script per non-empty line.
func readScripts(r io.Reader) ([]Script, error) {
	var scripts []Script
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var s Script
		if err := json.Unmarshal(text, &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if s.Filename == "" {
			return nil, fmt.Errorf("line %d: missing filename", line)
		}
		scripts = append(scripts, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scripts: %w", err)
	}
	return scripts, nil
}

type Cropper interface {
	Crop(ctx context.Context, r io.Reader, script Script) (*cropper.Result, error)
}

type ScriptExecutor struct {
	BaseDir   string
	OutputDir string
	Cropper   Cropper
}

func (r ScriptExecutor) Exec(ctx context.Context, scripts []Script) error {
	if len(scripts) == 0 {
		log.Ctx(ctx).Warn().Msg("no scripts to execute")
		return nil
	}

	pooler := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.NumCPU())

	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", r.OutputDir, err)
	}
	for _, script := range scripts {
		pooler.Go(func(ctx context.Context) error {
			if err := r.executeScript(ctx, script); err != nil {
				log.Ctx(ctx).Error().Err(err).
					Str("filename", script.Filename).
					Msg("failed to execute script")
				return err
			}
			return nil
		})
	}

	if err := pooler.Wait(); err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Msg("finished with errors")
		return err
	}

	return nil
}

func (r ScriptExecutor) executeScript(ctx context.Context, script Script) error {
	log.Ctx(ctx).Info().Str("filename", script.Filename).Stringer("spec", script.Spec).Msg("cropping")
	sourcePath, err := resolvePath(r.BaseDir, script.Filename)
	if err != nil {
		return err
	}
	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", sourcePath, err)
	}
	defer f.Close()

	res, err := r.Cropper.Crop(ctx, f, script)
	if err != nil {
		return fmt.Errorf("failed to crop %s: %w", script.Filename, err)
	}

	_, err = writeResult(r.OutputDir, script.Filename, script.ID(), res)
	return err
}

// writeResult stores res in dir as <base>-<id>.<ext> and returns the file name.
func writeResult(dir, filename, id string, res *cropper.Result) (string, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	newName := fmt.Sprintf("%s-%s%s", base, id, res.Format.Ext())
	if err := os.WriteFile(filepath.Join(dir, newName), res.Buffer, 0644); err != nil {
		return "", fmt.Errorf("failed to write cropped file %s: %w", newName, err)
	}
	return newName, nil
}

// resolvePath joins name onto root without letting it escape root.
func resolvePath(root, name string) (string, error) {
	if name == "" {
		return "", errors.New("empty file name")
	}
	clean := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(name))
	return filepath.Join(root, clean), nil
}
