package main

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cropstudio/cropper"
)

//go:embed static
var staticFS embed.FS
var isDebug = os.Getenv("DEBUG") == "1"

type Config struct {
	RootDir          string
	OutputDir        string
	Crop             cropper.Config
	OnBeforeShutdown func()
	OnReady          func(addr string)
	OnCommit         func(file string, res *cropper.Result)
}

type WebApp struct {
	config       Config
	sessions     *SessionStore
	app          *fiber.App
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

func NewWebApp(config Config) *WebApp {
	a := &WebApp{
		config:     config,
		sessions:   NewSessionStore(),
		shutdownCh: make(chan struct{}),
	}
	a.app = a.newFiberApp()
	return a
}

func (a *WebApp) Shutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdownCh)
	})
}

// Handler exposes the fiber app, mostly for app.Test.
func (a *WebApp) Handler() *fiber.App {
	return a.app
}

func (a *WebApp) Run(ctx context.Context) error {
	a.app.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := a.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-a.shutdownCh:
		}
		if fn := a.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		a.sessions.Close()
		if err := a.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown web application")
		}
	}()

	// Let the OS assign a random available port
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", 0))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if err := a.app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// errorStatus maps handler errors to a status code and client message.
func errorStatus(err error) (int, string) {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.Is(err, cropper.ErrSessionClosed):
		return http.StatusGone, err.Error()
	case errors.Is(err, cropper.ErrCommitInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, cropper.ErrRenderUnavailable):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, cropper.ErrEncodeFailed):
		return http.StatusInternalServerError, err.Error()
	}
	return http.StatusInternalServerError, "Internal Server Error"
}

func (a *WebApp) newFiberApp() *fiber.App {
	webapp := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code, msg := errorStatus(err)
			if code == http.StatusNotFound && c.Path() == "/favicon.ico" {
				return nil
			}
			level := zerolog.ErrorLevel
			if code < http.StatusInternalServerError {
				level = zerolog.DebugLevel
			}
			log.Ctx(c.Context()).WithLevel(level).
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("status", code).
				Msg("Request failed")
			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})

	filesRoot := http.Dir(a.config.RootDir)
	webapp.Get("/api/view", func(c *fiber.Ctx) error {
		filePath := c.Query("file")
		return filesystem.SendFile(c, filesRoot, filePath)
	})

	webapp.Get("/api/ls", func(c *fiber.Ctx) error {
		dir, err := walkImages(c.UserContext(), a.config.RootDir)
		if err != nil {
			return fmt.Errorf("failed to walk dir: %w", err)
		}

		for i := range dir.Files {
			dir.Files[i].URL = "/api/view?file=" + url.QueryEscape(dir.Files[i].Name)
		}

		return c.JSON(dir)
	})

	api := webapp.Group("/api/sessions")
	api.Post("/", a.createSession)
	api.Get("/:id", func(c *fiber.Ctx) error {
		id, ss, err := a.lookup(c)
		if err != nil {
			return err
		}
		return c.JSON(newSessionResponse(id, ss.file, ss.editor))
	})
	api.Post("/:id/pointer", a.pointer)
	api.Post("/:id/wheel", a.wheel)
	api.Get("/:id/frame", a.frame)
	api.Post("/:id/commit", a.commit)
	api.Delete("/:id", func(c *fiber.Ctx) error {
		if !a.sessions.Remove(c.Params("id")) {
			return fiber.NewError(http.StatusNotFound, "session not found")
		}
		return c.SendStatus(http.StatusNoContent)
	})

	webapp.Post("/api/shutdown", func(c *fiber.Ctx) error {
		a.Shutdown()
		return nil
	})

	if isDebug {
		log.Debug().Msg("Debug mode enabled, serving static files from './static' directory")
		webapp.Static("/", "static")
	} else {
		webapp.Use("/", filesystem.New(filesystem.Config{
			Root:       http.FS(staticFS),
			PathPrefix: "/static",
		}))
	}

	return webapp
}

type sessionResponse struct {
	ID     string        `json:"id"`
	File   string        `json:"file"`
	State  cropper.State `json:"state"`
	Cursor string        `json:"cursor"`
	Closed bool          `json:"closed"`
}

func newSessionResponse(id, file string, editor *cropper.Editor) sessionResponse {
	return sessionResponse{
		ID:     id,
		File:   file,
		State:  editor.State(),
		Cursor: editor.Cursor(),
		Closed: editor.Closed(),
	}
}

func (a *WebApp) lookup(c *fiber.Ctx) (string, *storedSession, error) {
	id := c.Params("id")
	ss, ok := a.sessions.Get(id)
	if !ok {
		return "", nil, fiber.NewError(http.StatusNotFound, "session not found")
	}
	return id, ss, nil
}

// lookupOpen is lookup for routes that feed input to the editor.
func (a *WebApp) lookupOpen(c *fiber.Ctx) (string, *storedSession, error) {
	id, ss, err := a.lookup(c)
	if err != nil {
		return "", nil, err
	}
	if ss.editor.Closed() {
		return "", nil, cropper.ErrSessionClosed
	}
	return id, ss, nil
}

func (a *WebApp) createSession(c *fiber.Ctx) error {
	var request struct {
		File string             `json:"file"`
		Spec cropper.OutputSpec `json:"spec"`
	}
	if err := c.BodyParser(&request); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	path, err := resolvePath(a.config.RootDir, request.File)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fiber.NewError(http.StatusNotFound, "file not found")
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", request.File, err)
	}

	editor, err := cropper.CreateSession(c.UserContext(), buf, request.Spec, a.config.Crop)
	if errors.Is(err, cropper.ErrRenderUnavailable) {
		return err
	} else if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	id := a.sessions.Add(request.File, editor)
	log.Ctx(c.UserContext()).Info().
		Str("id", id).
		Str("file", request.File).
		Stringer("spec", request.Spec).
		Msg("session created")

	return c.Status(http.StatusCreated).JSON(newSessionResponse(id, request.File, editor))
}

func (a *WebApp) pointer(c *fiber.Ctx) error {
	id, ss, err := a.lookupOpen(c)
	if err != nil {
		return err
	}
	var request struct {
		Kind EventKind `json:"kind"`
		X    float64   `json:"x"`
		Y    float64   `json:"y"`
	}
	if err := c.BodyParser(&request); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	switch request.Kind {
	case EventDown, EventMove, EventUp, EventLeave:
	default:
		return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("unknown pointer event %q", request.Kind))
	}

	Event{Kind: request.Kind, X: request.X, Y: request.Y}.Apply(ss.editor)
	return c.JSON(newSessionResponse(id, ss.file, ss.editor))
}

func (a *WebApp) wheel(c *fiber.Ctx) error {
	id, ss, err := a.lookupOpen(c)
	if err != nil {
		return err
	}
	var request struct {
		DeltaY float64 `json:"deltaY"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
	}
	if err := c.BodyParser(&request); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	ss.editor.Wheel(request.DeltaY, request.X, request.Y)
	return c.JSON(newSessionResponse(id, ss.file, ss.editor))
}

func (a *WebApp) frame(c *fiber.Ctx) error {
	_, ss, err := a.lookup(c)
	if err != nil {
		return err
	}
	frame := ss.editor.Frame()
	if frame == nil {
		return fmt.Errorf("%w: nothing rendered yet", cropper.ErrRenderUnavailable)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(buf.Bytes())
}

func (a *WebApp) commit(c *fiber.Ctx) error {
	id, ss, err := a.lookup(c)
	if err != nil {
		return err
	}
	res, err := ss.editor.Commit(c.UserContext())
	if err != nil {
		return err
	}
	// The editor is closed now; nothing more can be done with the session.
	a.sessions.Remove(id)

	if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", a.config.OutputDir, err)
	}
	name, err := writeResult(a.config.OutputDir, ss.file, id[:8], res)
	if err != nil {
		return err
	}
	log.Ctx(c.UserContext()).Info().
		Str("id", id).
		Str("output", name).
		Int("width", res.Width).
		Int("height", res.Height).
		Msg("crop committed")
	if fn := a.config.OnCommit; fn != nil {
		fn(name, res)
	}

	return c.JSON(fiber.Map{
		"file":     name,
		"width":    res.Width,
		"height":   res.Height,
		"format":   res.Format,
		"mimeType": res.MIMEType,
	})
}
