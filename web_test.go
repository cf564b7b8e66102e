package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"cropstudio/cropper"
	"cropstudio/geom"
)

// writeImage saves a solid image under root, encoded by extension.
func writeImage(t *testing.T, root, name string, w, h int) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := imaging.Save(imaging.New(w, h, color.NRGBA{120, 80, 200, 255}), path); err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
}

func newTestApp(t *testing.T) (*WebApp, string) {
	t.Helper()
	root := t.TempDir()
	writeImage(t, root, "photo.png", 800, 800)
	writeImage(t, root, "sub/wide.jpg", 1000, 800)
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "broken.png"), []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}

	app := NewWebApp(Config{
		RootDir:   root,
		OutputDir: filepath.Join(root, "output"),
		Crop:      cropper.DefaultConfig(),
	})
	return app, root
}

func do(t *testing.T, app *WebApp, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Handler().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func wantStatus(t *testing.T, resp *http.Response, code int) {
	t.Helper()
	if resp.StatusCode != code {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status = %d, want %d (%s)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, code, b)
	}
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestListImages(t *testing.T) {
	app, _ := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/ls", nil)
	wantStatus(t, resp, http.StatusOK)
	dir := decode[Directory](t, resp)

	type entry struct {
		Name  string
		URL   string
		Image ImageInfo
	}
	var got []entry
	for _, f := range dir.Files {
		got = append(got, entry{Name: f.Name, URL: f.URL, Image: f.Image})
	}
	want := []entry{
		{Name: "broken.png", URL: "/api/view?file=broken.png"},
		{Name: "photo.png", URL: "/api/view?file=photo.png", Image: ImageInfo{Width: 800, Height: 800, Format: "png"}},
		{Name: "sub/wide.jpg", URL: "/api/view?file=sub%2Fwide.jpg", Image: ImageInfo{Width: 1000, Height: 800, Format: "jpeg"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionLifecycle(t *testing.T) {
	app, root := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/sessions", map[string]any{
		"file": "photo.png",
		"spec": map[string]any{"type": "avatar", "aspectRatio": 1},
	})
	wantStatus(t, resp, http.StatusCreated)
	created := decode[sessionResponse](t, resp)
	if diff := cmp.Diff(geom.Rect{X: 40, Y: 40, W: 320, H: 320}, created.State.CropArea, approx); diff != "" {
		t.Errorf("initial crop (-want +got):\n%s", diff)
	}
	base := "/api/sessions/" + created.ID

	var last sessionResponse
	for _, ev := range []map[string]any{
		{"kind": "down", "x": 360, "y": 360},
		{"kind": "move", "x": 380, "y": 380},
		{"kind": "move", "x": 410, "y": 410},
		{"kind": "up", "x": 410, "y": 410},
	} {
		resp := do(t, app, http.MethodPost, base+"/pointer", ev)
		wantStatus(t, resp, http.StatusOK)
		last = decode[sessionResponse](t, resp)
	}
	if diff := cmp.Diff(geom.Rect{X: 40, Y: 40, W: 360, H: 360}, last.State.CropArea, approx); diff != "" {
		t.Errorf("crop after se drag (-want +got):\n%s", diff)
	}

	resp = do(t, app, http.MethodGet, base+"/frame", nil)
	wantStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("frame content type = %q", ct)
	}
	frame, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Width != 400 || frame.Height != 400 {
		t.Errorf("frame = %dx%d, want 400x400", frame.Width, frame.Height)
	}

	resp = do(t, app, http.MethodPost, base+"/commit", nil)
	wantStatus(t, resp, http.StatusOK)
	committed := decode[struct {
		File   string         `json:"file"`
		Width  int            `json:"width"`
		Height int            `json:"height"`
		Format cropper.Format `json:"format"`
	}](t, resp)
	if committed.Width != 720 || committed.Height != 720 || committed.Format != cropper.FormatJPEG {
		t.Errorf("commit = %+v, want 720x720 jpeg", committed)
	}
	out, err := imaging.Open(filepath.Join(root, "output", committed.File))
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 720 || b.Dy() != 720 {
		t.Errorf("output file = %dx%d, want 720x720", b.Dx(), b.Dy())
	}

	// A committed session is released.
	wantStatus(t, do(t, app, http.MethodPost, base+"/pointer", map[string]any{"kind": "down", "x": 1, "y": 1}), http.StatusNotFound)
	wantStatus(t, do(t, app, http.MethodPost, base+"/commit", nil), http.StatusNotFound)
	wantStatus(t, do(t, app, http.MethodGet, base, nil), http.StatusNotFound)
	if n := app.sessions.Len(); n != 0 {
		t.Errorf("%d sessions left in the store", n)
	}
}

func TestCommittedSessionsAreReleased(t *testing.T) {
	app, _ := newTestApp(t)

	for i := 0; i < 3; i++ {
		resp := do(t, app, http.MethodPost, "/api/sessions", map[string]any{"file": "photo.png", "spec": map[string]any{"aspectRatio": 1}})
		wantStatus(t, resp, http.StatusCreated)
		id := decode[sessionResponse](t, resp).ID
		wantStatus(t, do(t, app, http.MethodPost, "/api/sessions/"+id+"/commit", nil), http.StatusOK)
	}
	if n := app.sessions.Len(); n != 0 {
		t.Errorf("%d committed sessions still held", n)
	}
}

func TestDeleteSession(t *testing.T) {
	app, _ := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/sessions", map[string]any{"file": "photo.png"})
	wantStatus(t, resp, http.StatusCreated)
	created := decode[sessionResponse](t, resp)
	if created.File != "photo.png" || created.Closed {
		t.Errorf("created = %+v", created)
	}
	base := "/api/sessions/" + created.ID

	wantStatus(t, do(t, app, http.MethodGet, base, nil), http.StatusOK)
	wantStatus(t, do(t, app, http.MethodDelete, base, nil), http.StatusNoContent)
	wantStatus(t, do(t, app, http.MethodGet, base, nil), http.StatusNotFound)
	if n := app.sessions.Len(); n != 0 {
		t.Errorf("%d sessions left in the store", n)
	}
}

func TestWheelZoomsAroundPointer(t *testing.T) {
	app, _ := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/sessions", map[string]any{"file": "photo.png", "spec": map[string]any{"aspectRatio": 1}})
	wantStatus(t, resp, http.StatusCreated)
	id := decode[sessionResponse](t, resp).ID

	resp = do(t, app, http.MethodPost, "/api/sessions/"+id+"/wheel", map[string]any{"deltaY": -120, "x": 200, "y": 200})
	wantStatus(t, resp, http.StatusOK)
	got := decode[sessionResponse](t, resp).State.View

	want := cropper.ViewTransform{Scale: 1.1, OffsetX: -20, OffsetY: -20}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("view after wheel (-want +got):\n%s", diff)
	}
}

func TestCircleSessionCommitsPNG(t *testing.T) {
	app, root := newTestApp(t)

	resp := do(t, app, http.MethodPost, "/api/sessions", map[string]any{
		"file": "sub/wide.jpg",
		"spec": map[string]any{"type": "avatar", "aspectRatio": 1, "cropShape": "circle"},
	})
	wantStatus(t, resp, http.StatusCreated)
	id := decode[sessionResponse](t, resp).ID

	resp = do(t, app, http.MethodPost, "/api/sessions/"+id+"/commit", nil)
	wantStatus(t, resp, http.StatusOK)
	file := decode[struct {
		File string `json:"file"`
	}](t, resp).File
	if filepath.Ext(file) != ".png" {
		t.Errorf("output %q, want a png", file)
	}
	if _, err := os.Stat(filepath.Join(root, "output", file)); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestSessionErrors(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing file", http.MethodPost, "/api/sessions", map[string]any{"file": "nope.png"}, http.StatusNotFound},
		{"undecodable file", http.MethodPost, "/api/sessions", map[string]any{"file": "broken.png"}, http.StatusUnprocessableEntity},
		{"negative ratio", http.MethodPost, "/api/sessions", map[string]any{"file": "photo.png", "spec": map[string]any{"aspectRatio": -2}}, http.StatusBadRequest},
		{"unknown shape", http.MethodPost, "/api/sessions", map[string]any{"file": "photo.png", "spec": map[string]any{"cropShape": "hexagon"}}, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/sessions/does-not-exist", nil, http.StatusNotFound},
		{"unknown session frame", http.MethodGet, "/api/sessions/does-not-exist/frame", nil, http.StatusNotFound},
		{"unknown session delete", http.MethodDelete, "/api/sessions/does-not-exist", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, app, tt.method, tt.path, tt.body)
			wantStatus(t, resp, tt.want)
			if body := decode[map[string]string](t, resp); body["error"] == "" {
				t.Error("error response without message")
			}
		})
	}

	resp := do(t, app, http.MethodPost, "/api/sessions", map[string]any{"file": "photo.png"})
	wantStatus(t, resp, http.StatusCreated)
	id := decode[sessionResponse](t, resp).ID
	wantStatus(t, do(t, app, http.MethodPost, "/api/sessions/"+id+"/pointer", map[string]any{"kind": "wheel"}), http.StatusBadRequest)
}
