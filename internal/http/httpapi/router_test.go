package httpapi

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"swipeshop/internal/adapter/repo"
	"swipeshop/internal/catalog"
	"swipeshop/internal/compositor"
	"swipeshop/internal/generation"
	"swipeshop/internal/http/handlers"
	"swipeshop/internal/providers/copywriter"
	"swipeshop/internal/providers/genai"
	"swipeshop/internal/session"
	"swipeshop/internal/storage"
)

type testAPI struct {
	handler http.Handler
	ledger  *repo.MemoryLedger
}

func newTestAPI(t *testing.T, rateLimit int) *testAPI {
	t.Helper()
	logger := zerolog.Nop()
	cat := catalog.MustDefault()
	store, err := storage.NewFileStore(t.TempDir(), "http://files.test/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ledger := repo.NewMemoryLedger()
	uploads := storage.NewUploads(store, storage.UploadOptions{UploadBaseURL: "http://api.test/v1/uploads", Ledger: ledger})
	images, err := genai.NewClient(genai.Options{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	gen, err := generation.NewService(generation.Options{
		Catalog:      cat,
		Copywriter:   copywriter.NewStatic(),
		Backgrounds:  images,
		Store:        store,
		Ledger:       ledger,
		VariantCount: 3,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	composer := compositor.New(compositor.NewSourceLoader(store, nil, nil), compositor.Options{Width: 120})
	sessions, err := session.NewManager(&session.Deps{
		Catalog:   cat,
		Generator: gen,
		Uploader:  uploads,
		Composer:  composer,
		Store:     store,
		Ledger:    ledger,
	}, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	app := &handlers.App{
		Catalog:  cat,
		Sessions: sessions,
		Variants: gen,
		Uploads:  uploads,
		Store:    store,
		Ledger:   ledger,
		Logger:   logger,
	}
	h := NewRouter(app, Options{
		Logger:         logger,
		AllowedOrigins: []string{"*"},
		DefaultLocale:  "en",
		RateLimit:      rateLimit,
		RateWindow:     time.Minute,
	})
	return &testAPI{handler: h, ledger: ledger}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 120, B: uint8(y * 40), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

type cardView struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

type sessionView struct {
	ID       string `json:"id"`
	Workflow struct {
		Flow    string `json:"flow"`
		Current int    `json:"current"`
	} `json:"workflow"`
	Inputs struct {
		Images []string `json:"images"`
	} `json:"inputs"`
	Pool []cardView `json:"pool"`
	Top  *cardView  `json:"top"`
	Kept []cardView `json:"kept"`
}

func TestWizardSessionEndToEnd(t *testing.T) {
	api := newTestAPI(t, 100)

	rec := api.do(t, http.MethodPost, "/v1/sessions", map[string]string{"purpose_id": "shopping"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var s sessionView
	decodeJSON(t, rec, &s)
	if s.Workflow.Flow != "wizard" || s.Workflow.Current != 2 {
		t.Fatalf("unexpected workflow: %+v", s.Workflow)
	}
	base := "/v1/sessions/" + s.ID

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
	rec = api.do(t, http.MethodPost, base+"/images", map[string]any{"refs": []string{dataURL}})
	if rec.Code != http.StatusOK {
		t.Fatalf("images: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, base+"/generate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	decodeJSON(t, rec, &s)
	if len(s.Pool) == 0 || s.Top == nil {
		t.Fatalf("generation produced no cards: %s", rec.Body.String())
	}
	if s.Workflow.Current != 4 {
		t.Fatalf("expected curation stage, got %d", s.Workflow.Current)
	}
	total := len(s.Pool)

	for s.Top != nil {
		rec = api.do(t, http.MethodPost, base+"/pool/"+s.Top.ID+"/decide", map[string]string{"direction": "right"})
		if rec.Code != http.StatusOK {
			t.Fatalf("decide: %d %s", rec.Code, rec.Body.String())
		}
		var out struct {
			Session sessionView `json:"session"`
			Applied bool        `json:"applied"`
		}
		decodeJSON(t, rec, &out)
		if !out.Applied {
			t.Fatalf("decision on the top card was not applied")
		}
		s = out.Session
	}
	if len(s.Kept) != total {
		t.Fatalf("expected %d kept cards, got %d", total, len(s.Kept))
	}

	rec = api.do(t, http.MethodPost, base+"/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("export content type %q", ct)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "http://files.test/static/exports/"+s.ID+"/") {
		t.Fatalf("unexpected Location %q", loc)
	}
	if _, _, err := image.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("export is not a decodable image: %v", err)
	}

	rec = api.do(t, http.MethodGet, base+"/exports", nil)
	var list struct {
		Items []struct {
			Kind string `json:"kind"`
		} `json:"items"`
	}
	decodeJSON(t, rec, &list)
	if len(list.Items) != 1 || list.Items[0].Kind != "export" {
		t.Fatalf("unexpected exports: %s", rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, base+"/exports/archive", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("archive: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}
	if len(zr.File) != 1 || !strings.HasSuffix(zr.File[0].Name, ".jpg") {
		t.Fatalf("unexpected archive entries: %d", len(zr.File))
	}

	rec = api.do(t, http.MethodGet, "/v1/stats", nil)
	var stats map[string]float64
	decodeJSON(t, rec, &stats)
	if stats["export_total"] != 1 || stats["sessions_live"] != 1 {
		t.Fatalf("unexpected stats: %s", rec.Body.String())
	}

	rec = api.do(t, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = api.do(t, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted session still served: %d", rec.Code)
	}
}

func TestDeckSessionMultipartUpload(t *testing.T) {
	api := newTestAPI(t, 100)

	rec := api.do(t, http.MethodPost, "/v1/sessions", map[string]string{"flow": "deck"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var s sessionView
	decodeJSON(t, rec, &s)
	base := "/v1/sessions/" + s.ID

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="bottle.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write(pngBytes(t))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, base+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("images: %d %s", rec.Code, rec.Body.String())
	}
	var added struct {
		Session  sessionView `json:"session"`
		Accepted int         `json:"accepted"`
	}
	decodeJSON(t, rec, &added)
	if added.Accepted != 1 || len(added.Session.Inputs.Images) != 1 {
		t.Fatalf("unexpected images response: %s", rec.Body.String())
	}
	ref := added.Session.Inputs.Images[0]
	if !strings.HasPrefix(ref, "http://files.test/static/uploads/") {
		t.Fatalf("upload not stored under the public base: %q", ref)
	}

	rec = api.do(t, http.MethodGet, strings.TrimPrefix(ref, "http://files.test"), nil)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), pngBytes(t)) {
		t.Fatalf("static file not served: %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, base+"/generate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	decodeJSON(t, rec, &s)
	if len(s.Pool) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(s.Pool))
	}

	uploads, _ := api.ledger.CountByKind(req.Context())
	if uploads["upload"] != 1 || uploads["generated"] != 3 {
		t.Fatalf("unexpected ledger counts: %#v", uploads)
	}
}

func TestUploadSlotFlow(t *testing.T) {
	api := newTestAPI(t, 100)

	rec := api.do(t, http.MethodPost, "/v1/uploads", map[string]string{"filename": "a.png"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing content type: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, "/v1/uploads", map[string]string{"filename": "a.png", "content_type": "image/png"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("slot: %d %s", rec.Code, rec.Body.String())
	}
	var slot struct {
		Token     string `json:"token"`
		Path      string `json:"path"`
		UploadURL string `json:"upload_url"`
	}
	decodeJSON(t, rec, &slot)
	if !strings.HasPrefix(slot.Path, "uploads/") || slot.UploadURL != "http://api.test/v1/uploads/"+slot.Token {
		t.Fatalf("unexpected slot: %+v", slot)
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/uploads/"+slot.Token, bytes.NewReader(pngBytes(t)))
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/v1/uploads/"+slot.Token, bytes.NewReader(pngBytes(t)))
	rec = httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("reused slot: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, "/static/"+slot.Path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("static: %d", rec.Code)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	api := newTestAPI(t, 1)

	first := api.do(t, http.MethodPost, "/v1/generate", map[string]string{"image_url": "blob:http://x/1"})
	if first.Code != http.StatusBadRequest {
		t.Fatalf("transient reference: %d %s", first.Code, first.Body.String())
	}
	var body map[string]string
	decodeJSON(t, first, &body)
	if body["error"] != "transient_reference" {
		t.Fatalf("unexpected error code %q", body["error"])
	}

	second := api.do(t, http.MethodPost, "/v1/generate", map[string]string{"image_url": "http://x/1.png"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	// Non-AI routes share no budget with generation.
	if rec := api.do(t, http.MethodGet, "/v1/catalog", nil); rec.Code != http.StatusOK {
		t.Fatalf("catalog: %d", rec.Code)
	}
}

func TestSessionErrorsMapToStatus(t *testing.T) {
	api := newTestAPI(t, 100)

	rec := api.do(t, http.MethodGet, "/v1/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/v1/sessions", map[string]string{"flow": "carousel"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown flow: %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/v1/sessions", nil)
	var s sessionView
	decodeJSON(t, rec, &s)
	base := "/v1/sessions/" + s.ID

	rec = api.do(t, http.MethodPost, base+"/generate", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("generate without purpose: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, base+"/export", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty export: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodDelete, base+"/images/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad index: %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, base+"/exports/archive", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty archive: %d", rec.Code)
	}
}

func TestHealthAndDocs(t *testing.T) {
	api := newTestAPI(t, 100)

	rec := api.do(t, http.MethodGet, "/v1/healthz", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("healthz: %d, request id %q", rec.Code, rec.Header().Get("X-Request-ID"))
	}

	rec = api.do(t, http.MethodGet, "/v1/openapi.json", nil)
	var doc map[string]any
	decodeJSON(t, rec, &doc)
	if _, ok := doc["paths"]; !ok {
		t.Fatalf("openapi document has no paths")
	}
}
