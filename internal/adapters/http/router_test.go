package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
	"github.com/mmembroidery/tryon-studio/internal/core/usecase"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/catalog/yamlcatalog"
	"github.com/mmembroidery/tryon-studio/internal/infrastructure/session/memory"
)

type encoderFake struct{}

func (encoderFake) Encode(_ context.Context, contentType string, body io.Reader) (domain.DataURI, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}
	return domain.DataURI("data:" + contentType + ";base64," + string(raw)), nil
}

type compositorFake struct {
	mu     sync.Mutex
	image  string
	err    error
	calls  int
	design string
	// hold, when set, runs before the fake answers.
	hold func()
}

func (c *compositorFake) Compose(_ context.Context, _, designImage string) (string, error) {
	if c.hold != nil {
		c.hold()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.design = designImage
	return c.image, c.err
}

type submitterFake struct {
	mu     sync.Mutex
	orders []domain.SubmittedOrder
}

func (s *submitterFake) SubmitCustomOrder(_ context.Context, order domain.SubmittedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

type testServer struct {
	handler    http.Handler
	compositor *compositorFake
	submitter  *submitterFake
	cookie     *http.Cookie
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()

	catalog, err := yamlcatalog.Default("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	comp := &compositorFake{image: "https://cdn.example/processed.png"}
	sub := &submitterFake{}
	studio := usecase.NewStudioUseCase(memory.New(time.Hour), catalog, encoderFake{}, comp, sub)

	rt, err := NewRouter(studio, catalog, PageCopy{Hero: "<h1>Virtual Try-On Studio</h1>"}, cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return &testServer{handler: rt.Handler(), compositor: comp, submitter: sub}
}

// do sends req with the current session cookie and remembers a new one.
func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	res := httptest.NewRecorder()
	s.handler.ServeHTTP(res, req)
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionCookieName {
			s.cookie = c
		}
	}
	return res
}

func newGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func (s *testServer) postForm(path string, form url.Values, asJSON bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	return s.do(req)
}

func (s *testServer) postFile(path, field, filename string, body []byte, fields url.Values, asJSON bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k := range fields {
		_ = mw.WriteField(k, fields.Get(k))
	}
	if field != "" {
		part, _ := mw.CreateFormFile(field, filename)
		_, _ = part.Write(body)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	return s.do(req)
}

func decodeOutcome(t *testing.T, res *httptest.ResponseRecorder) outcomeResponse {
	t.Helper()
	var out outcomeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, res.Body.String())
	}
	return out
}

func TestHomeStartsSessionAndRendersStudio(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	res := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if srv.cookie == nil || srv.cookie.Value == "" {
		t.Fatalf("expected session cookie to be set")
	}
	if !srv.cookie.HttpOnly || srv.cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", srv.cookie)
	}
	body := res.Body.String()
	for _, want := range []string{
		"Virtual Try-On Studio",
		"Upload Your Photo",
		"Premade Designs",
		"Upload a photo to see the preview",
		"Try Different Styles",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}

	again := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if len(again.Result().Cookies()) != 0 {
		t.Fatalf("expected existing session to be reused")
	}
}

func TestPhotoUploadRedirectsAndFlashesNotice(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	res := srv.postFile("/photo", "photo", "me.png", []byte("QQ=="), nil, false)
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}

	page := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(page.Body.String(), "Image uploaded successfully!") {
		t.Fatalf("expected flashed notice on the next page")
	}
	if !strings.Contains(page.Body.String(), "Please select a design to see the preview") {
		t.Fatalf("expected preview to ask for a design")
	}

	next := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Contains(next.Body.String(), "Image uploaded successfully!") {
		t.Fatalf("expected notice to be shown only once")
	}
}

func TestGeneratePreviewWithoutSelectionReturns400(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	res := srv.postForm("/preview", nil, true)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	out := decodeOutcome(t, res)
	if out.Notice == nil || out.Notice.Message != "Please select both an image and a design" {
		t.Fatalf("unexpected notice: %+v", out.Notice)
	}
	if srv.compositor.calls != 0 {
		t.Fatalf("expected no composition call")
	}
}

func TestGeneratePreviewShowsProcessedImage(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	srv.postFile("/photo", "photo", "me.png", []byte("QQ=="), nil, true)
	if res := srv.postForm("/design", url.Values{"design_id": {"2"}}, true); res.Code != http.StatusOK {
		t.Fatalf("select design expected 200, got %d", res.Code)
	}

	res := srv.postForm("/preview", nil, true)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	out := decodeOutcome(t, res)
	p := out.State.Processing
	if p.ProcessedImage != "https://cdn.example/processed.png" || p.IsProcessing {
		t.Fatalf("unexpected processing state: %+v", p)
	}
	if srv.compositor.design == "" {
		t.Fatalf("expected design image to be sent to the compositor")
	}

	page := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(page.Body.String(), `src="https://cdn.example/processed.png"`) {
		t.Fatalf("expected processed image on the page")
	}
}

func TestGeneratePreviewFailureMapsTo502(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	srv.compositor.err = domain.WrapError(domain.ErrTemporary, "compose", errors.New("status 500"))

	srv.postFile("/photo", "photo", "me.png", []byte("QQ=="), nil, true)
	srv.postForm("/design", url.Values{"design_id": {"1"}}, true)

	res := srv.postForm("/preview", nil, true)
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
	out := decodeOutcome(t, res)
	if out.Notice == nil || out.Notice.Level != domain.NoticeError {
		t.Fatalf("expected error notice, got %+v", out.Notice)
	}
	if out.State.Processing.IsProcessing || out.State.Processing.ProcessedImage != "" {
		t.Fatalf("unexpected processing state: %+v", out.State.Processing)
	}
	if strings.Contains(out.Error, "status 500") {
		t.Fatalf("expected upstream details to stay private, got %q", out.Error)
	}
}

func TestSelectDesignRejectsMalformedID(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	res := srv.postForm("/design", url.Values{"design_id": {"two"}}, true)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}

	browser := srv.postForm("/design", url.Values{"design_id": {""}}, false)
	if browser.Code != http.StatusSeeOther || browser.Header().Get("Location") != premadeTarget {
		t.Fatalf("expected redirect to %s, got %d %q", premadeTarget, browser.Code, browser.Header().Get("Location"))
	}
}

func TestSelectNegativeDesignFailsAtGeneration(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	srv.postFile("/photo", "photo", "me.png", []byte("QQ=="), nil, true)
	res := srv.postForm("/design", url.Values{"design_id": {"-1"}}, true)
	if res.Code != http.StatusOK {
		t.Fatalf("selecting any integer id should succeed, got %d", res.Code)
	}

	gen := srv.postForm("/preview", nil, true)
	if gen.Code != http.StatusNotFound {
		t.Fatalf("expected 404 at generation, got %d", gen.Code)
	}
	out := decodeOutcome(t, gen)
	if out.Notice == nil || out.Notice.Message != "Selected design not found" {
		t.Fatalf("unexpected notice: %+v", out.Notice)
	}
	if srv.compositor.calls != 0 {
		t.Fatalf("expected no composition call")
	}
}

func TestSubmitCustomOrderFromMultipartForm(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	fields := url.Values{"material": {"Silk"}, "occasion": {"Wedding"}}
	missing := srv.postFile("/custom-order", "", "", nil, fields, true)
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without design file, got %d", missing.Code)
	}
	if out := decodeOutcome(t, missing); out.State.Order.Material != "Silk" {
		t.Fatalf("expected fields to be kept, got %+v", out.State.Order)
	}

	res := srv.postFile("/custom-order", "design_file", "sketch.png", []byte("QQ=="), url.Values{"color": {"Royal Blue"}}, true)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	out := decodeOutcome(t, res)
	if out.Notice == nil || out.Notice.Level != domain.NoticeSuccess {
		t.Fatalf("expected success notice, got %+v", out.Notice)
	}
	if len(srv.submitter.orders) != 1 {
		t.Fatalf("expected one submitted order, got %d", len(srv.submitter.orders))
	}
	got := srv.submitter.orders[0].Order
	if got.Material != "Silk" || got.Occasion != "Wedding" || got.Color != "Royal Blue" || got.DesignFile.IsZero() {
		t.Fatalf("unexpected submitted order: %+v", got)
	}
}

func TestSaveCustomOrderFieldsRedirectsToCustomTab(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	res := srv.postForm("/custom-order/fields", url.Values{"measurements": {"chest 40"}}, false)
	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != customTarget {
		t.Fatalf("expected redirect to %s, got %d %q", customTarget, res.Code, res.Header().Get("Location"))
	}
	page := srv.do(httptest.NewRequest(http.MethodGet, "/?tab=custom", nil))
	body := page.Body.String()
	if !strings.Contains(body, "chest 40") || !strings.Contains(body, "Your custom order details were saved.") {
		t.Fatalf("expected saved measurements and notice on the custom tab")
	}
}

func TestUploadTooLargeIsRejected(t *testing.T) {
	srv := newTestServer(t, RouterConfig{UploadMaxBytes: 1024})

	res := srv.postFile("/photo", "photo", "big.png", bytes.Repeat([]byte("A"), 2<<20), nil, true)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	out := decodeOutcome(t, res)
	if out.Notice == nil || !strings.Contains(out.Notice.Message, "too large") {
		t.Fatalf("unexpected notice: %+v", out.Notice)
	}
}

func TestFeatureButtons(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})

	res := srv.postForm("/features/styles", nil, true)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if out := decodeOutcome(t, res); out.Notice == nil || out.Notice.Level != domain.NoticeInfo {
		t.Fatalf("expected info notice, got %+v", out.Notice)
	}

	unknown := srv.postForm("/features/teleport", nil, true)
	if unknown.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown feature, got %d", unknown.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	res := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if srv.cookie != nil {
		t.Fatalf("health checks must not start a session")
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrDesignNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrSessionNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrBusy, "op", errors.New("x")), http.StatusConflict},
		{domain.WrapError(domain.ErrCompositionFailed, "op", errors.New("x")), http.StatusBadGateway},
		{domain.WrapError(domain.ErrSubmissionFailed, "op", errors.New("x")), http.StatusBadGateway},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
