package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type sessionStoreFake struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newSessionStoreFake(ids ...string) *sessionStoreFake {
	f := &sessionStoreFake{sessions: map[string]domain.Session{}}
	for _, id := range ids {
		f.sessions[id] = domain.NewSession(id, testNow)
	}
	return f
}

func (f *sessionStoreFake) Create(context.Context) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := domain.NewSession("created", testNow)
	f.sessions[s.ID] = s
	return s, nil
}

func (f *sessionStoreFake) Get(_ context.Context, id string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *sessionStoreFake) Update(_ context.Context, id string, fn func(*domain.Session)) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	fn(&s)
	f.sessions[id] = s
	return s, nil
}

func (f *sessionStoreFake) snapshot(id string) domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

type catalogFake struct {
	designs []domain.Design
}

func (c catalogFake) List() []domain.Design { return c.designs }

func (c catalogFake) Find(id int) (domain.Design, bool) {
	for _, d := range c.designs {
		if d.ID == id {
			return d, true
		}
	}
	return domain.Design{}, false
}

type encoderFake struct {
	err error
}

func (e encoderFake) Encode(_ context.Context, contentType string, body io.Reader) (domain.DataURI, error) {
	if e.err != nil {
		return "", e.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return domain.DataURI("data:" + contentType + ";raw," + string(raw)), nil
}

type compositorFake struct {
	mu        sync.Mutex
	calls     int
	userImage string
	design    string
	image     string
	err       error
	// during runs inside Compose, before returning.
	during func()
}

func (c *compositorFake) Compose(_ context.Context, userImage, designImage string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.userImage = userImage
	c.design = designImage
	c.mu.Unlock()
	if c.during != nil {
		c.during()
	}
	if c.err != nil {
		return "", c.err
	}
	return c.image, nil
}

type submitterFake struct {
	orders []domain.SubmittedOrder
	err    error
}

func (s *submitterFake) SubmitCustomOrder(_ context.Context, order domain.SubmittedOrder) error {
	if s.err != nil {
		return s.err
	}
	s.orders = append(s.orders, order)
	return nil
}

type tagStripper struct{}

func (tagStripper) Sanitize(text string) string { return strings.ReplaceAll(text, "<b>", "") }

var testCatalog = catalogFake{designs: []domain.Design{
	{ID: 1, Name: "Floral Embroidered Teal Saree", ImageURL: "/designs/1.png", Price: "$599"},
	{ID: 2, Name: "Blue Embellished Cape", ImageURL: "/designs/2.png", Price: "$799"},
}}

func newStudio(store *sessionStoreFake, comp *compositorFake, sub *submitterFake) *StudioUseCase {
	return NewStudioUseCase(store, testCatalog, encoderFake{}, comp, sub,
		WithSanitizer(tagStripper{}),
		WithClock(func() time.Time { return testNow }),
	)
}

func photo(body string) *domain.FileUpload {
	return &domain.FileUpload{Filename: "me.png", ContentType: "image/png", Body: strings.NewReader(body)}
}

func TestStudioGeneratePreviewScenarioSuccess(t *testing.T) {
	store := newSessionStoreFake("s-1")
	comp := &compositorFake{image: "X"}
	uc := newStudio(store, comp, &submitterFake{})
	ctx := context.Background()

	if _, err := uc.UploadPhoto(ctx, "s-1", photo("A")); err != nil {
		t.Fatalf("UploadPhoto() error = %v", err)
	}
	if _, err := uc.SelectDesign(ctx, "s-1", 2); err != nil {
		t.Fatalf("SelectDesign() error = %v", err)
	}

	comp.during = func() {
		if !store.snapshot("s-1").Processing.IsProcessing {
			t.Errorf("expected processing=true while the request is in flight")
		}
	}
	out, err := uc.GeneratePreview(ctx, "s-1")
	if err != nil {
		t.Fatalf("GeneratePreview() error = %v", err)
	}
	if comp.calls != 1 {
		t.Fatalf("expected 1 compositor call, got %d", comp.calls)
	}
	if comp.userImage != "data:image/png;raw,A" || comp.design != "/designs/2.png" {
		t.Fatalf("unexpected compositor args: %q %q", comp.userImage, comp.design)
	}
	if out.Session.Processing.ProcessedImage != "X" {
		t.Fatalf("expected processed image X, got %q", out.Session.Processing.ProcessedImage)
	}
	if out.Session.Processing.IsProcessing {
		t.Fatalf("expected processing=false after success")
	}
}

func TestStudioGeneratePreviewScenarioFailure(t *testing.T) {
	store := newSessionStoreFake("s-1")
	comp := &compositorFake{err: errors.New("composer status: 500 Internal Server Error")}
	uc := newStudio(store, comp, &submitterFake{})
	ctx := context.Background()

	_, _ = uc.UploadPhoto(ctx, "s-1", photo("A"))
	_, _ = uc.SelectDesign(ctx, "s-1", 2)

	out, err := uc.GeneratePreview(ctx, "s-1")
	if !domain.IsKind(err, domain.ErrCompositionFailed) {
		t.Fatalf("expected composition failure, got %v", err)
	}
	if out.Session.Processing.ProcessedImage != "" {
		t.Fatalf("expected processed image to stay unset, got %q", out.Session.Processing.ProcessedImage)
	}
	if out.Session.Processing.IsProcessing {
		t.Fatalf("expected processing=false after failure")
	}
	if out.Notice.Level != domain.NoticeError || out.Notice.Message != msgPreviewFailed {
		t.Fatalf("unexpected notice: %+v", out.Notice)
	}
	if strings.Contains(out.Notice.Message, "500") {
		t.Fatalf("raw error must not reach the user: %q", out.Notice.Message)
	}
}

func TestStudioGeneratePreviewWithoutSelectionSkipsNetwork(t *testing.T) {
	store := newSessionStoreFake("s-1")
	comp := &compositorFake{image: "X"}
	uc := newStudio(store, comp, &submitterFake{})
	ctx := context.Background()

	if _, err := uc.GeneratePreview(ctx, "s-1"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	_, _ = uc.UploadPhoto(ctx, "s-1", photo("A"))
	if _, err := uc.GeneratePreview(ctx, "s-1"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input with photo only, got %v", err)
	}
	if comp.calls != 0 {
		t.Fatalf("expected no compositor calls, got %d", comp.calls)
	}
	if store.snapshot("s-1").Processing.IsProcessing {
		t.Fatalf("expected processing=false")
	}
}

func TestStudioGeneratePreviewUnknownDesign(t *testing.T) {
	store := newSessionStoreFake("s-1")
	comp := &compositorFake{image: "X"}
	uc := newStudio(store, comp, &submitterFake{})
	ctx := context.Background()

	_, _ = uc.UploadPhoto(ctx, "s-1", photo("A"))
	if _, err := uc.SelectDesign(ctx, "s-1", 99); err != nil {
		t.Fatalf("SelectDesign() must not fail for unknown ids, got %v", err)
	}
	out, err := uc.GeneratePreview(ctx, "s-1")
	if !domain.IsKind(err, domain.ErrDesignNotFound) {
		t.Fatalf("expected design not found, got %v", err)
	}
	if comp.calls != 0 || out.Session.Processing.IsProcessing {
		t.Fatalf("expected no request and processing=false")
	}
}

func TestStudioUploadPhotoWithoutFileIsNoop(t *testing.T) {
	store := newSessionStoreFake("s-1")
	uc := newStudio(store, &compositorFake{}, &submitterFake{})

	out, err := uc.UploadPhoto(context.Background(), "s-1", nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if !out.Session.Processing.SelectedImage.IsZero() {
		t.Fatalf("expected no photo")
	}
}

func TestStudioUploadPhotoEncoderError(t *testing.T) {
	store := newSessionStoreFake("s-1")
	uc := NewStudioUseCase(store, testCatalog, encoderFake{err: errors.New("unreadable")}, &compositorFake{}, &submitterFake{})

	out, err := uc.UploadPhoto(context.Background(), "s-1", photo("A"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if out.Notice.Level != domain.NoticeError {
		t.Fatalf("expected error notice, got %+v", out.Notice)
	}
}

func TestStudioSubmitCustomOrder(t *testing.T) {
	store := newSessionStoreFake("s-1")
	sub := &submitterFake{}
	uc := newStudio(store, &compositorFake{}, sub)
	ctx := context.Background()

	occasion := "<b>Wedding"
	if _, err := uc.UpdateCustomOrder(ctx, "s-1", domain.CustomOrderFields{Occasion: &occasion}); err != nil {
		t.Fatalf("UpdateCustomOrder() error = %v", err)
	}
	if _, err := uc.SubmitCustomOrder(ctx, "s-1"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input without design file, got %v", err)
	}
	if len(sub.orders) != 0 {
		t.Fatalf("expected nothing submitted")
	}

	if _, err := uc.UploadCustomDesignFile(ctx, "s-1", photo("D")); err != nil {
		t.Fatalf("UploadCustomDesignFile() error = %v", err)
	}
	out, err := uc.SubmitCustomOrder(ctx, "s-1")
	if err != nil {
		t.Fatalf("SubmitCustomOrder() error = %v", err)
	}
	if out.Notice.Message != msgOrderSubmitted {
		t.Fatalf("unexpected notice: %+v", out.Notice)
	}
	if len(sub.orders) != 1 {
		t.Fatalf("expected 1 submitted order, got %d", len(sub.orders))
	}
	got := sub.orders[0]
	if got.ID == "" || got.SessionID != "s-1" {
		t.Fatalf("unexpected order envelope: %+v", got)
	}
	if got.Order.Occasion != "Wedding" {
		t.Fatalf("expected sanitised occasion, got %q", got.Order.Occasion)
	}
}

func TestStudioSubmitCustomOrderSubmitterFailure(t *testing.T) {
	store := newSessionStoreFake("s-1")
	uc := newStudio(store, &compositorFake{}, &submitterFake{err: errors.New("nats down")})
	ctx := context.Background()

	_, _ = uc.UploadCustomDesignFile(ctx, "s-1", photo("D"))
	out, err := uc.SubmitCustomOrder(ctx, "s-1")
	if !domain.IsKind(err, domain.ErrSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	if out.Notice.Level != domain.NoticeError {
		t.Fatalf("expected error notice, got %+v", out.Notice)
	}
}

func TestStudioFlashRoundTrip(t *testing.T) {
	store := newSessionStoreFake("s-1")
	uc := newStudio(store, &compositorFake{}, &submitterFake{})
	ctx := context.Background()

	if err := uc.Flash(ctx, "s-1", domain.InfoNotice("hello")); err != nil {
		t.Fatalf("Flash() error = %v", err)
	}
	_, flash, err := uc.TakeFlash(ctx, "s-1")
	if err != nil {
		t.Fatalf("TakeFlash() error = %v", err)
	}
	if flash == nil || flash.Message != "hello" {
		t.Fatalf("unexpected flash: %+v", flash)
	}
	_, flash, _ = uc.TakeFlash(ctx, "s-1")
	if flash != nil {
		t.Fatalf("expected flash to be consumed")
	}
}

func TestStudioUnknownSession(t *testing.T) {
	uc := newStudio(newSessionStoreFake(), &compositorFake{}, &submitterFake{})
	if _, err := uc.SelectDesign(context.Background(), "missing", 1); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestStudioConcurrentGeneratePreviewSendsOneRequest(t *testing.T) {
	store := newSessionStoreFake("s-1")
	inCompose := make(chan struct{})
	release := make(chan struct{})
	comp := &compositorFake{image: "X"}
	comp.during = func() {
		close(inCompose)
		<-release
	}
	uc := newStudio(store, comp, &submitterFake{})
	ctx := context.Background()

	_, _ = uc.UploadPhoto(ctx, "s-1", photo("A"))
	_, _ = uc.SelectDesign(ctx, "s-1", 2)

	type result struct {
		out domain.Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := uc.GeneratePreview(ctx, "s-1")
		first <- result{out, err}
	}()
	<-inCompose

	dup, err := uc.GeneratePreview(ctx, "s-1")
	if !domain.IsKind(err, domain.ErrBusy) {
		t.Fatalf("expected busy for the second click, got %v", err)
	}
	if dup.Notice.Level != domain.NoticeInfo {
		t.Fatalf("expected info notice, got %+v", dup.Notice)
	}
	if !dup.Session.Processing.IsProcessing {
		t.Fatalf("expected the first request to still be in flight")
	}

	close(release)
	select {
	case res := <-first:
		if res.err != nil {
			t.Fatalf("first GeneratePreview() error = %v", res.err)
		}
		if res.out.Session.Processing.ProcessedImage != "X" {
			t.Fatalf("expected processed image X, got %q", res.out.Session.Processing.ProcessedImage)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the first preview")
	}

	comp.mu.Lock()
	calls := comp.calls
	comp.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly 1 compositor call, got %d", calls)
	}
	if store.snapshot("s-1").Processing.IsProcessing {
		t.Fatalf("expected processing=false once the request finished")
	}
}
