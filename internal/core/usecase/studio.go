package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
	"github.com/mmembroidery/tryon-studio/internal/core/ports"
)

type StudioUseCase struct {
	sessions   ports.SessionStore
	catalog    ports.Catalog
	encoder    ports.ImageEncoder
	compositor ports.Compositor
	submitter  ports.OrderSubmitter
	sanitizer  ports.TextSanitizer
	metrics    ports.StudioMetrics

	now func() time.Time
}

type StudioOption func(*StudioUseCase)

func WithSanitizer(s ports.TextSanitizer) StudioOption {
	return func(uc *StudioUseCase) { uc.sanitizer = s }
}

func WithMetrics(m ports.StudioMetrics) StudioOption {
	return func(uc *StudioUseCase) { uc.metrics = m }
}

func WithClock(now func() time.Time) StudioOption {
	return func(uc *StudioUseCase) { uc.now = now }
}

func NewStudioUseCase(
	sessions ports.SessionStore,
	catalog ports.Catalog,
	encoder ports.ImageEncoder,
	compositor ports.Compositor,
	submitter ports.OrderSubmitter,
	opts ...StudioOption,
) *StudioUseCase {
	uc := &StudioUseCase{
		sessions:   sessions,
		catalog:    catalog,
		encoder:    encoder,
		compositor: compositor,
		submitter:  submitter,
		metrics:    noopMetrics{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *StudioUseCase) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	return uc.sessions.Get(ctx, sessionID)
}

func (uc *StudioUseCase) NewSession(ctx context.Context) (domain.Session, error) {
	return uc.sessions.Create(ctx)
}

// TakeFlash returns the session and clears its pending notice, if any.
func (uc *StudioUseCase) TakeFlash(ctx context.Context, sessionID string) (domain.Session, *domain.Notice, error) {
	var flash *domain.Notice
	session, err := uc.sessions.Update(ctx, sessionID, func(s *domain.Session) {
		flash = s.Flash
		s.Flash = nil
	})
	if err != nil {
		return domain.Session{}, nil, err
	}
	return session, flash, nil
}

func (uc *StudioUseCase) Flash(ctx context.Context, sessionID string, notice domain.Notice) error {
	if notice.IsZero() {
		return nil
	}
	_, err := uc.sessions.Update(ctx, sessionID, func(s *domain.Session) {
		n := notice
		s.Flash = &n
	})
	return err
}

func (uc *StudioUseCase) UploadPhoto(ctx context.Context, sessionID string, file *domain.FileUpload) (domain.Outcome, error) {
	uri, err := uc.encode(ctx, file)
	if err != nil {
		uc.metrics.ObserveUpload("photo", "error")
		return uc.rejectUpload(ctx, sessionID, "upload photo", err)
	}
	tr, err := uc.apply(ctx, sessionID, PhotoUploaded{Image: uri})
	if err != nil {
		return domain.Outcome{}, err
	}
	uc.metrics.ObserveUpload("photo", statusOf(tr.Err))
	return outcome(tr), tr.Err
}

func (uc *StudioUseCase) SelectDesign(ctx context.Context, sessionID string, designID int) (domain.Outcome, error) {
	tr, err := uc.apply(ctx, sessionID, DesignSelected{DesignID: designID})
	if err != nil {
		return domain.Outcome{}, err
	}
	return outcome(tr), tr.Err
}

func (uc *StudioUseCase) UploadCustomDesignFile(ctx context.Context, sessionID string, file *domain.FileUpload) (domain.Outcome, error) {
	uri, err := uc.encode(ctx, file)
	if err != nil {
		uc.metrics.ObserveUpload("design_file", "error")
		return uc.rejectUpload(ctx, sessionID, "upload design file", err)
	}
	tr, err := uc.apply(ctx, sessionID, CustomDesignFileUploaded{File: uri})
	if err != nil {
		return domain.Outcome{}, err
	}
	uc.metrics.ObserveUpload("design_file", statusOf(tr.Err))
	return outcome(tr), tr.Err
}

func (uc *StudioUseCase) UpdateCustomOrder(ctx context.Context, sessionID string, fields domain.CustomOrderFields) (domain.Outcome, error) {
	tr, err := uc.apply(ctx, sessionID, CustomOrderEdited{Fields: uc.sanitizeFields(fields)})
	if err != nil {
		return domain.Outcome{}, err
	}
	return outcome(tr), tr.Err
}

func (uc *StudioUseCase) SubmitCustomOrder(ctx context.Context, sessionID string) (domain.Outcome, error) {
	tr, err := uc.apply(ctx, sessionID, CustomOrderSubmitRequested{})
	if err != nil {
		return domain.Outcome{}, err
	}
	if tr.Submit == nil {
		uc.metrics.ObserveCustomOrder("rejected")
		return outcome(tr), tr.Err
	}

	submitted := domain.SubmittedOrder{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Order:       *tr.Submit,
		SubmittedAt: uc.now().UTC(),
	}

	var next Event = CustomOrderAccepted{}
	if submitErr := uc.submitter.SubmitCustomOrder(ctx, submitted); submitErr != nil {
		slog.Error("custom_order_submit_failed", "session_id", sessionID, "order_id", submitted.ID, "error", submitErr)
		next = CustomOrderRejected{Err: submitErr}
	}

	tr, err = uc.apply(context.WithoutCancel(ctx), sessionID, next)
	if err != nil {
		return domain.Outcome{}, err
	}
	uc.metrics.ObserveCustomOrder(statusOf(tr.Err))
	if tr.Err == nil {
		slog.Info("custom_order_submitted", "session_id", sessionID, "order_id", submitted.ID)
	}
	return outcome(tr), tr.Err
}

// GeneratePreview runs one composition attempt for the session's photo and design.
// The in-flight flag is always cleared before it returns, whatever the outcome.
func (uc *StudioUseCase) GeneratePreview(ctx context.Context, sessionID string) (domain.Outcome, error) {
	tr, err := uc.apply(ctx, sessionID, PreviewRequested{Find: uc.catalog.Find})
	if err != nil {
		return domain.Outcome{}, err
	}
	cmd := tr.Compose
	if cmd == nil {
		if tr.Err != nil && !domain.IsKind(tr.Err, domain.ErrBusy) {
			uc.metrics.ObservePreview("rejected", 0)
		}
		return outcome(tr), tr.Err
	}

	start := uc.now()
	var next Event
	image, composeErr := uc.compose(ctx, cmd)
	if composeErr != nil {
		slog.Error("preview_generation_failed",
			"session_id", sessionID,
			"design_id", cmd.DesignID,
			"error", composeErr,
		)
		next = CompositionFailed{Err: composeErr, Revision: cmd.Revision}
	} else {
		next = CompositionSucceeded{Image: image, Revision: cmd.Revision}
	}
	elapsed := uc.now().Sub(start)

	// The flag must be cleared even if the caller has gone away.
	tr, err = uc.apply(context.WithoutCancel(ctx), sessionID, next)
	if err != nil {
		return domain.Outcome{}, err
	}
	uc.metrics.ObservePreview(statusOf(tr.Err), elapsed)
	return outcome(tr), tr.Err
}

func (uc *StudioUseCase) ComingSoon(ctx context.Context, sessionID, feature string) (domain.Outcome, error) {
	tr, err := uc.apply(ctx, sessionID, FeatureRequested{Feature: feature})
	if err != nil {
		return domain.Outcome{}, err
	}
	return outcome(tr), tr.Err
}

func (uc *StudioUseCase) compose(ctx context.Context, cmd *ComposeCommand) (image string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compositor panic: %v", r)
		}
	}()
	image, err = uc.compositor.Compose(ctx, cmd.UserImage, cmd.DesignImage)
	if err == nil && strings.TrimSpace(image) == "" {
		err = fmt.Errorf("compositor returned an empty image")
	}
	return image, err
}

func (uc *StudioUseCase) apply(ctx context.Context, sessionID string, ev Event) (Transition, error) {
	var tr Transition
	session, err := uc.sessions.Update(ctx, sessionID, func(s *domain.Session) {
		tr = Reduce(*s, ev)
		*s = tr.Session
		s.UpdatedAt = uc.now().UTC()
	})
	if err != nil {
		return Transition{}, fmt.Errorf("update session: %w", err)
	}
	tr.Session = session
	return tr, nil
}

func (uc *StudioUseCase) encode(ctx context.Context, file *domain.FileUpload) (domain.DataURI, error) {
	if file == nil || file.Body == nil {
		return "", nil
	}
	uri, err := uc.encoder.Encode(ctx, file.ContentType, file.Body)
	if err != nil {
		return "", fmt.Errorf("encode %q: %w", file.Filename, err)
	}
	return uri, nil
}

func (uc *StudioUseCase) rejectUpload(ctx context.Context, sessionID, operation string, cause error) (domain.Outcome, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{
		Session: session,
		Notice:  domain.ErrorNotice("We couldn't read that file. Please try another image."),
	}, domain.WrapError(domain.ErrInvalidInput, operation, cause)
}

func (uc *StudioUseCase) sanitizeFields(f domain.CustomOrderFields) domain.CustomOrderFields {
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := strings.TrimSpace(*v)
		if uc.sanitizer != nil {
			out = uc.sanitizer.Sanitize(out)
		}
		return &out
	}
	return domain.CustomOrderFields{
		Measurements: clean(f.Measurements),
		Material:     clean(f.Material),
		Color:        clean(f.Color),
		Timeframe:    clean(f.Timeframe),
		Occasion:     clean(f.Occasion),
	}
}

func outcome(tr Transition) domain.Outcome {
	return domain.Outcome{Session: tr.Session, Notice: tr.Notice}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrDesignNotFound):
		return "rejected"
	default:
		return "error"
	}
}

type noopMetrics struct{}

func (noopMetrics) ObservePreview(string, time.Duration) {}
func (noopMetrics) ObserveUpload(string, string)         {}
func (noopMetrics) ObserveCustomOrder(string)            {}
