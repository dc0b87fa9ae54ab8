package ports

import (
	"context"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

// Studio is the inbound contract of the try-on page. Every operation returns the
// session after the transition together with the notice to show the user.
type Studio interface {
	Session(ctx context.Context, sessionID string) (domain.Session, error)
	NewSession(ctx context.Context) (domain.Session, error)
	TakeFlash(ctx context.Context, sessionID string) (domain.Session, *domain.Notice, error)
	Flash(ctx context.Context, sessionID string, notice domain.Notice) error

	UploadPhoto(ctx context.Context, sessionID string, file *domain.FileUpload) (domain.Outcome, error)
	SelectDesign(ctx context.Context, sessionID string, designID int) (domain.Outcome, error)
	UploadCustomDesignFile(ctx context.Context, sessionID string, file *domain.FileUpload) (domain.Outcome, error)
	UpdateCustomOrder(ctx context.Context, sessionID string, fields domain.CustomOrderFields) (domain.Outcome, error)
	SubmitCustomOrder(ctx context.Context, sessionID string) (domain.Outcome, error)
	GeneratePreview(ctx context.Context, sessionID string) (domain.Outcome, error)
	ComingSoon(ctx context.Context, sessionID, feature string) (domain.Outcome, error)
}

// Catalog is the read model of premade designs.
type Catalog interface {
	List() []domain.Design
	Find(id int) (domain.Design, bool)
}
