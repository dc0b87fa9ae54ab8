package ports

import (
	"context"
	"io"
	"time"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

// Compositor renders the user's photo wearing a design via the remote service.
type Compositor interface {
	Compose(ctx context.Context, userImage, designImage string) (string, error)
}

// ImageEncoder turns an uploaded file into a displayable data URI.
type ImageEncoder interface {
	Encode(ctx context.Context, contentType string, body io.Reader) (domain.DataURI, error)
}

// OrderSubmitter hands a submitted custom order to whoever fulfils it.
type OrderSubmitter interface {
	SubmitCustomOrder(ctx context.Context, order domain.SubmittedOrder) error
}

// SessionStore keeps page-scoped studio state in memory.
type SessionStore interface {
	Create(ctx context.Context) (domain.Session, error)
	Get(ctx context.Context, id string) (domain.Session, error)
	// Update applies fn atomically and returns the stored result.
	Update(ctx context.Context, id string, fn func(*domain.Session)) (domain.Session, error)
}

// TextSanitizer strips markup from free-text form input.
type TextSanitizer interface {
	Sanitize(text string) string
}

// StudioMetrics records studio outcomes. Implementations must be safe for concurrent use.
type StudioMetrics interface {
	ObservePreview(status string, duration time.Duration)
	ObserveUpload(kind, status string)
	ObserveCustomOrder(status string)
}
