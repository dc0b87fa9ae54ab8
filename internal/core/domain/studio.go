package domain

import (
	"io"
	"time"
)

// DataURI is an encoded user file ("data:<mime>;base64,<payload>"). Empty means absent.
type DataURI string

func (d DataURI) IsZero() bool { return d == "" }

// Phase tracks a single preview attempt.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseRejected   Phase = "rejected"
	PhaseRequesting Phase = "requesting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// ProcessingState is the try-on half of a studio session.
//
// ProcessedImage is only meaningful while SelectedImage and SelectedDesignID are
// both set. IsProcessing is true only while a composition request is in flight.
type ProcessingState struct {
	SelectedImage    DataURI `json:"selectedImage,omitempty"`
	SelectedDesignID int     `json:"selectedDesignId,omitempty"`
	ProcessedImage   string  `json:"processedImage,omitempty"`
	IsProcessing     bool    `json:"isProcessing"`
	Phase            Phase   `json:"phase"`
	// Revision increments whenever the base photo changes so that a late
	// composition result for an older photo can be recognised.
	Revision uint64 `json:"revision"`
}

func (s ProcessingState) HasSelection() bool {
	return !s.SelectedImage.IsZero() && s.SelectedDesignID != 0
}

// CustomOrder holds the bespoke order form.
type CustomOrder struct {
	Measurements string  `json:"measurements"`
	Material     string  `json:"material"`
	Color        string  `json:"color"`
	Timeframe    string  `json:"timeframe"`
	Occasion     string  `json:"occasion"`
	DesignFile   DataURI `json:"designFile,omitempty"`
}

// CustomOrderFields is a partial update of the order's text fields. Nil fields are left alone.
type CustomOrderFields struct {
	Measurements *string
	Material     *string
	Color        *string
	Timeframe    *string
	Occasion     *string
}

// SubmittedOrder is what an order submitter receives.
type SubmittedOrder struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"sessionId"`
	Order       CustomOrder `json:"order"`
	SubmittedAt time.Time   `json:"submittedAt"`
}

// Session is the page-scoped state of one browser.
type Session struct {
	ID         string          `json:"id"`
	Processing ProcessingState `json:"processing"`
	Order      CustomOrder     `json:"order"`
	Flash      *Notice         `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func NewSession(id string, now time.Time) Session {
	return Session{
		ID:         id,
		Processing: ProcessingState{Phase: PhaseIdle},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// FileUpload is a file picked by the user. A nil upload means nothing was picked.
type FileUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
