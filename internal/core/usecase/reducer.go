package usecase

import (
	"errors"
	"fmt"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

const (
	msgPhotoUploaded      = "Image uploaded successfully!"
	msgDesignFileUploaded = "Design file uploaded successfully!"
	msgMissingSelection   = "Please select both an image and a design"
	msgDesignNotFound     = "Selected design not found"
	msgPreviewBusy        = "Your preview is still being generated."
	msgPreviewFailed      = "Error processing image. Please try again."
	msgMissingDesignFile  = "Please upload your design file"
	msgOrderSubmitted     = "Custom order submitted successfully! We'll contact you soon."
	msgOrderFailed        = "We couldn't submit your custom order. Please try again."
	msgComingSoon         = "This feature is coming soon!"
)

var (
	errNoFile          = errors.New("no file provided")
	errNoSelection     = errors.New("photo and design must both be selected")
	errNoDesignFile    = errors.New("custom order has no design file")
	errAlreadyInFlight = errors.New("a composition request is already in flight")
)

// Event is an input to Reduce.
type Event interface {
	event()
}

// PhotoUploaded replaces the base photo.
type PhotoUploaded struct {
	Image domain.DataURI
}

// DesignSelected picks a premade design. The id is not checked against the catalog.
type DesignSelected struct {
	DesignID int
}

// PreviewRequested is the user's click on "Generate Preview".
type PreviewRequested struct {
	Find func(id int) (domain.Design, bool)
}

// CompositionSucceeded carries the remote result for the attempt started at Revision.
type CompositionSucceeded struct {
	Image    string
	Revision uint64
}

// CompositionFailed reports a failed attempt started at Revision.
type CompositionFailed struct {
	Err      error
	Revision uint64
}

// CustomDesignFileUploaded attaches the reference design of a custom order.
type CustomDesignFileUploaded struct {
	File domain.DataURI
}

// CustomOrderEdited updates the order's text fields.
type CustomOrderEdited struct {
	Fields domain.CustomOrderFields
}

// CustomOrderSubmitRequested is the user's click on "Submit Custom Order".
type CustomOrderSubmitRequested struct{}

// CustomOrderAccepted reports that the submitter took the order.
type CustomOrderAccepted struct{}

// CustomOrderRejected reports that the submitter failed.
type CustomOrderRejected struct {
	Err error
}

// FeatureRequested is a click on a not yet available customisation option.
type FeatureRequested struct {
	Feature string
}

func (PhotoUploaded) event()              {}
func (DesignSelected) event()             {}
func (PreviewRequested) event()           {}
func (CompositionSucceeded) event()       {}
func (CompositionFailed) event()          {}
func (CustomDesignFileUploaded) event()   {}
func (CustomOrderEdited) event()          {}
func (CustomOrderSubmitRequested) event() {}
func (CustomOrderAccepted) event()        {}
func (CustomOrderRejected) event()        {}
func (FeatureRequested) event()           {}

// ComposeCommand asks the caller to dispatch one composition request.
type ComposeCommand struct {
	UserImage   string
	DesignImage string
	DesignID    int
	Revision    uint64
}

// Transition is the result of reducing one event.
type Transition struct {
	Session domain.Session
	Notice  domain.Notice
	Err     error
	// Trace lists the preview phases passed through while reducing the event.
	Trace []domain.Phase

	Compose *ComposeCommand
	Submit  *domain.CustomOrder
}

// Reduce applies ev to s and returns the next state. It performs no I/O.
func Reduce(s domain.Session, ev Event) Transition {
	if s.Processing.Phase == "" {
		s.Processing.Phase = domain.PhaseIdle
	}

	switch ev := ev.(type) {
	case PhotoUploaded:
		if ev.Image.IsZero() {
			return Transition{Session: s, Err: domain.WrapError(domain.ErrInvalidInput, "upload photo", errNoFile)}
		}
		s.Processing.SelectedImage = ev.Image
		s.Processing.ProcessedImage = ""
		s.Processing.Revision++
		return Transition{Session: s, Notice: domain.SuccessNotice(msgPhotoUploaded)}

	case DesignSelected:
		s.Processing.SelectedDesignID = ev.DesignID
		return Transition{Session: s}

	case PreviewRequested:
		return reducePreviewRequested(s, ev)

	case CompositionSucceeded:
		s.Processing.IsProcessing = false
		s.Processing.Phase = domain.PhaseIdle
		trace := []domain.Phase{domain.PhaseSucceeded, domain.PhaseIdle}
		if ev.Revision != s.Processing.Revision {
			// The photo changed while the request was in flight.
			return Transition{Session: s, Trace: trace}
		}
		s.Processing.ProcessedImage = ev.Image
		return Transition{Session: s, Trace: trace}

	case CompositionFailed:
		s.Processing.IsProcessing = false
		s.Processing.Phase = domain.PhaseIdle
		return Transition{
			Session: s,
			Notice:  domain.ErrorNotice(msgPreviewFailed),
			Err:     domain.WrapError(domain.ErrCompositionFailed, "generate preview", ev.Err),
			Trace:   []domain.Phase{domain.PhaseFailed, domain.PhaseIdle},
		}

	case CustomDesignFileUploaded:
		if ev.File.IsZero() {
			return Transition{Session: s, Err: domain.WrapError(domain.ErrInvalidInput, "upload design file", errNoFile)}
		}
		s.Order.DesignFile = ev.File
		return Transition{Session: s, Notice: domain.SuccessNotice(msgDesignFileUploaded)}

	case CustomOrderEdited:
		s.Order = applyOrderFields(s.Order, ev.Fields)
		return Transition{Session: s}

	case CustomOrderSubmitRequested:
		if s.Order.DesignFile.IsZero() {
			return Transition{
				Session: s,
				Notice:  domain.ErrorNotice(msgMissingDesignFile),
				Err:     domain.WrapError(domain.ErrInvalidInput, "submit custom order", errNoDesignFile),
			}
		}
		order := s.Order
		return Transition{Session: s, Submit: &order}

	case CustomOrderAccepted:
		return Transition{Session: s, Notice: domain.SuccessNotice(msgOrderSubmitted)}

	case CustomOrderRejected:
		return Transition{
			Session: s,
			Notice:  domain.ErrorNotice(msgOrderFailed),
			Err:     domain.WrapError(domain.ErrSubmissionFailed, "submit custom order", ev.Err),
		}

	case FeatureRequested:
		return Transition{Session: s, Notice: domain.InfoNotice(msgComingSoon)}
	}

	return Transition{Session: s}
}

func reducePreviewRequested(s domain.Session, ev PreviewRequested) Transition {
	p := s.Processing
	if p.IsProcessing {
		return Transition{
			Session: s,
			Notice:  domain.InfoNotice(msgPreviewBusy),
			Err:     domain.WrapError(domain.ErrBusy, "generate preview", errAlreadyInFlight),
		}
	}

	trace := []domain.Phase{domain.PhaseValidating}
	if !p.HasSelection() {
		return Transition{
			Session: s,
			Notice:  domain.ErrorNotice(msgMissingSelection),
			Err:     domain.WrapError(domain.ErrInvalidInput, "generate preview", errNoSelection),
			Trace:   append(trace, domain.PhaseRejected, domain.PhaseIdle),
		}
	}

	var (
		design domain.Design
		found  bool
	)
	if ev.Find != nil {
		design, found = ev.Find(p.SelectedDesignID)
	}
	if !found {
		return Transition{
			Session: s,
			Notice:  domain.ErrorNotice(msgDesignNotFound),
			Err:     domain.WrapError(domain.ErrDesignNotFound, "generate preview", designIDError(p.SelectedDesignID)),
			Trace:   append(trace, domain.PhaseRejected, domain.PhaseIdle),
		}
	}

	s.Processing.IsProcessing = true
	s.Processing.Phase = domain.PhaseRequesting
	return Transition{
		Session: s,
		Trace:   append(trace, domain.PhaseRequesting),
		Compose: &ComposeCommand{
			UserImage:   string(p.SelectedImage),
			DesignImage: design.ImageURL,
			DesignID:    design.ID,
			Revision:    p.Revision,
		},
	}
}

func applyOrderFields(order domain.CustomOrder, f domain.CustomOrderFields) domain.CustomOrder {
	if f.Measurements != nil {
		order.Measurements = *f.Measurements
	}
	if f.Material != nil {
		order.Material = *f.Material
	}
	if f.Color != nil {
		order.Color = *f.Color
	}
	if f.Timeframe != nil {
		order.Timeframe = *f.Timeframe
	}
	if f.Occasion != nil {
		order.Occasion = *f.Occasion
	}
	return order
}

func designIDError(id int) error {
	return fmt.Errorf("id=%d", id)
}
