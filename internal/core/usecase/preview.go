package usecase

import "github.com/mmembroidery/tryon-studio/internal/core/domain"

type PreviewMode string

const (
	PreviewNeedsPhoto  PreviewMode = "needs-photo"
	PreviewNeedsDesign PreviewMode = "needs-design"
	PreviewReady       PreviewMode = "ready"
	PreviewProcessed   PreviewMode = "processed"
)

// PreviewView is what the preview panel shows for a given state.
type PreviewView struct {
	Mode           PreviewMode
	Message        string
	ProcessedImage string
	IsProcessing   bool
	// CanGenerate is false while a request is in flight so the trigger is disabled.
	CanGenerate bool
	ButtonLabel string
}

func BuildPreview(p domain.ProcessingState) PreviewView {
	switch {
	case p.SelectedImage.IsZero():
		return PreviewView{Mode: PreviewNeedsPhoto, Message: "Upload a photo to see the preview"}
	case p.SelectedDesignID == 0:
		return PreviewView{Mode: PreviewNeedsDesign, Message: "Please select a design to see the preview"}
	case p.ProcessedImage != "":
		return PreviewView{Mode: PreviewProcessed, ProcessedImage: p.ProcessedImage}
	}

	view := PreviewView{
		Mode:         PreviewReady,
		IsProcessing: p.IsProcessing,
		CanGenerate:  !p.IsProcessing,
		ButtonLabel:  "Generate Preview",
	}
	if p.IsProcessing {
		view.ButtonLabel = "Processing..."
		view.Message = "Processing your image with AI..."
	}
	return view
}
