package httpadapter

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
	"github.com/mmembroidery/tryon-studio/internal/core/usecase"
)

const (
	multipartMemory   = 8 << 20
	multipartOverhead = 1 << 20

	premadeTarget = "/?tab=premade#select-design"
	customTarget  = "/?tab=custom#select-design"
	previewTarget = "/#try-on"
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

type navItem struct {
	Label string
	Href  string
}

var navItems = []navItem{
	{Label: "Virtual Try-On", Href: "/#try-on"},
	{Label: "Customize", Href: customTarget},
	{Label: "About", Href: "/#about"},
	{Label: "Contact", Href: "/#contact"},
}

type feature struct {
	Key   string
	Label string
	Gold  bool
}

var features = []feature{
	{Key: "styles", Label: "Try Different Styles", Gold: true},
	{Key: "embroidery", Label: "Customize Embroidery"},
}

type designView struct {
	domain.Design
	Selected bool
}

type previewView struct {
	usecase.PreviewView
	Image template.URL
}

type pageView struct {
	Copy     PageCopy
	Nav      []navItem
	Notice   *domain.Notice
	Tab      string
	Designs  []designView
	Photo    template.URL
	Preview  previewView
	Features []feature

	Order         domain.CustomOrder
	HasDesignFile bool
}

func (rt *Router) home(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromContext(r.Context())
	session, flash, err := rt.studio.TakeFlash(r.Context(), sessionID)
	if err != nil {
		rt.respond(w, r, domain.Outcome{}, err, "/")
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, outcomeResponse{Notice: flash, State: &session})
		return
	}

	if err := rt.render(w, http.StatusOK, rt.buildPage(session, flash, r.URL.Query().Get("tab"))); err != nil {
		slog.Error("render_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (rt *Router) buildPage(session domain.Session, flash *domain.Notice, tab string) pageView {
	if tab != "custom" {
		tab = "premade"
	}
	p := session.Processing

	designs := rt.catalog.List()
	views := make([]designView, 0, len(designs))
	for _, d := range designs {
		views = append(views, designView{Design: d, Selected: d.ID == p.SelectedDesignID})
	}

	preview := usecase.BuildPreview(p)
	return pageView{
		Copy:     rt.copy,
		Nav:      navItems,
		Notice:   flash,
		Tab:      tab,
		Designs:  views,
		Photo:    imageSource(string(p.SelectedImage)),
		Preview:  previewView{PreviewView: preview, Image: imageSource(preview.ProcessedImage)},
		Features: features,

		Order:         session.Order,
		HasDesignFile: !session.Order.DesignFile.IsZero(),
	}
}

func (rt *Router) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	if err := rt.parseUploadForm(w, r); err != nil {
		rt.rejectUpload(w, r, err, "/")
		return
	}
	defer cleanupMultipart(r)

	file, err := formFile(r, "photo")
	if err != nil {
		rt.rejectUpload(w, r, err, "/")
		return
	}
	out, err := rt.studio.UploadPhoto(r.Context(), sessionIDFromContext(r.Context()), file)
	rt.respond(w, r, out, err, "/")
}

func (rt *Router) selectDesign(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.reject(w, r, domain.ErrorNotice("Please choose one of the premade designs."), fmt.Errorf("parse form: %w", err), premadeTarget)
		return
	}
	id, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("design_id")))
	if err != nil {
		rt.reject(w, r, domain.ErrorNotice("Please choose one of the premade designs."), fmt.Errorf("design_id %q", r.PostFormValue("design_id")), premadeTarget)
		return
	}
	out, err := rt.studio.SelectDesign(r.Context(), sessionIDFromContext(r.Context()), id)
	rt.respond(w, r, out, err, premadeTarget)
}

func (rt *Router) uploadCustomDesignFile(w http.ResponseWriter, r *http.Request) {
	if err := rt.parseUploadForm(w, r); err != nil {
		rt.rejectUpload(w, r, err, customTarget)
		return
	}
	defer cleanupMultipart(r)

	file, err := formFile(r, "design_file")
	if err != nil {
		rt.rejectUpload(w, r, err, customTarget)
		return
	}
	out, err := rt.studio.UploadCustomDesignFile(r.Context(), sessionIDFromContext(r.Context()), file)
	rt.respond(w, r, out, err, customTarget)
}

func (rt *Router) updateCustomOrder(w http.ResponseWriter, r *http.Request) {
	if err := rt.parseAnyForm(w, r); err != nil {
		rt.rejectUpload(w, r, err, customTarget)
		return
	}
	defer cleanupMultipart(r)

	out, err := rt.studio.UpdateCustomOrder(r.Context(), sessionIDFromContext(r.Context()), orderFields(r))
	if err == nil && out.Notice.IsZero() {
		out.Notice = domain.InfoNotice("Your custom order details were saved.")
	}
	rt.respond(w, r, out, err, customTarget)
}

// submitCustomOrder accepts the whole custom-order form: an optional design
// file, the text fields, then the submission itself.
func (rt *Router) submitCustomOrder(w http.ResponseWriter, r *http.Request) {
	if err := rt.parseAnyForm(w, r); err != nil {
		rt.rejectUpload(w, r, err, customTarget)
		return
	}
	defer cleanupMultipart(r)

	ctx := r.Context()
	sessionID := sessionIDFromContext(ctx)

	file, err := formFile(r, "design_file")
	if err != nil {
		rt.rejectUpload(w, r, err, customTarget)
		return
	}
	if file != nil {
		if out, err := rt.studio.UploadCustomDesignFile(ctx, sessionID, file); err != nil {
			rt.respond(w, r, out, err, customTarget)
			return
		}
	}
	if out, err := rt.studio.UpdateCustomOrder(ctx, sessionID, orderFields(r)); err != nil {
		rt.respond(w, r, out, err, customTarget)
		return
	}
	out, err := rt.studio.SubmitCustomOrder(ctx, sessionID)
	rt.respond(w, r, out, err, customTarget)
}

func (rt *Router) generatePreview(w http.ResponseWriter, r *http.Request) {
	out, err := rt.studio.GeneratePreview(r.Context(), sessionIDFromContext(r.Context()))
	rt.respond(w, r, out, err, previewTarget)
}

func (rt *Router) comingSoon(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "feature")
	known := false
	for _, f := range features {
		if f.Key == key {
			known = true
			break
		}
	}
	if !known {
		http.NotFound(w, r)
		return
	}
	out, err := rt.studio.ComingSoon(r.Context(), sessionIDFromContext(r.Context()), key)
	rt.respond(w, r, out, err, previewTarget)
}

func (rt *Router) reject(w http.ResponseWriter, r *http.Request, notice domain.Notice, cause error, target string) {
	session, err := rt.studio.Session(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		rt.respond(w, r, domain.Outcome{}, err, target)
		return
	}
	rt.respond(w, r, domain.Outcome{Session: session, Notice: notice}, domain.WrapError(domain.ErrInvalidInput, "read form", cause), target)
}

func (rt *Router) rejectUpload(w http.ResponseWriter, r *http.Request, cause error, target string) {
	notice := domain.ErrorNotice("We couldn't read that upload. Please try again.")
	if errors.Is(cause, errUploadTooLarge) {
		notice = domain.ErrorNotice("That file is too large. Please choose a smaller image.")
	}
	rt.reject(w, r, notice, cause, target)
}

func (rt *Router) parseUploadForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.UploadMaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errUploadTooLarge
		}
		return fmt.Errorf("parse multipart form: %w", err)
	}
	return nil
}

func (rt *Router) parseAnyForm(w http.ResponseWriter, r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return rt.parseUploadForm(w, r)
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	return nil
}

// formFile returns nil when the field is absent or empty.
func formFile(r *http.Request, field string) (*domain.FileUpload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	defer f.Close()
	if hdr.Size == 0 {
		return nil, nil
	}
	body, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return &domain.FileUpload{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Body:        bytes.NewReader(body),
	}, nil
}

func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func orderFields(r *http.Request) domain.CustomOrderFields {
	field := func(key string) *string {
		values, ok := r.PostForm[key]
		if !ok || len(values) == 0 {
			return nil
		}
		v := values[0]
		return &v
	}
	return domain.CustomOrderFields{
		Measurements: field("measurements"),
		Material:     field("material"),
		Color:        field("color"),
		Timeframe:    field("timeframe"),
		Occasion:     field("occasion"),
	}
}
