package closet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"closet/cmd/identity/ids"
	"closet/cmd/internal/apperr"
	authapi "closet/cmd/internal/auth/api"
	v1 "closet/shared/contracts/auth/v1"
)

// Handler serves the /closets routes. Every route requires an
// authenticated user.
type Handler struct {
	log    *slog.Logger
	items  Store
	images *ImageStore
	resp   *apperr.Responder

	now            func() time.Time
	maxUploadBytes int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithClock overrides the clock used for IDs and timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithMaxUploadBytes caps request bodies (default 10 MiB).
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandler wires the item store and image store.
func NewHandler(log *slog.Logger, items Store, images *ImageStore, resp *apperr.Responder, opts ...HandlerOption) (*Handler, error) {
	if items == nil || images == nil {
		return nil, errors.New("closet: nil store")
	}
	if log == nil {
		log = slog.Default()
	}
	if resp == nil {
		resp = apperr.NewResponder(log, false)
	}
	h := &Handler{
		log:            log,
		items:          items,
		images:         images,
		resp:           resp,
		now:            time.Now,
		maxUploadBytes: 10 << 20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register mounts the routes under r (the /api/v1 router) behind protect.
func (h *Handler) Register(r *mux.Router, protect mux.MiddlewareFunc) {
	sub := r.PathPrefix(v1.PathClosets).Subrouter()
	sub.Use(protect)

	sub.Handle("", h.resp.Handle(h.list)).Methods(http.MethodGet)
	sub.Handle("", h.resp.Handle(h.create)).Methods(http.MethodPost)
	sub.Handle("/image/{filename}", h.resp.Handle(h.serveImage)).Methods(http.MethodGet)
	sub.Handle("/{id}", h.resp.Handle(h.get)).Methods(http.MethodGet)
	sub.Handle("/{id}", h.resp.Handle(h.update)).Methods(http.MethodPatch)
	sub.Handle("/{id}", h.resp.Handle(h.remove)).Methods(http.MethodDelete)
}

// PurgeUser deletes every item of userID and their photos. Photo removal
// failures are logged and do not fail the purge.
func (h *Handler) PurgeUser(ctx context.Context, userID string) error {
	photos, err := h.items.DeleteAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, p := range photos {
		h.removePhoto(p)
	}
	return nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	items, err := h.items.List(r.Context(), uid)
	if err != nil {
		return classify(err)
	}
	writeJSON(w, http.StatusOK, items)
	return nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	it, err := h.items.Get(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		return classify(err)
	}
	writeJSON(w, http.StatusOK, it)
	return nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}

	form, err := parseItemForm(w, r, h.maxUploadBytes)
	if err != nil {
		return classify(err)
	}
	defer form.close()

	if form.file == nil {
		return apperr.BadRequest(v1.CodeValidation, msgImageRequired)
	}

	now := h.now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return apperr.Internal(err)
	}

	it := Item{
		ID:         id,
		UserID:     uid,
		Categories: form.categories,
		Colors:     form.colors,
		CreatedAt:  now,
	}
	if form.title != nil {
		it.Title = *form.title
	}
	it = normalizeLists(it)
	if err := it.Validate(); err != nil {
		return classify(err)
	}

	photo, err := h.images.Save(form.file, form.header.Filename, form.header.Header.Get("Content-Type"))
	if err != nil {
		return classify(err)
	}
	it.Photo = photo

	created, err := h.items.Create(r.Context(), it)
	if err != nil {
		h.removePhoto(photo)
		return classify(err)
	}

	writeJSON(w, http.StatusCreated, createdResponse{Status: v1.StatusSuccess, Data: created})
	return nil
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}

	form, err := parseItemForm(w, r, h.maxUploadBytes)
	if err != nil {
		return classify(err)
	}
	defer form.close()

	ctx := r.Context()
	it, err := h.items.Get(ctx, uid, mux.Vars(r)["id"])
	if err != nil {
		return classify(err)
	}

	if form.title != nil {
		it.Title = *form.title
	}
	if form.hasCats {
		it.Categories = form.categories
	}
	if form.hasColors {
		it.Colors = form.colors
	}
	if err := it.Validate(); err != nil {
		return classify(err)
	}

	oldPhoto := it.Photo
	if form.file != nil {
		photo, err := h.images.Save(form.file, form.header.Filename, form.header.Header.Get("Content-Type"))
		if err != nil {
			return classify(err)
		}
		it.Photo = photo
	}
	it.UpdatedAt = h.now()

	updated, err := h.items.Update(ctx, it)
	if err != nil {
		if it.Photo != oldPhoto {
			h.removePhoto(it.Photo)
		}
		return classify(err)
	}
	if updated.Photo != oldPhoto && oldPhoto != "" {
		h.removePhoto(oldPhoto)
	}

	writeJSON(w, http.StatusOK, updated)
	return nil
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}
	it, err := h.items.Delete(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		return classify(err)
	}
	if it.Photo != "" {
		h.removePhoto(it.Photo)
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Closet deleted"})
	return nil
}

func (h *Handler) serveImage(w http.ResponseWriter, r *http.Request) error {
	uid, err := userID(r)
	if err != nil {
		return err
	}

	name := mux.Vars(r)["filename"]
	if !ValidImageName(name) {
		return apperr.BadRequest(v1.CodeInvalidRequest, msgInvalidName)
	}
	if _, err := h.items.GetByPhoto(r.Context(), uid, name); err != nil {
		return classify(err)
	}

	var buf bytes.Buffer
	if err := h.images.Render(&buf, name); err != nil {
		return classify(err)
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "image/jpeg")
	hdr.Set("Cross-Origin-Resource-Policy", "cross-origin")
	hdr.Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}

func (h *Handler) removePhoto(name string) {
	if err := h.images.Remove(name); err != nil {
		h.log.Warn("closet.image.delete.fail", "photo", name, "err", err)
	}
}

type createdResponse struct {
	Status string `json:"status"`
	Data   Item   `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func userID(r *http.Request) (string, error) {
	u, ok := authapi.UserFromContext(r.Context())
	if !ok || u.ID == "" {
		return "", apperr.Unauthorized(v1.CodeNoToken, "User not authenticated.")
	}
	return u.ID, nil
}

// classify maps closet errors onto API errors.
func classify(err error) error {
	var tl tooLarge
	switch {
	case errors.As(err, &tl):
		return apperr.Wrap(err, http.StatusRequestEntityTooLarge, v1.CodeInvalidRequest, "Request body too large.")
	case errors.Is(err, ErrInvalidInput):
		return apperr.Wrap(err, http.StatusBadRequest, v1.CodeValidation, Message(err))
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(err, http.StatusNotFound, v1.CodeNotFound, Message(err))
	default:
		return apperr.Internal(err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
