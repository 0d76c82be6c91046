package image

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/pixstore/service/internal/middleware"
	"github.com/pixstore/service/internal/response"
)

const notFoundMessage = "Resource not found"

var uploadMessages = map[error]string{
	ErrNotMultipart:    "Bad Request: expecting multipart/form-data",
	ErrMalformedUpload: "Bad Request: malformed multipart body",
	ErrTooLarge:        "File is too large.",
	ErrNotImage:        "Bad Request: expecting image/* file",
	ErrNoImage:         "Bad Request: expecting an image file",
	ErrMultipleImages:  "Bad Request: expecting a single image file",
}

// Handler holds HTTP handlers for image endpoints.
type Handler struct {
	svc *Service
	log logrus.FieldLogger
}

// NewHandler creates a new image Handler.
func NewHandler(svc *Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the image endpoints. requireAuth guards every write.
func (h *Handler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/heartbeat", h.Heartbeat)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Replace)
		r.Delete("/{id}", h.Delete)
	})
}

// Heartbeat godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Success	200
//	@Router		/heartbeat [get]
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	response.Empty(w, http.StatusOK)
}

// Create godoc
//
//	@Summary		Upload an image
//	@Description	Stores the single image/* file part of the form and returns the new record.
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			image	formData	file	true	"Image file"
//	@Success		201		{object}	View
//	@Failure		400		{object}	response.MessageBody
//	@Failure		401		{object}	response.MessageBody
//	@Failure		500		{object}	response.MessageBody
//	@Router			/ [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	mr, err := multipartReader(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	img, err := h.svc.Create(r.Context(), userID, mr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, img.View(ViewPublic))
}

// Get godoc
//
//	@Summary	Get an image
//	@Tags		images
//	@Produce	json
//	@Param		id	path		string	true	"Image id"
//	@Success	200	{object}	View
//	@Failure	404	{object}	response.MessageBody
//	@Failure	500	{object}	response.MessageBody
//	@Router		/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	img, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, img.View(ViewPublic))
}

// Replace godoc
//
//	@Summary		Replace an image
//	@Description	Uploads a new file for an existing image. The id and owner are kept.
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string	true	"Image id"
//	@Param			image	formData	file	true	"Image file"
//	@Success		200		{object}	View
//	@Failure		400		{object}	response.MessageBody
//	@Failure		401		{object}	response.MessageBody
//	@Failure		404		{object}	response.MessageBody
//	@Failure		500		{object}	response.MessageBody
//	@Router			/{id} [put]
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	// Lookup happens inside the service before the body is read, but a
	// non-multipart request can be turned away without touching either store.
	mr, err := multipartReader(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	img, err := h.svc.Replace(r.Context(), chi.URLParam(r, "id"), mr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, img.View(ViewPublic))
}

// Delete godoc
//
//	@Summary	Delete an image
//	@Tags		images
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Image id"
//	@Success	200
//	@Failure	401	{object}	response.MessageBody
//	@Failure	404	{object}	response.MessageBody
//	@Failure	500	{object}	response.MessageBody
//	@Router		/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Empty(w, http.StatusOK)
}

// multipartReader accepts only multipart/form-data bodies.
func multipartReader(r *http.Request) (*multipart.Reader, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, ErrNotMultipart
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, ErrNotMultipart
	}
	return mr, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, notFoundMessage)
		return
	}
	if ve, ok := IsValidationError(err); ok {
		response.Errors(w, ve.Errors)
		return
	}
	for target, msg := range uploadMessages {
		if errors.Is(err, target) {
			h.log.WithError(err).WithField("path", r.URL.Path).Debug("upload rejected")
			response.BadRequest(w, msg)
			return
		}
	}

	h.log.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("request failed")
	response.InternalError(w)
}
