package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"familytree/internal/apperr"
	"familytree/internal/service"
)

// multipartOverhead is allowed on top of the image size for form fields
const multipartOverhead = 64 << 10

// ImageHandler handles photo uploads, review and delivery
type ImageHandler struct {
	imageService  *service.ImageService
	uploadMaxSize int64
}

// NewImageHandler creates a new image handler
func NewImageHandler(imageService *service.ImageService, uploadMaxSize int64) *ImageHandler {
	return &ImageHandler{imageService: imageService, uploadMaxSize: uploadMaxSize}
}

// Upload accepts a multipart "image" file for a member. Uploads wait for
// review before they are shown.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.uploadMaxSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, r, service.ErrImageTooLarge)
			return
		}
		respondWithError(w, r, apperr.Wrap(err, apperr.CodeInvalid, "Expected a multipart image upload", "يجب رفع الصورة كملف"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, r, apperr.Wrap(err, apperr.CodeInvalid, "Please choose an image", "يرجى اختيار صورة"))
		return
	}
	defer file.Close()

	uploader := actor(r)
	if name := r.FormValue("uploaderName"); name != "" && GetAdminFromContext(r.Context()) == nil {
		uploader = "public:" + name
	}

	img, err := h.imageService.Upload(r.Context(), r.PathValue("id"), r.FormValue("caption"), file, uploader)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, img)
}

// Serve streams an image. Anonymous callers only see approved images.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	isAdmin := GetAdminFromContext(r.Context()) != nil
	rc, img, err := h.imageService.Open(r.Context(), id, isAdmin)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(img.SizeBytes, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if img.IsPublic() {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, no-store")
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("Failed to stream image", "image_id", id, "error", err)
	}
}

// List lists images, filtered by ?status= and ?memberId=
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	status, err := reviewStatus(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	images, err := h.imageService.List(status, r.URL.Query().Get("memberId"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondList(w, images, listMeta{Total: len(images)})
}

type approveImageResponse struct {
	Image  any `json:"image"`
	Member any `json:"member"`
}

// Approve publishes an image as its member's photo
func (h *ImageHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	img, member, err := h.imageService.Approve(r.Context(), id, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, approveImageResponse{Image: img, Member: member})
}

// Reject discards a pending image
func (h *ImageHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	img, err := h.imageService.Reject(r.Context(), id, actor(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, img)
}

// Delete removes an image and its file
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	if err := h.imageService.Delete(r.Context(), id, actor(r)); err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}
