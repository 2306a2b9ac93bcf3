// File HTTP handlers.
//
// This file exposes upload storage:
//   - POST   /files                 (multipart upload, field "file")
//   - GET    /files                 (?relatedType=&relatedId=)
//   - GET    /files/{id}            (metadata)
//   - GET    /files/{id}/download   (content, served as an attachment)
//   - DELETE /files/{id}
//
// Files are always served by id with their original name in
// Content-Disposition; the stored name never leaves the server.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/http/middleware"
	"github.com/tbourn/solar-support-backend/internal/services"
)

// UploadFile godoc
// @ID          uploadFile
// @Summary     Upload a file
// @Description Accepts jpg, png, gif, pdf, doc, docx, txt, xls and xlsx up to the configured size (10 MB by default).
// @Tags        Files
// @Accept      multipart/form-data
// @Produce     json
// @Param       X-User-ID    header    string  false "Uploader"
// @Param       file         formData  file    true  "File"
// @Param       relatedType  formData  string  false "Owning entity type"  example(ticket)
// @Param       relatedId    formData  string  false "Owning entity id"
// @Success     201  {object}  domain.FileUpload
// @Failure     400  {object}  handlers.ErrorResponse  "No file"
// @Failure     413  {object}  handlers.ErrorResponse  "Too large"
// @Failure     415  {object}  handlers.ErrorResponse  "File type not allowed"
// @Router      /files [post]
func (h *Handlers) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, services.ErrFileTooLarge.Error())
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return
	}
	src, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	defer src.Close()

	f, err := h.files.Save(c.Request.Context(), services.NewFile{
		Name:        fh.Filename,
		Body:        src,
		UploadedBy:  middleware.UserID(c),
		RelatedType: c.PostForm("relatedType"),
		RelatedID:   c.PostForm("relatedId"),
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, f)
}

// ListFiles godoc
// @ID          listFiles
// @Summary     List files attached to an entity
// @Tags        Files
// @Produce     json
// @Param       relatedType  query  string  true  "Owning entity type"
// @Param       relatedId    query  string  true  "Owning entity id"
// @Success     200  {array}   domain.FileUpload
// @Failure     400  {object}  handlers.ErrorResponse  "Missing filter"
// @Router      /files [get]
func (h *Handlers) ListFiles(c *gin.Context) {
	items, err := h.files.ListRelated(c.Request.Context(), strings.TrimSpace(c.Query("relatedType")), strings.TrimSpace(c.Query("relatedId")))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetFile godoc
// @ID          getFile
// @Summary     File metadata
// @Tags        Files
// @Produce     json
// @Param       id  path  string  true  "File ID"
// @Success     200  {object}  domain.FileUpload
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /files/{id} [get]
func (h *Handlers) GetFile(c *gin.Context) {
	f, err := h.files.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, f)
}

// DownloadFile godoc
// @ID          downloadFile
// @Summary     Download a file
// @Tags        Files
// @Produce     octet-stream
// @Param       id  path  string  true  "File ID"
// @Success     200  {file}    file
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /files/{id}/download [get]
func (h *Handlers) DownloadFile(c *gin.Context) {
	f, path, err := h.files.Path(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	c.Header("Content-Type", f.MimeType)
	c.FileAttachment(path, f.OriginalName)
}

// DeleteFile godoc
// @ID          deleteFile
// @Summary     Delete a file
// @Description Staff only.
// @Tags        Files
// @Param       id  path  string  true  "File ID"
// @Success     204
// @Failure     403  {object}  handlers.ErrorResponse  "Not staff"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /files/{id} [delete]
func (h *Handlers) DeleteFile(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
