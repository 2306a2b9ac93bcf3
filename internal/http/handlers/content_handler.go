// Content HTTP handlers.
//
// This file exposes the marketing site content: pages addressed by slug or
// id, their ordered sections, and the FAQ. Reads are public and only show
// published (visible) records unless a staff caller asks for drafts with
// includeDrafts=true. Writes are mounted behind RequireStaff by the router.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/solar-support-backend/internal/http/middleware"
	"github.com/tbourn/solar-support-backend/internal/services"
	"github.com/tbourn/solar-support-backend/internal/utils"
)

//
// DTOs
//

// CreatePageRequest is the JSON payload of POST /pages. A missing
// is_published publishes the page.
type CreatePageRequest struct {
	Slug            string `json:"slug" binding:"required,max=128" example:"residential-solar"`
	Title           string `json:"title" binding:"max=255" example:"Residential Solar"`
	Content         string `json:"content"`
	MetaDescription string `json:"metaDescription" binding:"max=512"`
	IsPublished     *bool  `json:"isPublished"`
}

// UpdatePageRequest is the JSON payload of PATCH /pages/{id}.
type UpdatePageRequest struct {
	Slug            *string `json:"slug" binding:"omitempty,max=128"`
	Title           *string `json:"title" binding:"omitempty,max=255"`
	Content         *string `json:"content"`
	MetaDescription *string `json:"metaDescription" binding:"omitempty,max=512"`
	IsPublished     *bool   `json:"isPublished"`
}

// CreateSectionRequest is the JSON payload of POST /pages/{id}/sections.
type CreateSectionRequest struct {
	SectionType string `json:"sectionType" binding:"max=32" example:"hero"`
	Title       string `json:"title" binding:"max=255"`
	Content     string `json:"content"`
	SortOrder   int    `json:"sortOrder"`
	IsVisible   *bool  `json:"isVisible"`
}

// UpdateSectionRequest is the JSON payload of PATCH /page-sections/{id}.
type UpdateSectionRequest struct {
	SectionType *string `json:"sectionType" binding:"omitempty,max=32"`
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Content     *string `json:"content"`
	SortOrder   *int    `json:"sortOrder"`
	IsVisible   *bool   `json:"isVisible"`
}

// CreateFAQRequest is the JSON payload of POST /faqs.
type CreateFAQRequest struct {
	Question    string   `json:"question" binding:"required" example:"Do you offer financing?"`
	Answer      string   `json:"answer" binding:"required" example:"Yes, with flexible payment plans."`
	Category    string   `json:"category" binding:"max=64" example:"financing"`
	Page        string   `json:"page" binding:"max=64" example:"services"`
	Keywords    []string `json:"keywords" example:"financing,loan"`
	SortOrder   int      `json:"sortOrder"`
	IsPublished *bool    `json:"isPublished"`
}

// UpdateFAQRequest is the JSON payload of PATCH /faqs/{id}.
type UpdateFAQRequest struct {
	Question    *string   `json:"question"`
	Answer      *string   `json:"answer"`
	Category    *string   `json:"category" binding:"omitempty,max=64"`
	Page        *string   `json:"page" binding:"omitempty,max=64"`
	Keywords    *[]string `json:"keywords"`
	SortOrder   *int      `json:"sortOrder"`
	IsPublished *bool     `json:"isPublished"`
}

// includeDrafts reports whether unpublished content should be returned.
func includeDrafts(c *gin.Context) bool {
	return middleware.IsStaff(c) && utils.BoolOr(c.Query("includeDrafts"), false)
}

//
// Pages
//

// ListPages godoc
// @ID          listPages
// @Summary     List pages
// @Tags        Content
// @Produce     json
// @Param       includeDrafts  query  bool  false "Include unpublished pages (staff)"
// @Success     200  {array}  domain.Page
// @Router      /pages [get]
func (h *Handlers) ListPages(c *gin.Context) {
	items, err := h.content.ListPages(c.Request.Context(), !includeDrafts(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetPage godoc
// @ID          getPage
// @Summary     Fetch a page by slug or id
// @Tags        Content
// @Produce     json
// @Param       id  path  string  true  "Page slug or ID"  example(residential-solar)
// @Success     200  {object}  domain.Page
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /pages/{id} [get]
func (h *Handlers) GetPage(c *gin.Context) {
	p, err := h.content.GetPage(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	if !p.IsPublished && !middleware.IsStaff(c) {
		failService(c, services.ErrPageNotFound, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, p)
}

// CreatePage godoc
// @ID          createPage
// @Summary     Create a page
// @Tags        Content
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreatePageRequest  true  "Page"
// @Success     201  {object}  domain.Page
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403  {object}  handlers.ErrorResponse  "Staff only"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug taken"
// @Router      /pages [post]
func (h *Handlers) CreatePage(c *gin.Context) {
	var req CreatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slug required")
		return
	}
	p, err := h.content.CreatePage(c.Request.Context(), services.NewPage{
		Slug:            req.Slug,
		Title:           req.Title,
		Content:         req.Content,
		MetaDescription: req.MetaDescription,
		Published:       req.IsPublished,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, p)
}

// UpdatePage godoc
// @ID          updatePage
// @Summary     Update a page
// @Tags        Content
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Page slug or ID"
// @Param       body  body  handlers.UpdatePageRequest  true  "Changes"
// @Success     200  {object}  domain.Page
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug taken"
// @Router      /pages/{id} [patch]
func (h *Handlers) UpdatePage(c *gin.Context) {
	var req UpdatePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid page update")
		return
	}
	p, err := h.content.UpdatePage(c.Request.Context(), c.Param("id"), services.PageUpdate{
		Slug:            req.Slug,
		Title:           req.Title,
		Content:         req.Content,
		MetaDescription: req.MetaDescription,
		Published:       req.IsPublished,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePage godoc
// @ID          deletePage
// @Summary     Delete a page and its sections
// @Tags        Content
// @Param       id  path  string  true  "Page slug or ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /pages/{id} [delete]
func (h *Handlers) DeletePage(c *gin.Context) {
	if err := h.content.DeletePage(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

//
// Sections
//

// ListSections godoc
// @ID          listSections
// @Summary     Sections of a page in display order
// @Tags        Content
// @Produce     json
// @Param       id             path   string  true  "Page slug or ID"
// @Param       includeDrafts  query  bool    false "Include hidden sections (staff)"
// @Success     200  {array}   domain.PageSection
// @Failure     404  {object}  handlers.ErrorResponse  "Page not found"
// @Router      /pages/{id}/sections [get]
func (h *Handlers) ListSections(c *gin.Context) {
	items, err := h.content.Sections(c.Request.Context(), c.Param("id"), !includeDrafts(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateSection godoc
// @ID          createSection
// @Summary     Add a section to a page
// @Tags        Content
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Page slug or ID"
// @Param       body  body  handlers.CreateSectionRequest  true  "Section"
// @Success     201  {object}  domain.PageSection
// @Failure     404  {object}  handlers.ErrorResponse  "Page not found"
// @Router      /pages/{id}/sections [post]
func (h *Handlers) CreateSection(c *gin.Context) {
	var req CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid section payload")
		return
	}
	s, err := h.content.CreateSection(c.Request.Context(), c.Param("id"), services.NewSection{
		SectionType: req.SectionType,
		Title:       req.Title,
		Content:     req.Content,
		SortOrder:   req.SortOrder,
		Visible:     req.IsVisible,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, s)
}

// UpdateSection godoc
// @ID          updateSection
// @Summary     Update a page section
// @Tags        Content
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Section ID"
// @Param       body  body  handlers.UpdateSectionRequest  true  "Changes"
// @Success     200  {object}  domain.PageSection
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /page-sections/{id} [patch]
func (h *Handlers) UpdateSection(c *gin.Context) {
	var req UpdateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid section update")
		return
	}
	s, err := h.content.UpdateSection(c.Request.Context(), c.Param("id"), services.SectionUpdate{
		SectionType: req.SectionType,
		Title:       req.Title,
		Content:     req.Content,
		SortOrder:   req.SortOrder,
		Visible:     req.IsVisible,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, s)
}

// DeleteSection godoc
// @ID          deleteSection
// @Summary     Delete a page section
// @Tags        Content
// @Param       id  path  string  true  "Section ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /page-sections/{id} [delete]
func (h *Handlers) DeleteSection(c *gin.Context) {
	if err := h.content.DeleteSection(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

//
// FAQs
//

// ListFAQs godoc
// @ID          listFAQs
// @Summary     List FAQs
// @Tags        Content
// @Produce     json
// @Param       category       query  string  false "Filter by category"  example(financing)
// @Param       page           query  string  false "Filter by page context"  example(services)
// @Param       includeDrafts  query  bool    false "Include unpublished entries (staff)"
// @Success     200  {array}  domain.FAQ
// @Router      /faqs [get]
func (h *Handlers) ListFAQs(c *gin.Context) {
	items, err := h.content.ListFAQs(c.Request.Context(),
		strings.ToLower(strings.TrimSpace(c.Query("category"))),
		strings.ToLower(strings.TrimSpace(c.Query("page"))),
		!includeDrafts(c),
	)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetFAQ godoc
// @ID          getFAQ
// @Summary     Fetch an FAQ entry
// @Tags        Content
// @Produce     json
// @Param       id  path  string  true  "FAQ ID"
// @Success     200  {object}  domain.FAQ
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /faqs/{id} [get]
func (h *Handlers) GetFAQ(c *gin.Context) {
	f, err := h.content.GetFAQ(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	if !f.IsPublished && !middleware.IsStaff(c) {
		failService(c, services.ErrFAQNotFound, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, f)
}

// CreateFAQ godoc
// @ID          createFAQ
// @Summary     Create an FAQ entry
// @Description The chatbot index is rebuilt after every FAQ change.
// @Tags        Content
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreateFAQRequest  true  "FAQ"
// @Success     201  {object}  domain.FAQ
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /faqs [post]
func (h *Handlers) CreateFAQ(c *gin.Context) {
	var req CreateFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question and answer are required")
		return
	}
	f, err := h.content.CreateFAQ(c.Request.Context(), services.NewFAQ{
		Question:  req.Question,
		Answer:    req.Answer,
		Category:  req.Category,
		Page:      req.Page,
		Keywords:  req.Keywords,
		SortOrder: req.SortOrder,
		Published: req.IsPublished,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, f)
}

// UpdateFAQ godoc
// @ID          updateFAQ
// @Summary     Update an FAQ entry
// @Tags        Content
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "FAQ ID"
// @Param       body  body  handlers.UpdateFAQRequest  true  "Changes"
// @Success     200  {object}  domain.FAQ
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /faqs/{id} [patch]
func (h *Handlers) UpdateFAQ(c *gin.Context) {
	var req UpdateFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid faq update")
		return
	}
	f, err := h.content.UpdateFAQ(c.Request.Context(), c.Param("id"), services.FAQUpdate{
		Question:  req.Question,
		Answer:    req.Answer,
		Category:  req.Category,
		Page:      req.Page,
		Keywords:  req.Keywords,
		SortOrder: req.SortOrder,
		Published: req.IsPublished,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, f)
}

// DeleteFAQ godoc
// @ID          deleteFAQ
// @Summary     Delete an FAQ entry
// @Tags        Content
// @Param       id  path  string  true  "FAQ ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /faqs/{id} [delete]
func (h *Handlers) DeleteFAQ(c *gin.Context) {
	if err := h.content.DeleteFAQ(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
