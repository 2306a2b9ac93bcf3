package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/repo"
	"github.com/tbourn/solar-support-backend/internal/search"
)

// NewPage is the input of ContentService.CreatePage. A nil Published
// publishes the page.
type NewPage struct {
	Slug            string
	Title           string
	Content         string
	MetaDescription string
	Published       *bool
}

// PageUpdate carries the fields of a partial page update.
type PageUpdate struct {
	Slug            *string
	Title           *string
	Content         *string
	MetaDescription *string
	Published       *bool
}

// NewSection is the input of ContentService.CreateSection. A nil Visible
// shows the section.
type NewSection struct {
	SectionType string
	Title       string
	Content     string
	SortOrder   int
	Visible     *bool
}

// SectionUpdate carries the fields of a partial section update.
type SectionUpdate struct {
	SectionType *string
	Title       *string
	Content     *string
	SortOrder   *int
	Visible     *bool
}

// NewFAQ is the input of ContentService.CreateFAQ. A nil Published
// publishes the entry.
type NewFAQ struct {
	Question  string
	Answer    string
	Category  string
	Page      string
	Keywords  []string
	SortOrder int
	Published *bool
}

// FAQUpdate carries the fields of a partial FAQ update.
type FAQUpdate struct {
	Question  *string
	Answer    *string
	Category  *string
	Page      *string
	Keywords  *[]string
	SortOrder *int
	Published *bool
}

// ContentService manages pages, their sections and FAQs.
type ContentService struct {
	DB *gorm.DB

	// OnFAQChange runs after every committed FAQ write.
	OnFAQChange func(ctx context.Context) error
}

// NewContentService constructs a ContentService. onFAQChange may be nil.
func NewContentService(db *gorm.DB, onFAQChange func(ctx context.Context) error) *ContentService {
	return &ContentService{DB: db, OnFAQChange: onFAQChange}
}

var titleCaser = cases.Title(language.English)

// ----- Pages -----

// CreatePage stores a page. An empty title is derived from the slug.
func (s *ContentService) CreatePage(ctx context.Context, in NewPage) (*domain.Page, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "CreatePage", trace.WithAttributes(attribute.String("page.slug", in.Slug)))
	defer span.End()

	slug := slugify(in.Slug)
	if slug == "" {
		return nil, ErrMissingField
	}
	p := &domain.Page{
		Slug:            slug,
		Title:           clip(normalizeTitle(in.Title), maxTitleRunes),
		Content:         in.Content,
		MetaDescription: strings.TrimSpace(in.MetaDescription),
		IsPublished:     in.Published == nil || *in.Published,
	}
	if p.Title == "" {
		p.Title = titleCaser.String(strings.ReplaceAll(slug, "-", " "))
	}
	if err := repo.CreatePage(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateSlug
		}
		return nil, err
	}
	return p, nil
}

// GetPage fetches a page by slug or id.
func (s *ContentService) GetPage(ctx context.Context, slugOrID string) (*domain.Page, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "GetPage", trace.WithAttributes(attribute.String("page.key", slugOrID)))
	defer span.End()

	p, err := repo.GetPage(ctx, s.DB, slugOrID)
	return p, mapNotFound(err, ErrPageNotFound)
}

// ListPages returns pages; publishedOnly hides drafts.
func (s *ContentService) ListPages(ctx context.Context, publishedOnly bool) ([]domain.Page, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "ListPages")
	defer span.End()

	return repo.ListPages(ctx, s.DB, publishedOnly)
}

// UpdatePage applies a partial update to the page addressed by slug or id.
func (s *ContentService) UpdatePage(ctx context.Context, slugOrID string, u PageUpdate) (*domain.Page, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "UpdatePage", trace.WithAttributes(attribute.String("page.key", slugOrID)))
	defer span.End()

	cur, err := repo.GetPage(ctx, s.DB, slugOrID)
	if err != nil {
		return nil, mapNotFound(err, ErrPageNotFound)
	}
	updates := map[string]any{}
	if u.Slug != nil {
		slug := slugify(*u.Slug)
		if slug == "" {
			return nil, ErrMissingField
		}
		updates["slug"] = slug
	}
	if u.Title != nil {
		t := clip(normalizeTitle(*u.Title), maxTitleRunes)
		if t == "" {
			return nil, ErrMissingField
		}
		updates["title"] = t
	}
	if u.Content != nil {
		updates["content"] = *u.Content
	}
	if u.MetaDescription != nil {
		updates["meta_description"] = strings.TrimSpace(*u.MetaDescription)
	}
	if u.Published != nil {
		updates["is_published"] = *u.Published
	}
	if len(updates) == 0 {
		return nil, ErrNoChanges
	}
	if err := repo.UpdatePage(ctx, s.DB, cur.ID, updates); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateSlug
		}
		return nil, mapNotFound(err, ErrPageNotFound)
	}
	p, err := repo.GetPage(ctx, s.DB, cur.ID)
	return p, mapNotFound(err, ErrPageNotFound)
}

// DeletePage removes a page and its sections.
func (s *ContentService) DeletePage(ctx context.Context, slugOrID string) error {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "DeletePage", trace.WithAttributes(attribute.String("page.key", slugOrID)))
	defer span.End()

	cur, err := repo.GetPage(ctx, s.DB, slugOrID)
	if err != nil {
		return mapNotFound(err, ErrPageNotFound)
	}
	return mapNotFound(repo.DeletePage(ctx, s.DB, cur.ID), ErrPageNotFound)
}

// ----- Sections -----

// CreateSection adds a section to the page addressed by slug or id.
func (s *ContentService) CreateSection(ctx context.Context, slugOrID string, in NewSection) (*domain.PageSection, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "CreateSection", trace.WithAttributes(attribute.String("page.key", slugOrID)))
	defer span.End()

	p, err := repo.GetPage(ctx, s.DB, slugOrID)
	if err != nil {
		return nil, mapNotFound(err, ErrPageNotFound)
	}
	sec := &domain.PageSection{
		PageID:      p.ID,
		SectionType: strings.TrimSpace(in.SectionType),
		Title:       clip(normalizeTitle(in.Title), maxTitleRunes),
		Content:     in.Content,
		SortOrder:   in.SortOrder,
		IsVisible:   in.Visible == nil || *in.Visible,
	}
	if sec.SectionType == "" {
		sec.SectionType = "text"
	}
	if err := repo.CreatePageSection(ctx, s.DB, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// Sections lists the sections of a page in display order.
func (s *ContentService) Sections(ctx context.Context, slugOrID string, visibleOnly bool) ([]domain.PageSection, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "Sections", trace.WithAttributes(attribute.String("page.key", slugOrID)))
	defer span.End()

	p, err := repo.GetPage(ctx, s.DB, slugOrID)
	if err != nil {
		return nil, mapNotFound(err, ErrPageNotFound)
	}
	return repo.ListPageSections(ctx, s.DB, p.ID, visibleOnly)
}

// UpdateSection applies a partial update to a section.
func (s *ContentService) UpdateSection(ctx context.Context, id string, u SectionUpdate) (*domain.PageSection, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "UpdateSection", trace.WithAttributes(attribute.String("section.id", id)))
	defer span.End()

	updates := map[string]any{}
	if u.SectionType != nil {
		updates["section_type"] = strings.TrimSpace(*u.SectionType)
	}
	if u.Title != nil {
		updates["title"] = clip(normalizeTitle(*u.Title), maxTitleRunes)
	}
	if u.Content != nil {
		updates["content"] = *u.Content
	}
	if u.SortOrder != nil {
		updates["sort_order"] = *u.SortOrder
	}
	if u.Visible != nil {
		updates["is_visible"] = *u.Visible
	}
	if len(updates) == 0 {
		return nil, ErrNoChanges
	}
	if err := repo.UpdatePageSection(ctx, s.DB, id, updates); err != nil {
		return nil, mapNotFound(err, ErrSectionNotFound)
	}
	sec, err := repo.GetPageSection(ctx, s.DB, id)
	return sec, mapNotFound(err, ErrSectionNotFound)
}

// DeleteSection removes a section.
func (s *ContentService) DeleteSection(ctx context.Context, id string) error {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "DeleteSection", trace.WithAttributes(attribute.String("section.id", id)))
	defer span.End()

	return mapNotFound(repo.DeletePageSection(ctx, s.DB, id), ErrSectionNotFound)
}

// ----- FAQs -----

// CreateFAQ stores an FAQ entry and refreshes the chatbot index.
func (s *ContentService) CreateFAQ(ctx context.Context, in NewFAQ) (*domain.FAQ, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "CreateFAQ")
	defer span.End()

	f := &domain.FAQ{
		Question:    strings.TrimSpace(in.Question),
		Answer:      strings.TrimSpace(in.Answer),
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Page:        strings.ToLower(strings.TrimSpace(in.Page)),
		Keywords:    cleanKeywords(in.Keywords),
		SortOrder:   in.SortOrder,
		IsPublished: in.Published == nil || *in.Published,
	}
	if f.Question == "" || f.Answer == "" {
		return nil, ErrMissingField
	}
	if f.Category == "" {
		f.Category = "general"
	}
	if err := repo.CreateFAQ(ctx, s.DB, f); err != nil {
		return nil, err
	}
	s.faqChanged(ctx)
	return f, nil
}

// GetFAQ fetches an FAQ entry by id.
func (s *ContentService) GetFAQ(ctx context.Context, id string) (*domain.FAQ, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "GetFAQ", trace.WithAttributes(attribute.String("faq.id", id)))
	defer span.End()

	f, err := repo.GetFAQ(ctx, s.DB, id)
	return f, mapNotFound(err, ErrFAQNotFound)
}

// ListFAQs returns FAQ entries filtered by category and page.
func (s *ContentService) ListFAQs(ctx context.Context, category, page string, publishedOnly bool) ([]domain.FAQ, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "ListFAQs",
		trace.WithAttributes(attribute.String("category", category), attribute.String("page", page)),
	)
	defer span.End()

	return repo.ListFAQs(ctx, s.DB, repo.FAQFilter{
		Category:      strings.ToLower(strings.TrimSpace(category)),
		Page:          strings.ToLower(strings.TrimSpace(page)),
		PublishedOnly: publishedOnly,
	})
}

// UpdateFAQ applies a partial update and refreshes the chatbot index.
func (s *ContentService) UpdateFAQ(ctx context.Context, id string, u FAQUpdate) (*domain.FAQ, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "UpdateFAQ", trace.WithAttributes(attribute.String("faq.id", id)))
	defer span.End()

	updates := map[string]any{}
	if u.Question != nil {
		q := strings.TrimSpace(*u.Question)
		if q == "" {
			return nil, ErrMissingField
		}
		updates["question"] = q
	}
	if u.Answer != nil {
		a := strings.TrimSpace(*u.Answer)
		if a == "" {
			return nil, ErrMissingField
		}
		updates["answer"] = a
	}
	if u.Category != nil {
		updates["category"] = strings.ToLower(strings.TrimSpace(*u.Category))
	}
	if u.Page != nil {
		updates["page"] = strings.ToLower(strings.TrimSpace(*u.Page))
	}
	if u.Keywords != nil {
		updates["keywords"] = datatypes.JSONSlice[string](cleanKeywords(*u.Keywords))
	}
	if u.SortOrder != nil {
		updates["sort_order"] = *u.SortOrder
	}
	if u.Published != nil {
		updates["is_published"] = *u.Published
	}
	if len(updates) == 0 {
		return nil, ErrNoChanges
	}
	if err := repo.UpdateFAQ(ctx, s.DB, id, updates); err != nil {
		return nil, mapNotFound(err, ErrFAQNotFound)
	}
	s.faqChanged(ctx)
	f, err := repo.GetFAQ(ctx, s.DB, id)
	return f, mapNotFound(err, ErrFAQNotFound)
}

// DeleteFAQ removes an FAQ entry and refreshes the chatbot index.
func (s *ContentService) DeleteFAQ(ctx context.Context, id string) error {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "DeleteFAQ", trace.WithAttributes(attribute.String("faq.id", id)))
	defer span.End()

	if err := repo.DeleteFAQ(ctx, s.DB, id); err != nil {
		return mapNotFound(err, ErrFAQNotFound)
	}
	s.faqChanged(ctx)
	return nil
}

// SeedFAQs stores entries when the FAQ table is empty and reports how many
// were inserted. The first context of an entry becomes its page.
func (s *ContentService) SeedFAQs(ctx context.Context, entries []search.Entry) (int, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "SeedFAQs")
	defer span.End()

	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.FAQ{}).Count(&n).Error; err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, e := range entries {
			f := &domain.FAQ{
				Question:    e.Question,
				Answer:      e.Answer,
				Category:    e.Category,
				Keywords:    e.Keywords,
				SortOrder:   i,
				IsPublished: true,
			}
			if f.Category == "" {
				f.Category = "general"
			}
			if len(e.Contexts) > 0 {
				f.Page = e.Contexts[0]
			}
			if err := repo.CreateFAQ(ctx, tx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("faq.seeded", len(entries)))
	s.faqChanged(ctx)
	return len(entries), nil
}

func (s *ContentService) faqChanged(ctx context.Context) {
	if s.OnFAQChange == nil {
		return
	}
	if err := s.OnFAQChange(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("faq index refresh failed")
	}
}

// slugify lower-cases s and joins its words with dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
