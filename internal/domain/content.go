package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Page is a staff-managed content page addressed by its slug.
type Page struct {
	ID              string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Slug            string    `json:"slug"         gorm:"type:varchar(128);not null;uniqueIndex"`
	Title           string    `json:"title"        gorm:"type:varchar(255);not null"`
	Content         string    `json:"content"      gorm:"type:text"`
	MetaDescription string    `json:"meta_description,omitempty" gorm:"type:varchar(512)"`
	IsPublished     bool      `json:"is_published" gorm:"not null;default:false;index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for Page.
func (Page) TableName() string { return "pages" }

// PageSection is an ordered block of a Page.
type PageSection struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	PageID      string    `json:"page_id"      gorm:"type:char(36);not null;index:idx_page_sections,priority:1"`
	SectionType string    `json:"section_type" gorm:"type:varchar(32);not null;default:'text'"`
	Title       string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	Content     string    `json:"content"      gorm:"type:text"`
	SortOrder   int       `json:"sort_order"   gorm:"not null;default:0;index:idx_page_sections,priority:2"`
	IsVisible   bool      `json:"is_visible"   gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Page Page `json:"-" gorm:"foreignKey:PageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PageSection.
func (PageSection) TableName() string { return "page_sections" }

// FAQ is a question/answer pair. Published entries also feed the chatbot;
// Page is the site context ("home", "services", ...) the entry belongs to.
type FAQ struct {
	ID          string                      `json:"id"           gorm:"type:char(36);primaryKey"`
	Question    string                      `json:"question"     gorm:"type:text;not null"`
	Answer      string                      `json:"answer"       gorm:"type:text;not null"`
	Category    string                      `json:"category"     gorm:"type:varchar(64);not null;default:'general';index"`
	Page        string                      `json:"page,omitempty" gorm:"type:varchar(64);index"`
	Keywords    datatypes.JSONSlice[string] `json:"keywords"`
	SortOrder   int                         `json:"sort_order"   gorm:"not null;default:0"`
	IsPublished bool                        `json:"is_published" gorm:"not null;default:false;index"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for FAQ.
func (FAQ) TableName() string { return "faqs" }
