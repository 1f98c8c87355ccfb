package entities

import (
	"time"

	"gorm.io/gorm"
)

// DateFormat is the wire format for date-only fields (publication date,
// reading start/end dates).
const DateFormat = "2006-01-02"

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:100" json:"username"`
	Email        string         `gorm:"size:255" json:"email,omitempty"`
	PasswordHash string         `gorm:"size:100" json:"-"`
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`
	Profile      *Profile       `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Profile holds the extended user information created alongside the user
// on registration.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex" json:"-"`
	FirstName string    `gorm:"size:100" json:"first_name,omitempty"`
	LastName  string    `gorm:"size:100" json:"last_name,omitempty"`
	Bio       string    `gorm:"type:text" json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Book belongs to exactly one user. The owner is always bound server-side;
// it never comes from a request body.
type Book struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	UserID             uint             `gorm:"index" json:"-"`
	Title              string           `gorm:"index;size:200" json:"title"`
	Author             string           `gorm:"index;size:100" json:"author"`
	Genre              string           `gorm:"index;size:50" json:"genre"`
	Pages              *int             `json:"pages,omitempty"`
	Description        string           `gorm:"type:text" json:"description,omitempty"`
	PublicationDate    *string          `gorm:"size:10" json:"publication_date,omitempty"`
	IsCurrentlyReading bool             `gorm:"default:false" json:"is_currently_reading"`
	ReadingProgress    *ReadingProgress `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"reading_progress,omitempty"`
	User               User             `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// AfterFind fills in the derived completion percentage whenever a book is
// loaded with its progress preloaded.
func (b *Book) AfterFind(*gorm.DB) error {
	if b.ReadingProgress != nil {
		b.ReadingProgress.PercentageComplete = b.ReadingProgress.Percentage(b.Pages)
	}
	return nil
}

// ReadingProgress is the one-to-one companion of a book. It is created
// together with the book and removed together with it.
type ReadingProgress struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	BookID        uint      `gorm:"uniqueIndex" json:"-"`
	CurrentPage   int       `gorm:"default:0" json:"current_page"`
	StartDate     *string   `gorm:"size:10" json:"start_date,omitempty"`
	TargetEndDate *string   `gorm:"size:10" json:"target_end_date,omitempty"`
	Notes         string    `gorm:"type:text" json:"notes,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`

	// PercentageComplete is derived from the book's page count on every
	// read and is never stored.
	PercentageComplete int `gorm:"-" json:"percentage_complete"`
}

// Percentage computes how far through the book the reader is, clamped to
// [0, 100]. A missing or non-positive page count yields 0.
func (p *ReadingProgress) Percentage(pages *int) int {
	if pages == nil || *pages <= 0 {
		return 0
	}
	if p.CurrentPage <= 0 {
		return 0
	}
	pct := p.CurrentPage * 100 / *pages
	if pct > 100 {
		return 100
	}
	return pct
}

func (ReadingProgress) TableName() string {
	return "reading_progress"
}

// RefreshToken stores the SHA-256 hash of an issued refresh token. The
// plaintext is shown to the client once and never persisted.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	TokenHash string    `gorm:"uniqueIndex;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}
