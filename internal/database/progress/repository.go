// Package progress provides the store for reading progress records, the
// one-to-one companions of books. Ownership checks mirror the books store:
// a book owned by someone else yields ErrForbidden, an unknown book
// ErrNotFound.
package progress

import (
	"errors"

	"gorm.io/gorm"

	"github.com/readilyreads/server/internal/database"
	"github.com/readilyreads/server/internal/entities"
)

// ErrNegativePage is returned when a client submits a negative current page.
var ErrNegativePage = errors.New("current page must not be negative")

// Update holds a partial progress update. Nil fields are left untouched.
type Update struct {
	CurrentPage   *int    `json:"current_page"`
	StartDate     *string `json:"start_date"`
	TargetEndDate *string `json:"target_end_date"`
	Notes         *string `json:"notes"`
}

// Empty reports whether the update carries no changes.
func (u Update) Empty() bool {
	return u.CurrentPage == nil && u.StartDate == nil && u.TargetEndDate == nil && u.Notes == nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ownedBook loads the book after the standard ownership check.
func (r *Repository) ownedBook(ownerID, bookID uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, bookID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	if book.UserID != ownerID {
		return nil, database.ErrForbidden
	}
	return &book, nil
}

// Get returns the progress record for the owner's book with the completion
// percentage computed. Every book is created with a progress record, but a
// missing row is still reported as not found rather than a server error.
func (r *Repository) Get(ownerID, bookID uint) (*entities.ReadingProgress, error) {
	book, err := r.ownedBook(ownerID, bookID)
	if err != nil {
		return nil, err
	}

	var record entities.ReadingProgress
	err = r.db.Where("book_id = ?", book.ID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}

	record.PercentageComplete = record.Percentage(book.Pages)
	return &record, nil
}

// Apply performs a partial update of the book's progress record and returns
// it with the percentage recomputed.
func (r *Repository) Apply(ownerID, bookID uint, update Update) (*entities.ReadingProgress, error) {
	book, err := r.ownedBook(ownerID, bookID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if update.CurrentPage != nil {
		if *update.CurrentPage < 0 {
			return nil, ErrNegativePage
		}
		fields["current_page"] = *update.CurrentPage
	}
	if update.StartDate != nil {
		fields["start_date"] = *update.StartDate
	}
	if update.TargetEndDate != nil {
		fields["target_end_date"] = *update.TargetEndDate
	}
	if update.Notes != nil {
		fields["notes"] = *update.Notes
	}

	if len(fields) > 0 {
		err = r.db.Model(&entities.ReadingProgress{}).
			Where("book_id = ?", book.ID).
			Updates(fields).Error
		if err != nil {
			return nil, err
		}
	}

	return r.Get(ownerID, bookID)
}
