// Package books provides the ownership-scoped store for book records.
//
// Every operation takes the owner's user ID as its first argument and only
// ever touches rows belonging to that user. Handlers never filter by owner
// themselves; this package is the single place the scoping rule lives.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.Get(userID, bookID)
package books

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/readilyreads/server/internal/database"
	"github.com/readilyreads/server/internal/entities"
)

// AllGenres is the synthetic filter value meaning "no genre filter".
const AllGenres = "All Genres"

// Validation errors surfaced to clients as 400 responses.
var (
	ErrTitleRequired  = errors.New("title is required")
	ErrAuthorRequired = errors.New("author is required")
	ErrGenreRequired  = errors.New("genre is required")
	ErrNegativePage   = errors.New("current page must not be negative")
)

// orderings maps accepted ordering fields to their SQL columns.
var orderings = map[string]string{
	"title":      "title",
	"author":     "author",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// ListFilter describes the optional filters for a list query. Zero values
// mean "no filter".
type ListFilter struct {
	Genre            string // exact match; empty or AllGenres disables it
	CurrentlyReading *bool
	Query            string // substring across title/author/description
	Search           string // substring across title/author/genre/description
	Ordering         string // e.g. "title" or "-created_at"
	Limit            int
	Offset           int
}

// Update holds a partial book update. Nil fields are left untouched.
type Update struct {
	Title              *string `json:"title"`
	Author             *string `json:"author"`
	Genre              *string `json:"genre"`
	Pages              *int    `json:"pages"`
	Description        *string `json:"description"`
	PublicationDate    *string `json:"publication_date"`
	IsCurrentlyReading *bool   `json:"is_currently_reading"`
}

// Repository handles all book database operations, scoped per owner.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new book for the owner. The owner is bound here; any
// user field in the incoming payload is ignored upstream. A progress record
// is always created in the same transaction: either the supplied one or a
// default with current page zero.
func (r *Repository) Create(ownerID uint, book *entities.Book) error {
	if strings.TrimSpace(book.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(book.Author) == "" {
		return ErrAuthorRequired
	}
	if strings.TrimSpace(book.Genre) == "" {
		return ErrGenreRequired
	}

	book.UserID = ownerID
	progress := book.ReadingProgress
	if progress == nil {
		progress = &entities.ReadingProgress{}
	}
	if progress.CurrentPage < 0 {
		return ErrNegativePage
	}
	book.ReadingProgress = nil

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(book).Error; err != nil {
			return err
		}
		progress.BookID = book.ID
		return tx.Create(progress).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	progress.PercentageComplete = progress.Percentage(book.Pages)
	book.ReadingProgress = progress
	return nil
}

// List returns the owner's books matching the filter, most recently created
// first unless a different ordering is requested.
func (r *Repository) List(ownerID uint, filter ListFilter) ([]entities.Book, int64, error) {
	query := r.db.Model(&entities.Book{}).Where("user_id = ?", ownerID)

	if filter.Genre != "" && filter.Genre != AllGenres {
		query = query.Where("genre = ?", filter.Genre)
	}
	if filter.CurrentlyReading != nil {
		query = query.Where("is_currently_reading = ?", *filter.CurrentlyReading)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		query = query.Where(
			"LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)",
			pattern, pattern, pattern,
		)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where(
			"LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?) OR LOWER(genre) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?)",
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(orderClause(filter.Ordering))
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var result []entities.Book
	err := query.Preload("ReadingProgress").Find(&result).Error
	return result, total, err
}

// orderClause translates an ordering parameter ("title", "-created_at") into
// a SQL order expression. Unknown fields fall back to newest-first.
func orderClause(ordering string) string {
	direction := "ASC"
	field := ordering
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		field = ordering[1:]
	}
	column, ok := orderings[field]
	if !ok {
		return "created_at DESC"
	}
	return column + " " + direction
}

// Get retrieves a single book. A book that exists but belongs to someone
// else yields ErrForbidden, an unknown id ErrNotFound.
func (r *Repository) Get(ownerID, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Preload("ReadingProgress").First(&book, id).Error
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

// Update applies a partial update after the same ownership check as Get.
// Progress sub-fields, when present, are applied to the book's existing
// progress record in the same transaction.
func (r *Repository) Update(ownerID, id uint, update Update) (*entities.Book, error) {
	book, err := r.Get(ownerID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if update.Title != nil {
		if strings.TrimSpace(*update.Title) == "" {
			return nil, ErrTitleRequired
		}
		fields["title"] = *update.Title
	}
	if update.Author != nil {
		if strings.TrimSpace(*update.Author) == "" {
			return nil, ErrAuthorRequired
		}
		fields["author"] = *update.Author
	}
	if update.Genre != nil {
		if strings.TrimSpace(*update.Genre) == "" {
			return nil, ErrGenreRequired
		}
		fields["genre"] = *update.Genre
	}
	if update.Pages != nil {
		fields["pages"] = *update.Pages
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if update.PublicationDate != nil {
		fields["publication_date"] = *update.PublicationDate
	}
	if update.IsCurrentlyReading != nil {
		fields["is_currently_reading"] = *update.IsCurrentlyReading
	}

	if len(fields) > 0 {
		if err := r.db.Model(book).Updates(fields).Error; err != nil {
			return nil, fmt.Errorf("failed to update book: %w", err)
		}
	}

	return r.Get(ownerID, id)
}

// Delete removes the book and its progress record. No orphan progress rows
// are left behind.
func (r *Repository) Delete(ownerID, id uint) error {
	book, err := r.Get(ownerID, id)
	if err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", book.ID).Delete(&entities.ReadingProgress{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entities.Book{}, book.ID).Error
	})
}

// ToggleReading flips the currently-reading flag and returns the new value.
func (r *Repository) ToggleReading(ownerID, id uint) (bool, error) {
	book, err := r.Get(ownerID, id)
	if err != nil {
		return false, err
	}

	newValue := !book.IsCurrentlyReading
	err = r.db.Model(book).Updates(map[string]any{
		"is_currently_reading": newValue,
		"updated_at":           time.Now(),
	}).Error
	if err != nil {
		return false, err
	}
	return newValue, nil
}

// DistinctGenres returns the sorted unique genres across the owner's books
// with the AllGenres sentinel prepended.
func (r *Repository) DistinctGenres(ownerID uint) ([]string, error) {
	var genres []string
	err := r.db.Model(&entities.Book{}).
		Where("user_id = ?", ownerID).
		Distinct("genre").
		Order("genre ASC").
		Pluck("genre", &genres).Error
	if err != nil {
		return nil, err
	}
	return append([]string{AllGenres}, genres...), nil
}
