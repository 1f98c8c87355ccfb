package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/readilyreads/server/internal/database/audit"
	"github.com/readilyreads/server/internal/database/books"
	"github.com/readilyreads/server/internal/database/progress"
	"github.com/readilyreads/server/internal/entities"
)

// BooksController exposes the book library endpoints. All business rules
// live in the repositories; handlers only parse parameters and map errors.
type BooksController struct {
	books    *books.Repository
	progress *progress.Repository
	audit    *audit.Repository
}

func NewBooksController(booksRepo *books.Repository, progressRepo *progress.Repository, auditRepo *audit.Repository) *BooksController {
	return &BooksController{
		books:    booksRepo,
		progress: progressRepo,
		audit:    auditRepo,
	}
}

type progressRequest struct {
	CurrentPage   *int    `json:"current_page"`
	StartDate     *string `json:"start_date"`
	TargetEndDate *string `json:"target_end_date"`
	Notes         *string `json:"notes"`
}

type bookRequest struct {
	Title              string           `json:"title"`
	Author             string           `json:"author"`
	Genre              string           `json:"genre"`
	Pages              *int             `json:"pages"`
	Description        string           `json:"description"`
	PublicationDate    *string          `json:"publication_date"`
	IsCurrentlyReading bool             `json:"is_currently_reading"`
	ReadingProgress    *progressRequest `json:"reading_progress"`
}

// validDates checks every date field present in the request.
func (r *bookRequest) validDates() bool {
	if r.PublicationDate != nil && !validDate(*r.PublicationDate) {
		return false
	}
	if r.ReadingProgress != nil {
		if r.ReadingProgress.StartDate != nil && !validDate(*r.ReadingProgress.StartDate) {
			return false
		}
		if r.ReadingProgress.TargetEndDate != nil && !validDate(*r.ReadingProgress.TargetEndDate) {
			return false
		}
	}
	return true
}

// List returns the caller's books with optional genre/status/search filters
// and ordering, paginated.
func (bc *BooksController) List(c *gin.Context) {
	filter, ok := parseListFilter(c)
	if !ok {
		return
	}

	bc.respondList(c, filter)
}

// CurrentlyReading returns only the books flagged as being read, honoring
// the same remaining filters as List.
func (bc *BooksController) CurrentlyReading(c *gin.Context) {
	filter, ok := parseListFilter(c)
	if !ok {
		return
	}
	reading := true
	filter.CurrentlyReading = &reading

	bc.respondList(c, filter)
}

func (bc *BooksController) respondList(c *gin.Context, filter books.ListFilter) {
	result, total, err := bc.books.List(GetUserID(c), filter)
	if err != nil {
		respondInternalError(c, err, "book list")
		return
	}

	c.JSON(http.StatusOK, PaginatedResponse{
		Data:    result,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: int64(filter.Offset+len(result)) < total,
	})
}

// parseListFilter builds a ListFilter from query parameters. Responds with
// 400 and returns false on a malformed boolean filter.
func parseListFilter(c *gin.Context) (books.ListFilter, bool) {
	limit, offset := parsePagination(c)
	filter := books.ListFilter{
		Genre:    c.Query("genre"),
		Query:    c.Query("query"),
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
		Limit:    limit,
		Offset:   offset,
	}

	if raw := c.Query("is_currently_reading"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			respondBadRequest(c, "invalid is_currently_reading")
			return filter, false
		}
		filter.CurrentlyReading = &value
	}
	return filter, true
}

// Create adds a book to the caller's library. The owner comes from the
// bearer token, never from the payload. A default progress record is
// created when none is supplied.
func (bc *BooksController) Create(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if !req.validDates() {
		respondBadRequest(c, "dates must use the YYYY-MM-DD format")
		return
	}

	book := entities.Book{
		Title:              req.Title,
		Author:             req.Author,
		Genre:              req.Genre,
		Pages:              req.Pages,
		Description:        req.Description,
		PublicationDate:    req.PublicationDate,
		IsCurrentlyReading: req.IsCurrentlyReading,
	}
	if p := req.ReadingProgress; p != nil {
		record := &entities.ReadingProgress{
			StartDate:     p.StartDate,
			TargetEndDate: p.TargetEndDate,
		}
		if p.CurrentPage != nil {
			record.CurrentPage = *p.CurrentPage
		}
		if p.Notes != nil {
			record.Notes = *p.Notes
		}
		book.ReadingProgress = record
	}

	userID := GetUserID(c)
	if err := bc.books.Create(userID, &book); err != nil {
		switch {
		case errors.Is(err, books.ErrTitleRequired),
			errors.Is(err, books.ErrAuthorRequired),
			errors.Is(err, books.ErrGenreRequired),
			errors.Is(err, books.ErrNegativePage):
			respondBadRequest(c, err.Error())
		default:
			respondInternalError(c, err, "book create")
		}
		return
	}

	bc.logBookEvent(c, userID, "book_create", book.ID)
	c.JSON(http.StatusCreated, book)
}

// Get returns a single book with its progress.
func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.books.Get(GetUserID(c), id)
	if err != nil {
		respondStoreError(c, err, "book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// Update applies a partial update. Progress sub-fields are forwarded to the
// progress store for the book's existing record.
func (bc *BooksController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		books.Update
		ReadingProgress *progress.Update `json:"reading_progress"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.PublicationDate != nil && !validDate(*req.PublicationDate) {
		respondBadRequest(c, "dates must use the YYYY-MM-DD format")
		return
	}
	if p := req.ReadingProgress; p != nil {
		if (p.StartDate != nil && !validDate(*p.StartDate)) ||
			(p.TargetEndDate != nil && !validDate(*p.TargetEndDate)) {
			respondBadRequest(c, "dates must use the YYYY-MM-DD format")
			return
		}
	}

	userID := GetUserID(c)
	book, err := bc.books.Update(userID, id, req.Update)
	if err != nil {
		switch {
		case errors.Is(err, books.ErrTitleRequired),
			errors.Is(err, books.ErrAuthorRequired),
			errors.Is(err, books.ErrGenreRequired):
			respondBadRequest(c, err.Error())
		default:
			respondStoreError(c, err, "book")
		}
		return
	}

	if req.ReadingProgress != nil && !req.ReadingProgress.Empty() {
		record, err := bc.progress.Apply(userID, id, *req.ReadingProgress)
		if err != nil {
			if errors.Is(err, progress.ErrNegativePage) {
				respondBadRequest(c, err.Error())
				return
			}
			respondStoreError(c, err, "reading progress")
			return
		}
		book.ReadingProgress = record
	}

	bc.logBookEvent(c, userID, "book_update", book.ID)
	c.JSON(http.StatusOK, book)
}

// Delete removes the book and its progress record.
func (bc *BooksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID := GetUserID(c)
	if err := bc.books.Delete(userID, id); err != nil {
		respondStoreError(c, err, "book")
		return
	}

	bc.logBookEvent(c, userID, "book_delete", id)
	c.Status(http.StatusNoContent)
}

// ToggleReading flips the currently-reading flag and returns the new value.
func (bc *BooksController) ToggleReading(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	userID := GetUserID(c)
	reading, err := bc.books.ToggleReading(userID, id)
	if err != nil {
		respondStoreError(c, err, "book")
		return
	}

	bc.logBookEvent(c, userID, "book_toggle_reading", id)
	c.JSON(http.StatusOK, gin.H{
		"message":              "Reading status updated successfully",
		"is_currently_reading": reading,
	})
}

// Genres returns the distinct genres across the caller's library with the
// "All Genres" sentinel prepended.
func (bc *BooksController) Genres(c *gin.Context) {
	genres, err := bc.books.DistinctGenres(GetUserID(c))
	if err != nil {
		respondInternalError(c, err, "genres")
		return
	}
	c.JSON(http.StatusOK, gin.H{"genres": genres})
}

func (bc *BooksController) logBookEvent(c *gin.Context, userID uint, action string, bookID uint) {
	if bc.audit == nil {
		return
	}
	err := bc.audit.LogEvent(&entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventBook,
		Action:    action,
		EntityID:  &bookID,
		IPAddress: c.ClientIP(),
		Status:    entities.AuditStatusSuccess,
	})
	if err != nil {
		log.Printf("Failed to record audit event (%s): %v", action, err)
	}
}
