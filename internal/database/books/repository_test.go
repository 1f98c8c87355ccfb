package books

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/readilyreads/server/internal/database"
	"github.com/readilyreads/server/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, func()) {
	dbPath := "./test_books_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Profile{},
		&entities.Book{},
		&entities.ReadingProgress{},
	)
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return db, repo, cleanup
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *entities.User {
	user := &entities.User{Username: username}
	require.NoError(t, db.Create(user).Error)
	return user
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

func TestRepository_Create(t *testing.T) {
	t.Run("creates default progress record", func(t *testing.T) {
		db, repo, cleanup := setupTestDB(t)
		defer cleanup()

		user := createTestUser(t, db, "alice")
		book := &entities.Book{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction"}
		require.NoError(t, repo.Create(user.ID, book))

		require.NotNil(t, book.ReadingProgress)
		assert.Equal(t, 0, book.ReadingProgress.CurrentPage)
		assert.Equal(t, 0, book.ReadingProgress.PercentageComplete)

		var count int64
		db.Model(&entities.ReadingProgress{}).Where("book_id = ?", book.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("uses supplied progress fields", func(t *testing.T) {
		db, repo, cleanup := setupTestDB(t)
		defer cleanup()

		user := createTestUser(t, db, "alice")
		book := &entities.Book{
			Title:  "Dune",
			Author: "Frank Herbert",
			Genre:  "Science Fiction",
			Pages:  intPtr(200),
			ReadingProgress: &entities.ReadingProgress{
				CurrentPage: 50,
				Notes:       "slow start",
			},
		}
		require.NoError(t, repo.Create(user.ID, book))

		assert.Equal(t, 50, book.ReadingProgress.CurrentPage)
		assert.Equal(t, 25, book.ReadingProgress.PercentageComplete)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		db, repo, cleanup := setupTestDB(t)
		defer cleanup()

		user := createTestUser(t, db, "alice")

		err := repo.Create(user.ID, &entities.Book{Author: "A", Genre: "G"})
		assert.ErrorIs(t, err, ErrTitleRequired)

		err = repo.Create(user.ID, &entities.Book{Title: "T", Genre: "G"})
		assert.ErrorIs(t, err, ErrAuthorRequired)

		err = repo.Create(user.ID, &entities.Book{Title: "T", Author: "A"})
		assert.ErrorIs(t, err, ErrGenreRequired)

		var count int64
		db.Model(&entities.Book{}).Count(&count)
		assert.Equal(t, int64(0), count)
	})

	t.Run("binds owner server-side", func(t *testing.T) {
		db, repo, cleanup := setupTestDB(t)
		defer cleanup()

		user := createTestUser(t, db, "alice")
		book := &entities.Book{Title: "T", Author: "A", Genre: "G", UserID: 999}
		require.NoError(t, repo.Create(user.ID, book))
		assert.Equal(t, user.ID, book.UserID)
	})
}

func TestRepository_List(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	seed := []entities.Book{
		{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", IsCurrentlyReading: true},
		{Title: "Hyperion", Author: "Dan Simmons", Genre: "Science Fiction"},
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: "Fantasy", Description: "There and back again"},
	}
	for i := range seed {
		require.NoError(t, repo.Create(alice.ID, &seed[i]))
	}
	require.NoError(t, repo.Create(bob.ID, &entities.Book{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction"}))

	t.Run("scopes to owner", func(t *testing.T) {
		result, total, err := repo.List(alice.ID, ListFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, result, 3)
		for _, b := range result {
			assert.Equal(t, alice.ID, b.UserID)
		}
	})

	t.Run("defaults to newest first", func(t *testing.T) {
		result, _, err := repo.List(alice.ID, ListFilter{})
		require.NoError(t, err)
		require.Len(t, result, 3)
		assert.Equal(t, "The Hobbit", result[0].Title)
	})

	t.Run("orders by title", func(t *testing.T) {
		result, _, err := repo.List(alice.ID, ListFilter{Ordering: "title"})
		require.NoError(t, err)
		require.Len(t, result, 3)
		assert.Equal(t, "Dune", result[0].Title)
		assert.Equal(t, "The Hobbit", result[2].Title)
	})

	t.Run("filters by genre", func(t *testing.T) {
		result, total, err := repo.List(alice.ID, ListFilter{Genre: "Fantasy"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, result, 1)
		assert.Equal(t, "The Hobbit", result[0].Title)
	})

	t.Run("All Genres disables the genre filter", func(t *testing.T) {
		_, total, err := repo.List(alice.ID, ListFilter{Genre: AllGenres})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("filters by reading status", func(t *testing.T) {
		result, _, err := repo.List(alice.ID, ListFilter{CurrentlyReading: boolPtr(true)})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "Dune", result[0].Title)
	})

	t.Run("free-text query is case-insensitive across fields", func(t *testing.T) {
		result, _, err := repo.List(alice.ID, ListFilter{Query: "tolkien"})
		require.NoError(t, err)
		require.Len(t, result, 1)
		assert.Equal(t, "The Hobbit", result[0].Title)

		result, _, err = repo.List(alice.ID, ListFilter{Query: "BACK AGAIN"})
		require.NoError(t, err)
		assert.Len(t, result, 1)
	})

	t.Run("search also matches genre", func(t *testing.T) {
		result, _, err := repo.List(alice.ID, ListFilter{Search: "fantasy"})
		require.NoError(t, err)
		assert.Len(t, result, 1)
	})

	t.Run("paginates", func(t *testing.T) {
		result, total, err := repo.List(alice.ID, ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, result, 2)

		result, _, err = repo.List(alice.ID, ListFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, result, 1)
	})

	t.Run("preloads progress", func(t *testing.T) {
		result, _, err := repo.List(alice.ID, ListFilter{})
		require.NoError(t, err)
		for _, b := range result {
			assert.NotNil(t, b.ReadingProgress)
		}
	})
}

func TestRepository_Get(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	book := &entities.Book{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction"}
	require.NoError(t, repo.Create(alice.ID, book))

	t.Run("returns the owner's book", func(t *testing.T) {
		got, err := repo.Get(alice.ID, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dune", got.Title)
		assert.NotNil(t, got.ReadingProgress)
	})

	t.Run("forbidden for another user", func(t *testing.T) {
		_, err := repo.Get(bob.ID, book.ID)
		assert.ErrorIs(t, err, database.ErrForbidden)
	})

	t.Run("not found for unknown id", func(t *testing.T) {
		_, err := repo.Get(alice.ID, 9999)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestRepository_Update(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	book := &entities.Book{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction"}
	require.NoError(t, repo.Create(alice.ID, book))

	t.Run("applies partial update", func(t *testing.T) {
		updated, err := repo.Update(alice.ID, book.ID, Update{
			Genre: strPtr("Classics"),
			Pages: intPtr(412),
		})
		require.NoError(t, err)
		assert.Equal(t, "Classics", updated.Genre)
		require.NotNil(t, updated.Pages)
		assert.Equal(t, 412, *updated.Pages)
		assert.Equal(t, "Dune", updated.Title)
	})

	t.Run("rejects blank required fields", func(t *testing.T) {
		_, err := repo.Update(alice.ID, book.ID, Update{Title: strPtr("  ")})
		assert.ErrorIs(t, err, ErrTitleRequired)
	})

	t.Run("forbidden for another user", func(t *testing.T) {
		_, err := repo.Update(bob.ID, book.ID, Update{Genre: strPtr("Heist")})
		assert.ErrorIs(t, err, database.ErrForbidden)
	})
}

func TestRepository_Delete(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	book := &entities.Book{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction"}
	require.NoError(t, repo.Create(alice.ID, book))

	t.Run("forbidden for another user", func(t *testing.T) {
		err := repo.Delete(bob.ID, book.ID)
		assert.ErrorIs(t, err, database.ErrForbidden)
	})

	t.Run("removes the book and its progress", func(t *testing.T) {
		require.NoError(t, repo.Delete(alice.ID, book.ID))

		_, err := repo.Get(alice.ID, book.ID)
		assert.ErrorIs(t, err, database.ErrNotFound)

		var orphans int64
		db.Model(&entities.ReadingProgress{}).Where("book_id = ?", book.ID).Count(&orphans)
		assert.Equal(t, int64(0), orphans)
	})
}

func TestRepository_ToggleReading(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, db, "alice")
	book := &entities.Book{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction"}
	require.NoError(t, repo.Create(alice.ID, book))

	first, err := repo.ToggleReading(alice.ID, book.ID)
	require.NoError(t, err)
	assert.True(t, first)

	// Toggling twice restores the original value
	second, err := repo.ToggleReading(alice.ID, book.ID)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestRepository_DistinctGenres(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	for _, genre := range []string{"Fantasy", "Science Fiction", "Fantasy"} {
		require.NoError(t, repo.Create(alice.ID, &entities.Book{Title: "T " + genre, Author: "A", Genre: genre}))
	}
	require.NoError(t, repo.Create(bob.ID, &entities.Book{Title: "T", Author: "A", Genre: "Horror"}))

	genres, err := repo.DistinctGenres(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{AllGenres, "Fantasy", "Science Fiction"}, genres)
}

func TestOrderClause(t *testing.T) {
	assert.Equal(t, "title ASC", orderClause("title"))
	assert.Equal(t, "updated_at DESC", orderClause("-updated_at"))
	assert.Equal(t, "created_at DESC", orderClause(""))
	// Unknown fields cannot reach the SQL layer
	assert.Equal(t, "created_at DESC", orderClause("password_hash"))
}
