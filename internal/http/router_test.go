package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/readilyreads/server/internal/auth"
	"github.com/readilyreads/server/internal/config"
	"github.com/readilyreads/server/internal/database"
	"github.com/readilyreads/server/internal/database/audit"
	"github.com/readilyreads/server/internal/database/books"
	"github.com/readilyreads/server/internal/database/progress"
)

// setupTestRouter wires a full router against a throwaway database.
func setupTestRouter(t *testing.T) (*gin.Engine, *database.Database, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := "./test_http_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := database.NewDatabase(dbPath)
	require.NoError(t, err)

	authService := auth.NewService(db.DB, config.Auth{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		BcryptCost:      bcrypt.MinCost,
	})

	router := NewRouter(RouterConfig{
		Database:    db,
		AuthService: authService,
		BookStore:   books.NewRepository(db.DB),
		Progress:    progress.NewRepository(db.DB),
		AuditStore:  audit.NewRepository(db.DB),
	})

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return router, db, cleanup
}

// doJSON performs a request with an optional bearer token and JSON body.
func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// registerUser creates an account through the API and returns the access
// and refresh tokens.
func registerUser(t *testing.T, router *gin.Engine, username string) (access, refresh string) {
	t.Helper()

	w := doJSON(t, router, "POST", "/api/auth/register", "", gin.H{
		"username":  username,
		"password":  "password123",
		"password2": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Access)
	require.NotEmpty(t, resp.Refresh)
	return resp.Access, resp.Refresh
}

// createBook adds a book through the API and returns its id.
func createBook(t *testing.T, router *gin.Engine, token string, body gin.H) uint {
	t.Helper()

	w := doJSON(t, router, "POST", "/api/books", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}
