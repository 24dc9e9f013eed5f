package testutil

import (
	"database/sql"
	"net/http"
	"path/filepath"
	"testing"

	jwt "github.com/golang-jwt/jwt/v5"

	"ecomOrderManagement/internal/db"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// Caller is responsible for closing the DB, typically via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	// We use a shared cache memory database so that multiple connections share the same DB if needed.
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// OpenFileDB opens a file-backed SQLite database under t.TempDir and applies
// migrations. Use this instead of OpenInMemoryDB for tests that exercise
// concurrent writers: shared-cache memory databases report SQLITE_LOCKED
// without honoring busy_timeout, while file databases serialize writers the
// same way production does.
func OpenFileDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// GenerateJWTHS256 returns a signed JWT string with minimal claims used by the app.
func GenerateJWTHS256(t *testing.T, secret, name, kind string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"name": name,
		"kind": kind,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// WithBearer sets the Authorization header with the given token on an HTTP request.
func WithBearer(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
