package handler_test

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cvewatch/cve-dashboard/internal/utils"
)

var (
	insertUser = regexp.QuoteMeta("INSERT INTO users")
	selectUser = regexp.QuoteMeta("FROM users WHERE email = ? LIMIT 1")
	userCols   = []string{"id", "email", "pw_hash", "role", "verified", "created_at"}
)

func TestSignup(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectExec(insertUser).
		WithArgs("new@example.com", sqlmock.AnyArg(), "ANALYST").
		WillReturnResult(sqlmock.NewResult(12, 1))

	rec := env.do(http.MethodPost, "/api/signup", `{"email":" new@example.com ","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"email":"new@example.com"}`, rec.Body.String())

	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)

	rec = env.do(http.MethodGet, "/api/check-session", "", ck)
	assert.JSONEq(t, `{"logged_in":true,"email":"new@example.com"}`, rec.Body.String())
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestSignup_Duplicate(t *testing.T) {
	env := newEnv(t)
	env.mock.ExpectExec(insertUser).WillReturnError(&mysql.MySQLError{Number: 1062})

	rec := env.do(http.MethodPost, "/api/signup", `{"email":"a@example.com","password":"pw"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"User already exists"}`, rec.Body.String())
	assert.Nil(t, sessionCookie(rec))
}

func TestSignup_MissingFields(t *testing.T) {
	env := newEnv(t)
	for _, body := range []string{`{"email":"a@example.com"}`, `{"password":"x"}`, `{"email":"  ","password":"x"}`, ""} {
		rec := env.do(http.MethodPost, "/api/signup", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Email and password required"}`, rec.Body.String())
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	env := newEnv(t)
	hash, err := utils.HashPassword("right", bcrypt.MinCost)
	require.NoError(t, err)
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(userCols).AddRow(3, "a@example.com", hash, "ANALYST", true, time.Now())
	}

	env.mock.ExpectQuery(selectUser).WithArgs("a@example.com").WillReturnRows(row())
	rec := env.do(http.MethodPost, "/api/login", `{"email":"a@example.com","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())

	env.mock.ExpectQuery(selectUser).WithArgs("ghost@example.com").WillReturnRows(sqlmock.NewRows(userCols))
	rec = env.do(http.MethodPost, "/api/login", `{"email":"ghost@example.com","password":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env.mock.ExpectQuery(selectUser).WithArgs("a@example.com").WillReturnRows(row())
	rec = env.do(http.MethodPost, "/api/login", `{"email":"a@example.com","password":"right"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"email":"a@example.com"}`, rec.Body.String())
	ck := sessionCookie(rec)
	require.NotNil(t, ck)

	rec = env.do(http.MethodPost, "/api/logout", "", ck)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/check-session", "", ck)
	assert.JSONEq(t, `{"logged_in":false}`, rec.Body.String())
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLogin_MissingFields(t *testing.T) {
	env := newEnv(t)
	rec := env.do(http.MethodPost, "/api/login", `{"email":"a@example.com"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutWithoutSession(t *testing.T) {
	env := newEnv(t)
	rec := env.do(http.MethodPost, "/api/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestProtectedEndpointsRequireSession(t *testing.T) {
	env := newEnv(t)
	cases := []struct{ method, path string }{
		{http.MethodGet, "/api/stats"},
		{http.MethodGet, "/api/alerts"},
		{http.MethodGet, "/api/filter-options"},
		{http.MethodPost, "/api/save-vulnerability"},
		{http.MethodGet, "/api/saved-vulnerabilities"},
		{http.MethodPost, "/api/delete-saved"},
		{http.MethodPost, "/api/chatbot"},
	}
	for _, tc := range cases {
		rec := env.do(tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String(), tc.path)
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}
