package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-key"
	testIssuer = "classattend-test"
)

func TestIssueParse(t *testing.T) {
	id := Identity{UID: "u1", Email: "ada@example.edu", DisplayName: "Ada", Role: RoleInstructor}
	pair, err := Issue(id, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(pair.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Identity())
	assert.False(t, claims.Refresh)

	refresh, err := Parse(pair.RefreshToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.True(t, refresh.Refresh)

	_, err = Parse(pair.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(pair.AccessToken, testKey, "someone-else")
	assert.Error(t, err)

	_, err = Issue(Identity{UID: "u1", Role: "admin"}, testIssuer, testKey, time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	pair, err := Issue(Identity{UID: "u1", Role: RoleStudent}, testIssuer, testKey, -time.Minute, time.Hour)
	require.NoError(t, err)
	_, err = Parse(pair.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	id := Identity{UID: "s1", DisplayName: "Ada", Role: RoleStudent}
	pair, err := Issue(id, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	renewed, err := Refresh(pair.RefreshToken, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	claims, err := Parse(renewed.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, id, claims.Identity())
	assert.False(t, claims.Refresh)

	_, err = Refresh(pair.AccessToken, testIssuer, testKey, time.Minute, time.Hour)
	assert.ErrorIs(t, err, ErrNotRefresh)
	_, err = Refresh(pair.RefreshToken, testIssuer, "other-key", time.Minute, time.Hour)
	assert.Error(t, err)

	expired, err := Issue(id, testIssuer, testKey, time.Minute, -time.Minute)
	require.NoError(t, err)
	_, err = Refresh(expired.RefreshToken, testIssuer, testKey, time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestBearerAndRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teach", Bearer(testKey, testIssuer), RequireRole(RoleInstructor), func(c *gin.Context) {
		id, _ := CurrentIdentity(c)
		c.String(http.StatusOK, id.UID)
	})

	instructor, err := Issue(Identity{UID: "t1", Role: RoleInstructor}, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	student, err := Issue(Identity{UID: "s1", Role: RoleStudent}, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "no header", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + instructor.RefreshToken, status: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer " + student.AccessToken, status: http.StatusForbidden},
		{name: "instructor", header: "bearer " + instructor.AccessToken, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teach", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
