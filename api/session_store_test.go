package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/dbconn"
	"github.com/unimak/dftrack/internal/slogging"
)

func newTestSessionStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, time.Hour), mr
}

func TestRedisSessionStore_RoundTrip(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()

	session, err := store.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.True(t, mr.Exists(dbconn.SessionKey(session.ID)))

	session.UserID = 7
	session.Username = "alice"
	session.Role = models.RoleAdmin
	session.AddFlash(FlashSuccess, "saved")
	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, session.ID, loaded.ID)
	assert.True(t, loaded.IsAdmin())
	assert.Equal(t, []Flash{{Category: FlashSuccess, Message: "saved"}}, loaded.PopFlashes())
	assert.Empty(t, loaded.Flashes)

	require.NoError(t, store.Destroy(ctx, session.ID))
	gone, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRedisSessionStore_Expiry(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()
	session, err := store.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)
	loaded, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded, "reading extends the TTL")

	mr.FastForward(59 * time.Minute)
	loaded, err = store.Get(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	mr.FastForward(2 * time.Hour)
	loaded, err = store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisSessionStore_RejectsMalformed(t *testing.T) {
	store, mr := newTestSessionStore(t)

	loaded, err := store.Get(context.Background(), "../../etc")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	id := "0b5c7f3e-6a43-4e77-9a0e-1f1d2b9c8a70"
	require.NoError(t, mr.Set(dbconn.SessionKey(id), "{not json"))
	loaded, err = store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSessionManager_FlashCreatesAnonymousSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _ := newTestSessionStore(t)
	manager := NewSessionManager(store, "unimak_session", time.Hour, false)

	r := gin.New()
	r.Use(manager.Middleware())
	r.GET("/flash", func(c *gin.Context) {
		manager.Flash(c, FlashInfo, "hello")
		c.Status(http.StatusNoContent)
	})
	r.GET("/read", func(c *gin.Context) {
		flashes := manager.PopFlashes(c)
		if len(flashes) == 0 {
			c.String(http.StatusOK, "")
			return
		}
		c.String(http.StatusOK, flashes[0].Message)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/flash", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "unimak_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	read := func() string {
		req := httptest.NewRequest(http.MethodGet, "/read", nil)
		req.AddCookie(cookies[0])
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Body.String()
	}
	assert.Equal(t, "hello", read())
	assert.Equal(t, "", read(), "flashes are shown once")
}

func TestSessionManager_LoginAndClear(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, mr := newTestSessionStore(t)
	manager := NewSessionManager(store, "unimak_session", time.Hour, true)

	var sessionID string
	r := gin.New()
	r.Use(manager.Middleware())
	r.POST("/login", func(c *gin.Context) {
		require.NoError(t, manager.Login(c, &models.User{ID: 3, Username: "bob", Role: models.RoleUser, Language: "es"}))
		sessionID = CurrentSession(c).ID
		userID, _ := c.Get(slogging.UserIDKey)
		assert.Equal(t, uint(3), userID)
		c.Status(http.StatusNoContent)
	})
	r.GET("/logout", func(c *gin.Context) {
		manager.Clear(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, sessionID, cookies[0].Value)

	loaded, err := store.Get(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "bob", loaded.Username)
	assert.Equal(t, "es", loaded.Language)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.False(t, mr.Exists(dbconn.SessionKey(sessionID)))
	require.Len(t, w.Result().Cookies(), 1)
	assert.Equal(t, -1, w.Result().Cookies()[0].MaxAge)
}
