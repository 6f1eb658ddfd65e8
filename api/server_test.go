package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/unimak/dftrack/api/models"
	"github.com/unimak/dftrack/internal/config"
)

const testCookieName = "unimak_session"

type testEnv struct {
	server *Server
	router *gin.Engine
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupStoreDB(t)
	sessions, _ := newTestSessionStore(t)
	cfg := &config.Config{
		Server:  config.ServerConfig{MetricsEnabled: true},
		Session: config.SessionConfig{CookieName: testCookieName, TTL: time.Hour},
		Uploads: config.UploadsConfig{Root: t.TempDir(), MaxBytes: 10 << 20},
		Auth:    config.AuthConfig{AdminUsernames: []string{"admin"}, BcryptCost: bcrypt.MinCost},
		Display: config.DisplayConfig{RecentProblems: 20},
	}
	server := NewServer(cfg, db, sessions, NewMetrics())
	return &testEnv{server: server, router: server.Router(), db: db}
}

// browser carries the session cookie between requests like a user agent
type browser struct {
	t      *testing.T
	env    *testEnv
	cookie *http.Cookie
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, env: e}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	w := httptest.NewRecorder()
	b.env.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name != testCookieName {
			continue
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			b.cookie = nil
		} else {
			b.cookie = ck
		}
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// signIn registers and logs in a user, failing the test on any surprise
func (b *browser) signIn(username string) {
	b.t.Helper()
	w := b.post("/register", url.Values{
		"username": {username}, "password": {"pw123"}, "confirmation": {"pw123"},
	})
	require.Equal(b.t, http.StatusFound, w.Code, w.Body.String())
	w = b.post("/login", url.Values{"username": {username}, "password": {"pw123"}})
	require.Equal(b.t, http.StatusFound, w.Code, w.Body.String())
	require.NotNil(b.t, b.cookie)
}

func TestServer_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	w := b.post("/register", url.Values{
		"username": {"alice"}, "password": {"pw123"}, "confirmation": {"pw123"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = b.post("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid username and/or password")

	w = b.post("/login", url.Values{"username": {"alice"}, "password": {"pw123"}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = b.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

	w = b.get("/logout")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Nil(t, b.cookie)
	w = b.get("/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestServer_RegisterRejects(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.signIn("alice")

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing username", url.Values{"password": {"a"}, "confirmation": {"a"}}, "must provide username"},
		{"missing confirmation", url.Values{"username": {"bob"}, "password": {"a"}}, "must confirm password"},
		{"mismatch", url.Values{"username": {"bob"}, "password": {"a"}, "confirmation": {"b"}}, "passwords do not match"},
		{"duplicate", url.Values{"username": {"alice"}, "password": {"a"}, "confirmation": {"a"}}, "username already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.browser(t).post("/register", tt.form)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}

	w := b.post("/login", url.Values{"username": {"alice"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "must provide password")
}

func TestServer_RegisterRoleAndLanguage(t *testing.T) {
	env := newTestEnv(t)
	register := func(username string) *models.User {
		req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(url.Values{
			"username": {username}, "password": {"pw"}, "confirmation": {"pw"},
		}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9")
		w := env.browser(t).do(req)
		require.Equal(t, http.StatusFound, w.Code)

		var user models.User
		require.NoError(t, env.db.Where("username = ?", username).First(&user).Error)
		return &user
	}

	admin := register("admin")
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "tr", admin.Language)

	for _, variant := range []string{"ADMIN", "Admin", "aDmin"} {
		user := register(variant)
		assert.Equal(t, models.RoleUser, user.Role, variant)
	}

	b := env.browser(t)
	require.Equal(t, http.StatusFound, b.post("/login", url.Values{"username": {"ADMIN"}, "password": {"pw"}}).Code)
	assert.Equal(t, http.StatusForbidden, b.get("/admin").Code)
}

func TestServer_Settings(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.signIn("alice")

	w := b.post("/settings", url.Values{"language": {"es"}})
	assert.Equal(t, http.StatusFound, w.Code)
	w = b.get("/settings")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `lang="es"`)
	assert.Contains(t, w.Body.String(), "Settings saved")

	w = b.post("/settings", url.Values{"language": {"klingon"}})
	assert.Equal(t, http.StatusFound, w.Code)
	w = b.get("/settings")
	assert.Contains(t, w.Body.String(), "alert-danger")
}

func TestServer_AdminRequiresRole(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.signIn("alice")

	w := b.get("/admin")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = b.get("/admin/projects")
	assert.Equal(t, http.StatusForbidden, w.Code)

	anonymous := env.browser(t).get("/admin")
	assert.Equal(t, http.StatusFound, anonymous.Code)
}

// postReport submits the upload form with one photo
func postReport(t *testing.T, b *browser, c *fixtureCatalog, photo []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fields := [][2]string{
		{"project_id", idString(c.Project.ID)},
		{"group_id", idString(c.Group.ID)},
		{"planned_closing_date", "2024-04-01"},
		{"component_id[]", idString(c.Components[0].ID)},
		{"reason[]", "reasons.wrong_part"},
		{"department[]", "department.design"},
		{"action[]", "action.1"},
		{"priority[]", "priority.high"},
		{"description[]", "bent <b>shaft</b>"},
		{"component_id[]", idString(c.Components[1].ID)},
		{"reason[]", "missing_components"},
		{"department[]", "department.warehouse"},
		{"action[]", "action.2"},
		{"priority[]", "priority.low"},
		{"description[]", ""},
	}
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f[0], f[1]))
	}
	part, err := mw.CreateFormFile("photos", "front view.jpg")
	require.NoError(t, err)
	_, err = part.Write(photo)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func TestServer_UploadAndPhotoRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	c := seedCatalog(t, env.db)
	b := env.browser(t)
	b.signIn("alice")

	photo := []byte("\xff\xd8\xff\xe0 not really a jpeg")
	w := postReport(t, b, c, photo)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/info", w.Header().Get("Location"))

	var problem models.Problem
	require.NoError(t, env.db.First(&problem).Error)
	var steps []models.ProblemStep
	require.NoError(t, env.db.Where("problem_id = ?", problem.ID).Order("id").Find(&steps).Error)
	require.Len(t, steps, 2)
	for _, s := range steps {
		assert.Equal(t, 1, s.StepNumber)
		assert.Equal(t, DFFilename(problem.DFNumber), s.DFFilename)
	}

	names, err := env.server.photos.List(problem.DFNumber)
	require.NoError(t, err)
	require.Len(t, names, 1)

	w = b.get(PhotoURL(problem.DFNumber, names[0]))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, photo, w.Body.Bytes())

	w = b.get("/info")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, problem.DFNumber)
	assert.Contains(t, body, "Wrong Part")
	assert.Contains(t, body, "Missing Components")
	assert.Contains(t, body, "bent shaft")
	assert.NotContains(t, body, "<b>shaft</b>")
	assert.Contains(t, body, "saved with 1 photo(s)")

	w = b.get("/history")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Waiting")

	w = b.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ayse Kaya")

	assert.Equal(t, http.StatusNotFound, b.get(uploadsURLPrefix+"/"+problem.DFNumber+"/pictures/missing.jpg").Code)
	assert.Equal(t, http.StatusNotFound, b.get(uploadsURLPrefix+"/"+problem.DFNumber).Code)
	assert.Equal(t, http.StatusNotFound, b.get(uploadsURLPrefix+"/").Code)

	anonymous := env.browser(t).get(PhotoURL(problem.DFNumber, names[0]))
	assert.Equal(t, http.StatusFound, anonymous.Code)
}

func TestServer_UploadValidationFlashes(t *testing.T) {
	env := newTestEnv(t)
	c := seedCatalog(t, env.db)
	b := env.browser(t)
	b.signIn("alice")

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("project_id", idString(c.Project.ID)))
	require.NoError(t, mw.WriteField("group_id", idString(c.Group.ID)))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := b.do(req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/upload", w.Header().Get("Location"))

	w = b.get("/upload")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alert-danger")

	var count int64
	require.NoError(t, env.db.Model(&models.Problem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServer_UploadCascade(t *testing.T) {
	env := newTestEnv(t)
	c := seedCatalog(t, env.db)
	b := env.browser(t)
	b.signIn("alice")

	w := b.get("/upload/groups?project_id=" + idString(c.Project.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var groups []groupOption
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "G-10", groups[0].GroupNumber)

	w = b.get("/upload/components?group_id=" + idString(c.Group.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var components []componentOption
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &components))
	assert.Len(t, components, 2)

	w = b.get("/upload/groups?project_id=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.get("/upload?project_id=" + idString(c.Project.ID) + "&group_id=" + idString(c.Group.ID))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "C-2 Belt")
}

func TestServer_AdminProblemActions(t *testing.T) {
	env := newTestEnv(t)
	c := seedCatalog(t, env.db)
	b := env.browser(t)
	b.signIn("admin")
	require.Equal(t, http.StatusFound, postReport(t, b, c, []byte("img")).Code)

	var problem models.Problem
	require.NoError(t, env.db.First(&problem).Error)
	var first models.ProblemStep
	require.NoError(t, env.db.Where("problem_id = ?", problem.ID).Order("id").First(&first).Error)

	w := b.post("/admin", url.Values{
		"action": {"update_status"}, "step_id": {idString(first.ID)}, "status": {"finished"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	require.NoError(t, env.db.First(&first, first.ID).Error)
	assert.Equal(t, models.StatusFinished, first.Status)

	w = b.post("/admin", url.Values{
		"action": {"add_step"}, "problem_id": {idString(problem.ID)}, "component_id": {idString(*first.ComponentID)},
		"status": {"purchase"}, "step_action": {"order new shaft"},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	var added models.ProblemStep
	require.NoError(t, env.db.Last(&added).Error)
	assert.Equal(t, 2, added.StepNumber)

	w = b.post("/admin", url.Values{"action": {"update_status"}, "step_id": {idString(first.ID)}, "status": {"bogus"}})
	assert.Equal(t, http.StatusFound, w.Code)
	w = b.get("/admin")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alert-danger")
	assert.Contains(t, w.Body.String(), "order new shaft")

	w = b.post("/admin", url.Values{"action": {"delete_problem"}, "problem_id": {idString(problem.ID)}})
	assert.Equal(t, http.StatusFound, w.Code)
	var remaining int64
	require.NoError(t, env.db.Model(&models.ProblemStep{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
	names, err := env.server.photos.List(problem.DFNumber)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestServer_AdminProjects(t *testing.T) {
	env := newTestEnv(t)
	c := seedCatalog(t, env.db)
	b := env.browser(t)
	b.signIn("admin")
	require.Equal(t, http.StatusFound, postReport(t, b, c, []byte("img")).Code)

	w := b.post("/admin/projects", url.Values{"action": {"delete_project"}, "project_id": {idString(c.Project.ID)}})
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/projects", w.Header().Get("Location"))
	w = b.get("/admin/projects")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cannot delete project: it has associated problems")
	var projects int64
	require.NoError(t, env.db.Model(&models.Project{}).Count(&projects).Error)
	assert.Equal(t, int64(1), projects)

	w = b.post("/admin/projects", url.Values{
		"action": {"add_project"}, "project_number": {"P-2024-09"}, "project_name": {"Spare line"},
		"quantity": {"1"}, "manager_id": {idString(c.Manager.ID)}, "customer_id": {idString(c.Customer.ID)},
	})
	assert.Equal(t, http.StatusFound, w.Code)
	var spare models.Project
	require.NoError(t, env.db.Where("project_number = ?", "P-2024-09").First(&spare).Error)

	w = b.post("/admin/projects", url.Values{"action": {"add_manager"}, "manager_name": {"Jose Diaz"}})
	assert.Equal(t, http.StatusFound, w.Code)

	w = b.post("/admin/projects", url.Values{"action": {"delete_project"}, "project_id": {idString(spare.ID)}})
	assert.Equal(t, http.StatusFound, w.Code)
	require.NoError(t, env.db.Model(&models.Project{}).Count(&projects).Error)
	assert.Equal(t, int64(1), projects)

	w = b.get("/admin/projects")
	assert.Contains(t, w.Body.String(), "Jose Diaz")
	assert.Contains(t, w.Body.String(), "Project deleted")
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	w := b.get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = b.get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "unimak_http_requests_total")

	w = b.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "page not found")

	w = b.get("/static/app/style.css")
	assert.Equal(t, http.StatusOK, w.Code)
}
