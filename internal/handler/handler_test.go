package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/papertiger/internal/auth"
	"github.com/user/papertiger/internal/config"
	"github.com/user/papertiger/internal/handler"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/repository"
	"github.com/user/papertiger/internal/router"
	"github.com/user/papertiger/internal/testutil"
	"gorm.io/gorm"
)

const strongPassword = "Nosferatu1922"

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Details map[string][]string `json:"details"`
}

type testServer struct {
	engine *gin.Engine
	h      *handler.Handler
	repos  *repository.Repositories
	mailer *testutil.StubMailer
}

func newTestServer(t *testing.T, archiveURL string) *testServer {
	t.Helper()
	if archiveURL == "" {
		archiveURL = "http://127.0.0.1:1"
	}
	cfg := &config.Config{
		Env:              "test",
		AppSecret:        "test-secret",
		JWTExpiry:        time.Hour,
		RefreshExpiry:    24 * time.Hour,
		ConfirmationTTL:  72 * time.Hour,
		SiteName:         "Paper Tiger Cinema",
		SiteUrl:          "http://localhost:8000",
		LoginRedirectURL: "http://localhost:8000/login",
		AllowedOrigins:   []string{"http://localhost:3000"},
		ArchiveBaseURL:   archiveURL,
	}
	repos := testutil.NewTestRepositories(t)
	m := testutil.NewStubMailer()
	h := handler.NewHandler(context.Background(), repos, cfg, m)
	t.Cleanup(h.Wait)
	return &testServer{engine: router.New(h), h: h, repos: repos, mailer: m}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body)
		}
	}
	return w, env
}

// user 直接写库创建一个已激活用户并返回访问令牌
func (s *testServer) user(t *testing.T, username string, role model.Role) (*model.User, string) {
	t.Helper()
	hash, err := auth.HashPassword(strongPassword)
	if err != nil {
		t.Fatal(err)
	}
	u := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Status:       model.StatusActive,
		Role:         role,
	}
	if err := s.repos.User.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	token, err := s.h.Tokens.Generate(u, auth.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	return u, token
}

func (s *testServer) movie(t *testing.T, title string) *model.Movie {
	t.Helper()
	year := 1922
	m := &model.Movie{
		Title:          title,
		Year:           &year,
		Genre:          "Horror",
		VideoURL:       "https://archive.org/download/x/x.mp4",
		IsPublicDomain: true,
	}
	if err := s.repos.Movie.Create(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	return m
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, raw)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
}

func TestAccountFlow(t *testing.T) {
	s := newTestServer(t, "")

	t.Run("weak password creates nothing", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/register", "", gin.H{
			"username": "murnau", "email": "murnau@example.com", "password": "abc",
		})
		if w.Code != http.StatusBadRequest || len(env.Details["password"]) == 0 {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
		if n := countRows(t, s.repos.DB, "users", ""); n != 0 {
			t.Fatalf("users = %d, want 0", n)
		}
	})

	t.Run("invalid email uses json field name", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/register", "", gin.H{
			"username": "murnau", "email": "not-an-email", "password": strongPassword,
		})
		if w.Code != http.StatusBadRequest || len(env.Details["email"]) == 0 {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
	})

	w, env := s.do(t, http.MethodPost, "/register", "", gin.H{
		"username": "murnau", "email": "Murnau@Example.com", "password": strongPassword,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", w.Code, w.Body)
	}
	registered := decode[model.User](t, env.Data)
	if registered.Status != model.StatusEmailSent || registered.Email != "murnau@example.com" {
		t.Fatalf("registered = %+v", registered)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatal("password hash leaked in response")
	}

	t.Run("login before confirmation is rejected", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/token", "", gin.H{"login": "murnau", "password": strongPassword})
		if w.Code != http.StatusForbidden || env.Error != "account_not_active" {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
	})

	t.Run("unknown confirmation key", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/confirm-email/nope", "", nil)
		if w.Code != http.StatusNotFound || env.Error != "invalid_or_expired_token" {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
	})

	s.h.Account.Wait()
	sent := s.mailer.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d mails, want 1", len(sent))
	}
	link := sent[0].Data.(map[string]any)["ConfirmURL"].(string)
	path := strings.TrimPrefix(link, "http://localhost:8000")

	for i := 0; i < 2; i++ {
		w, _ = s.do(t, http.MethodGet, path, "", nil)
		if w.Code != http.StatusFound || w.Header().Get("Location") != "http://localhost:8000/login" {
			t.Fatalf("confirm #%d status = %d, location = %q", i, w.Code, w.Header().Get("Location"))
		}
	}

	t.Run("wrong password", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/token", "", gin.H{"username": "murnau", "password": "Wrong12345"})
		if w.Code != http.StatusUnauthorized || env.Error != "invalid_credentials" {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
	})

	w, env = s.do(t, http.MethodPost, "/token", "", gin.H{"email": "murnau@example.com", "password": strongPassword})
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d, body = %s", w.Code, w.Body)
	}
	pair := decode[auth.TokenPair](t, env.Data)
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatalf("pair = %+v", pair)
	}

	w, env = s.do(t, http.MethodGet, "/profile", pair.Access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile status = %d", w.Code)
	}
	profile := decode[map[string]any](t, env.Data)
	if profile["username"] != "murnau" || profile["role"] != "user" {
		t.Fatalf("profile = %v", profile)
	}

	t.Run("refresh", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/token/refresh", "", gin.H{"refresh": pair.Refresh})
		if w.Code != http.StatusOK || decode[auth.TokenPair](t, env.Data).Access == "" {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
		w, _ = s.do(t, http.MethodPost, "/token/refresh", "", gin.H{"refresh": pair.Access})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("access token accepted as refresh: %d", w.Code)
		}
	})

	t.Run("profile requires a token", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/profile", "", nil)
		if w.Code != http.StatusUnauthorized || env.Error != "not_authenticated" {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
	})
}

func TestResendConfirm_SameResponse(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodPost, "/register", "", gin.H{
		"username": "lang", "email": "lang@example.com", "password": strongPassword,
	})

	known, _ := s.do(t, http.MethodPost, "/resend-confirm", "", gin.H{"email": "lang@example.com"})
	unknown, _ := s.do(t, http.MethodPost, "/resend-confirm", "", gin.H{"email": "nobody@example.com"})
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("status = %d / %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("responses differ:\n%s\n%s", known.Body, unknown.Body)
	}

	s.h.Account.Wait()
	if n := len(s.mailer.Sent()); n != 2 {
		t.Fatalf("sent = %d, want 2", n)
	}
}

func TestMovies(t *testing.T) {
	s := newTestServer(t, "")
	_, admin := s.user(t, "admin", model.RoleAdmin)
	_, viewer := s.user(t, "viewer", model.RoleUser)

	body := gin.H{
		"title":     "Plan 9 from Outer Space",
		"year":      1957,
		"genre":     "Sci-Fi",
		"video_url": "https://archive.org/download/plan9/plan9.mp4",
	}

	t.Run("capabilities", func(t *testing.T) {
		if w, _ := s.do(t, http.MethodPost, "/movies", "", body); w.Code != http.StatusUnauthorized {
			t.Fatalf("anonymous create = %d", w.Code)
		}
		if w, _ := s.do(t, http.MethodPost, "/movies", viewer, body); w.Code != http.StatusForbidden {
			t.Fatalf("user create = %d", w.Code)
		}
	})

	t.Run("demoted admin token", func(t *testing.T) {
		u, token := s.user(t, "former-admin", model.RoleAdmin)
		if err := s.repos.User.UpdateRole(context.Background(), u.ID, model.RoleUser); err != nil {
			t.Fatal(err)
		}
		if w, _ := s.do(t, http.MethodPost, "/movies", token, body); w.Code != http.StatusForbidden {
			t.Fatalf("demoted admin create = %d", w.Code)
		}
	})

	w, env := s.do(t, http.MethodPost, "/movies", admin, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body)
	}
	created := decode[model.Movie](t, env.Data)
	if created.Slug != "plan-9-from-outer-space" || !created.IsPublicDomain {
		t.Fatalf("created = %+v", created)
	}

	t.Run("validation", func(t *testing.T) {
		w, env := s.do(t, http.MethodPost, "/movies", admin, gin.H{"title": "No video"})
		if w.Code != http.StatusBadRequest || len(env.Details["video_url"]) == 0 {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
	})

	t.Run("detail by slug and id", func(t *testing.T) {
		for _, ref := range []string{created.Slug, strconv.Itoa(created.ID)} {
			w, env := s.do(t, http.MethodGet, "/movies/"+ref, "", nil)
			if w.Code != http.StatusOK || decode[model.Movie](t, env.Data).ID != created.ID {
				t.Fatalf("GET /movies/%s = %d", ref, w.Code)
			}
		}
		if w, _ := s.do(t, http.MethodGet, "/movies/missing", "", nil); w.Code != http.StatusNotFound {
			t.Fatalf("missing = %d", w.Code)
		}
	})

	t.Run("list filters", func(t *testing.T) {
		s.movie(t, "Nosferatu")
		w, env := s.do(t, http.MethodGet, "/movies?search=OUTER&ordering=-year", "", nil)
		if w.Code != http.StatusOK || len(decode[[]model.Movie](t, env.Data)) != 1 {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
		if w, _ := s.do(t, http.MethodGet, "/movies?ordering=views", "", nil); w.Code != http.StatusBadRequest {
			t.Fatalf("unknown ordering = %d", w.Code)
		}
		if w, _ := s.do(t, http.MethodGet, "/movies?is_featured=maybe", "", nil); w.Code != http.StatusBadRequest {
			t.Fatalf("bad bool = %d", w.Code)
		}
	})

	t.Run("patch keeps slug", func(t *testing.T) {
		w, env := s.do(t, http.MethodPatch, "/movies/"+created.Slug, admin, gin.H{"title": "Grave Robbers from Outer Space", "is_hero": true})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
		patched := decode[model.Movie](t, env.Data)
		if patched.Slug != created.Slug || !patched.IsHero {
			t.Fatalf("patched = %+v", patched)
		}
		w, env = s.do(t, http.MethodGet, "/movies/hero", "", nil)
		if w.Code != http.StatusOK || len(decode[[]model.Movie](t, env.Data)) != 1 {
			t.Fatalf("hero = %d, %s", w.Code, w.Body)
		}
	})

	t.Run("increment view", func(t *testing.T) {
		for want := 1; want <= 2; want++ {
			w, env := s.do(t, http.MethodPost, "/movies/"+created.Slug+"/increment-view", "", nil)
			if w.Code != http.StatusOK || decode[map[string]int](t, env.Data)["views"] != want {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body)
			}
		}
		if w, _ := s.do(t, http.MethodPost, "/movies/404/increment-view", "", nil); w.Code != http.StatusNotFound {
			t.Fatalf("missing = %d", w.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if w, _ := s.do(t, http.MethodDelete, "/movies/"+created.Slug, viewer, nil); w.Code != http.StatusForbidden {
			t.Fatalf("user delete = %d", w.Code)
		}
		if w, _ := s.do(t, http.MethodDelete, "/movies/"+created.Slug, admin, nil); w.Code != http.StatusNoContent {
			t.Fatalf("admin delete = %d", w.Code)
		}
		if w, _ := s.do(t, http.MethodGet, "/movies/"+created.Slug, "", nil); w.Code != http.StatusNotFound {
			t.Fatalf("after delete = %d", w.Code)
		}
	})
}

func TestFavoritesAndWatchLater(t *testing.T) {
	s := newTestServer(t, "")
	_, token := s.user(t, "viewer", model.RoleUser)
	movie := s.movie(t, "Nosferatu")

	for _, base := range []string{"/favorites", "/watchlater"} {
		t.Run(base, func(t *testing.T) {
			if w, _ := s.do(t, http.MethodGet, base, "", nil); w.Code != http.StatusUnauthorized {
				t.Fatalf("anonymous list = %d", w.Code)
			}
			if w, _ := s.do(t, http.MethodPost, base, token, gin.H{"movie_id": 9999}); w.Code != http.StatusNotFound {
				t.Fatalf("unknown movie = %d", w.Code)
			}
			if w, _ := s.do(t, http.MethodPost, base, token, gin.H{"movie_id": movie.ID}); w.Code != http.StatusCreated {
				t.Fatalf("add = %d", w.Code)
			}
			if w, env := s.do(t, http.MethodPost, base, token, gin.H{"movie_id": movie.ID}); w.Code != http.StatusConflict || env.Error != "conflict" {
				t.Fatalf("duplicate add = %d", w.Code)
			}

			w, env := s.do(t, http.MethodGet, base, token, nil)
			items := decode[[]map[string]any](t, env.Data)
			if w.Code != http.StatusOK || len(items) != 1 || items[0]["movie"] == nil {
				t.Fatalf("list = %d, %s", w.Code, w.Body)
			}

			path := base + "/" + strconv.Itoa(movie.ID)
			if w, _ := s.do(t, http.MethodDelete, path, token, nil); w.Code != http.StatusNoContent {
				t.Fatalf("remove = %d", w.Code)
			}
			if w, _ := s.do(t, http.MethodDelete, path, token, nil); w.Code != http.StatusNotFound {
				t.Fatalf("second remove = %d", w.Code)
			}
		})
	}
}

func TestProgress_SingleRow(t *testing.T) {
	s := newTestServer(t, "")
	u, token := s.user(t, "viewer", model.RoleUser)
	movie := s.movie(t, "Metropolis")

	for _, pos := range []int{120, 300} {
		w, env := s.do(t, http.MethodPost, "/progress", token, gin.H{"movie_id": movie.ID, "position": pos})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
		if got := decode[map[string]int](t, env.Data)["position"]; got != pos {
			t.Fatalf("position = %d, want %d", got, pos)
		}
	}

	if n := countRows(t, s.repos.DB, "playback_progress", "user_id = ?", u.ID); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}

	w, env := s.do(t, http.MethodGet, "/progress", token, nil)
	items := decode[[]model.PlaybackProgress](t, env.Data)
	if w.Code != http.StatusOK || len(items) != 1 || items[0].Position != 300 {
		t.Fatalf("list = %d, %s", w.Code, w.Body)
	}

	if w, _ := s.do(t, http.MethodPost, "/progress", token, gin.H{"movie_id": movie.ID, "position": -5}); w.Code != http.StatusBadRequest {
		t.Fatalf("negative position = %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/progress", token, gin.H{"movie_id": movie.ID}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing position = %d", w.Code)
	}
}

func TestComments(t *testing.T) {
	s := newTestServer(t, "")
	_, author := s.user(t, "author", model.RoleUser)
	_, other := s.user(t, "other", model.RoleUser)
	_, staff := s.user(t, "staff", model.RoleStaff)
	movie := s.movie(t, "The Cabinet of Dr. Caligari")
	path := "/movies/" + movie.Slug + "/comments"

	if w, _ := s.do(t, http.MethodPost, path, "", gin.H{"text": "hi"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous comment = %d", w.Code)
	}
	if w, env := s.do(t, http.MethodPost, path, author, gin.H{"text": "hi", "rating": 9}); w.Code != http.StatusBadRequest || len(env.Details["rating"]) == 0 {
		t.Fatalf("bad rating = %d, %s", w.Code, w.Body)
	}

	w, env := s.do(t, http.MethodPost, path, author, gin.H{"text": "  Expressionist masterpiece  ", "rating": 5, "user_id": 999})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, %s", w.Code, w.Body)
	}
	comment := decode[model.Comment](t, env.Data)
	if comment.Text != "Expressionist masterpiece" || comment.UserID == 999 {
		t.Fatalf("comment = %+v", comment)
	}

	w, env = s.do(t, http.MethodGet, path, "", nil)
	list := decode[[]model.Comment](t, env.Data)
	if w.Code != http.StatusOK || len(list) != 1 || list[0].UserName != "author" {
		t.Fatalf("list = %d, %s", w.Code, w.Body)
	}

	del := "/comments/" + strconv.Itoa(comment.ID)
	if w, env := s.do(t, http.MethodDelete, del, other, nil); w.Code != http.StatusForbidden || env.Error != "permission_denied" {
		t.Fatalf("non-author delete = %d", w.Code)
	}
	if c, _ := s.repos.Comment.FindByID(context.Background(), comment.ID); c == nil {
		t.Fatal("comment removed by non-author")
	}
	if w, _ := s.do(t, http.MethodDelete, del, staff, nil); w.Code != http.StatusNoContent {
		t.Fatalf("staff delete = %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodDelete, del, author, nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete again = %d", w.Code)
	}
}

func TestArchive(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 导入按类型查询返回空结果，预览查询返回 500
		if strings.Contains(r.URL.Query().Get("q"), "subject:") {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"response":{"numFound":0,"docs":[]}}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	s := newTestServer(t, upstream.URL)
	_, admin := s.user(t, "admin", model.RoleAdmin)
	_, staff := s.user(t, "staff", model.RoleStaff)

	t.Run("preview upstream failure is 502", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/archive/movies", "", nil)
		if w.Code != http.StatusBadGateway || env.Error != "upstream_error" {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
	})

	t.Run("import is admin only", func(t *testing.T) {
		if w, _ := s.do(t, http.MethodPost, "/admin/import", staff, nil); w.Code != http.StatusForbidden {
			t.Fatalf("staff import = %d", w.Code)
		}
		w, _ := s.do(t, http.MethodPost, "/admin/import", admin, gin.H{"genres": []string{"Horror"}, "max_pages": 1})
		if w.Code != http.StatusAccepted {
			t.Fatalf("admin import = %d, %s", w.Code, w.Body)
		}
		s.h.Importer.Wait()

		w, env := s.do(t, http.MethodGet, "/admin/import", staff, nil)
		if w.Code != http.StatusOK || decode[map[string]bool](t, env.Data)["running"] {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body)
		}
	})
}

// countRows 直接统计表中满足条件的行数
func countRows(t *testing.T, db *gorm.DB, table, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Table(table)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
