package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/user/papertiger/internal/apperr"
	"github.com/user/papertiger/internal/model"
	"github.com/user/papertiger/internal/repository"
	"github.com/user/papertiger/internal/testutil"
)

func newCatalogFixture(t *testing.T) (*CatalogService, *repository.Repositories) {
	t.Helper()
	repos := testutil.NewTestRepositories(t)
	return NewCatalogService(repos), repos
}

func seedUser(t *testing.T, repos *repository.Repositories, username string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Status: model.StatusActive, Role: role}
	if err := repos.User.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func movieInput(title string) MovieInput {
	return MovieInput{Title: title, VideoURL: "https://archive.org/download/x/x.mp4"}
}

func TestCatalogService_CreateMovie(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture(t)

	first, err := svc.CreateMovie(ctx, movieInput("Plan 9"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.CreateMovie(ctx, movieInput("Plan 9"))
	if err != nil {
		t.Fatal(err)
	}
	if first.Slug != "plan-9" || second.Slug != "plan-9-1" {
		t.Fatalf("slugs = %q, %q", first.Slug, second.Slug)
	}
	if !first.IsPublicDomain {
		t.Error("IsPublicDomain should default to true")
	}

	t.Run("validation", func(t *testing.T) {
		_, err := svc.CreateMovie(ctx, MovieInput{Title: "  ", VideoURL: "not a url"})
		v, ok := apperr.IsValidation(err)
		if !ok || len(v.Fields["title"]) == 0 || len(v.Fields["video_url"]) == 0 {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestCatalogService_UpdateMovie(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture(t)

	year := 1959
	in := movieInput("Plan 9")
	in.Year = &year
	in.IsFeatured = true
	if _, err := svc.CreateMovie(ctx, in); err != nil {
		t.Fatal(err)
	}

	t.Run("patch keeps other fields and slug", func(t *testing.T) {
		title := "Plan 9 from Outer Space"
		got, err := svc.PatchMovie(ctx, "plan-9", MoviePatch{Title: &title})
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != title || got.Slug != "plan-9" || got.Year == nil || *got.Year != 1959 || !got.IsFeatured {
			t.Fatalf("got = %+v", got)
		}
	})

	t.Run("put replaces every field", func(t *testing.T) {
		got, err := svc.ReplaceMovie(ctx, "plan-9", movieInput("Plan Nine"))
		if err != nil {
			t.Fatal(err)
		}
		if got.Year != nil || got.IsFeatured || got.Slug != "plan-9" {
			t.Fatalf("got = %+v", got)
		}
	})

	t.Run("blank title patch", func(t *testing.T) {
		blank := ""
		if _, err := svc.PatchMovie(ctx, "plan-9", MoviePatch{Title: &blank}); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("delete then not found", func(t *testing.T) {
		if err := svc.DeleteMovie(ctx, "plan-9"); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.GetMovie(ctx, "plan-9"); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		if err := svc.DeleteMovie(ctx, "plan-9"); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestCatalogService_ListMovies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture(t)
	svc.CreateMovie(ctx, movieInput("Nosferatu"))

	if _, err := svc.ListMovies(ctx, model.MovieFilter{Ordering: "views"}); err == nil {
		t.Fatal("unknown ordering should be rejected")
	}
	movies, err := svc.ListMovies(ctx, model.MovieFilter{})
	if err != nil || len(movies) != 1 {
		t.Fatalf("movies = %v, err = %v", movies, err)
	}
}

func TestCatalogService_IncrementViews(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture(t)
	m, _ := svc.CreateMovie(ctx, movieInput("Detour"))

	for want := 1; want <= 3; want++ {
		got, err := svc.IncrementViews(ctx, m.Slug)
		if err != nil || got != want {
			t.Fatalf("views = %d, err = %v, want %d", got, err, want)
		}
	}
	if _, err := svc.IncrementViews(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestCatalogService_Favorites(t *testing.T) {
	ctx := context.Background()
	svc, repos := newCatalogFixture(t)
	u := seedUser(t, repos, "fan", model.RoleUser)
	m, _ := svc.CreateMovie(ctx, movieInput("The General"))

	if _, err := svc.AddFavorite(ctx, u.ID, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddFavorite(ctx, u.ID, m.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, err := svc.AddFavorite(ctx, u.ID, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.AddWatchLater(ctx, u.ID, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := svc.RemoveWatchLater(ctx, u.ID, m.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCatalogService_Progress(t *testing.T) {
	ctx := context.Background()
	svc, repos := newCatalogFixture(t)
	u := seedUser(t, repos, "watcher", model.RoleUser)
	m, _ := svc.CreateMovie(ctx, movieInput("The Kid"))

	if _, err := svc.ReportProgress(ctx, u.ID, m.ID, 120); err != nil {
		t.Fatal(err)
	}
	p, err := svc.ReportProgress(ctx, u.ID, m.ID, 45)
	if err != nil || p.Position != 45 {
		t.Fatalf("p = %+v, err = %v", p, err)
	}
	list, _ := svc.ListProgress(ctx, u.ID)
	if len(list) != 1 || list[0].Position != 45 {
		t.Fatalf("list = %+v", list)
	}
	if _, err := svc.ReportProgress(ctx, u.ID, m.ID, -1); err == nil {
		t.Fatal("negative position should be rejected")
	}
}

func TestCatalogService_Comments(t *testing.T) {
	ctx := context.Background()
	svc, repos := newCatalogFixture(t)
	author := seedUser(t, repos, "author", model.RoleUser)
	stranger := seedUser(t, repos, "stranger", model.RoleUser)
	staff := seedUser(t, repos, "staffer", model.RoleStaff)
	m, _ := svc.CreateMovie(ctx, movieInput("Häxan"))

	rating := 5
	c, err := svc.AddComment(ctx, author.ID, m.Slug, CommentInput{Text: "  Unsettling.  ", Rating: &rating})
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "Unsettling." || c.UserName != "author" {
		t.Fatalf("comment = %+v", c)
	}

	t.Run("invalid input", func(t *testing.T) {
		bad := 6
		if _, err := svc.AddComment(ctx, author.ID, m.Slug, CommentInput{Text: "ok", Rating: &bad}); err == nil {
			t.Error("rating 6 should be rejected")
		}
		if _, err := svc.AddComment(ctx, author.ID, m.Slug, CommentInput{Text: strings.Repeat("a", 2001)}); err == nil {
			t.Error("long text should be rejected")
		}
		if _, err := svc.AddComment(ctx, author.ID, m.Slug, CommentInput{Text: "   "}); err == nil {
			t.Error("blank text should be rejected")
		}
	})

	t.Run("non author cannot delete", func(t *testing.T) {
		err := svc.DeleteComment(ctx, stranger.ID, c.ID)
		if !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Fatalf("err = %v", err)
		}
		list, _ := svc.ListComments(ctx, m.Slug)
		if len(list) != 1 {
			t.Fatal("comment should remain")
		}
	})

	t.Run("demoted staff cannot delete", func(t *testing.T) {
		demoted := seedUser(t, repos, "demoted", model.RoleStaff)
		if err := repos.User.UpdateRole(ctx, demoted.ID, model.RoleUser); err != nil {
			t.Fatal(err)
		}
		if err := svc.DeleteComment(ctx, demoted.ID, c.ID); !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("staff can delete", func(t *testing.T) {
		if err := svc.DeleteComment(ctx, staff.ID, c.ID); err != nil {
			t.Fatal(err)
		}
		if err := svc.DeleteComment(ctx, author.ID, c.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
}
