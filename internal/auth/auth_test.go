package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLinkSignInRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewService(dir)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if s.Current() != nil {
		t.Fatalf("fresh service must start as guest")
	}

	var seen []*Identity
	s.OnChange(func(id *Identity) { seen = append(seen, id) })

	code, err := s.BeginLinkSignIn("Ada@Example.com")
	if err != nil {
		t.Fatalf("BeginLinkSignIn: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, pendingFileName)); err != nil {
		t.Fatalf("pending marker not written: %v", err)
	}

	id, err := s.CompleteLinkSignIn(code)
	if err != nil {
		t.Fatalf("CompleteLinkSignIn: %v", err)
	}
	if id.Email != "ada@example.com" {
		t.Fatalf("email = %q, want normalized lowercase", id.Email)
	}
	if id.UserID != UserIDForEmail("ada@example.com") {
		t.Fatalf("user id must be derived from the email")
	}
	if _, err := os.Stat(filepath.Join(dir, pendingFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pending marker must be removed after completion")
	}
	if cur := s.Current(); cur == nil || cur.UserID != id.UserID {
		t.Fatalf("Current = %+v", cur)
	}
	if len(seen) != 1 || seen[0] == nil {
		t.Fatalf("expected one sign-in notification, got %v", seen)
	}

	// Identity persists across service restarts.
	s2, err := NewService(dir)
	if err != nil {
		t.Fatalf("NewService (reload): %v", err)
	}
	if cur := s2.Current(); cur == nil || cur.UserID != id.UserID {
		t.Fatalf("identity not persisted: %+v", cur)
	}

	if err := s.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if s.Current() != nil {
		t.Fatalf("still signed in after SignOut")
	}
	if len(seen) != 2 || seen[1] != nil {
		t.Fatalf("expected sign-out notification, got %v", seen)
	}
}

func TestCompleteLinkSignInRejectsBadCode(t *testing.T) {
	s, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := s.CompleteLinkSignIn("nope"); !errors.Is(err, ErrBadCode) {
		t.Fatalf("no pending sign-in: err = %v, want ErrBadCode", err)
	}

	if _, err := s.BeginLinkSignIn("ada@example.com"); err != nil {
		t.Fatalf("BeginLinkSignIn: %v", err)
	}
	if _, err := s.CompleteLinkSignIn("wrong-code"); !errors.Is(err, ErrBadCode) {
		t.Fatalf("wrong code: err = %v, want ErrBadCode", err)
	}
	if s.Current() != nil {
		t.Fatalf("failed completion must not sign in")
	}
}

func TestBeginLinkSignInValidatesEmail(t *testing.T) {
	s, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	var authErr Error
	if _, err := s.BeginLinkSignIn("not-an-email"); !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want auth.Error", err)
	}
}

func TestUserIDForEmailIsStable(t *testing.T) {
	a := UserIDForEmail("Ada@Example.com")
	b := UserIDForEmail("ada@example.com ")
	if a != b {
		t.Fatalf("id must be case/space insensitive: %s vs %s", a, b)
	}
	if UserIDForEmail("other@example.com") == a {
		t.Fatalf("different emails must not collide")
	}
}
