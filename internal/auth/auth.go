// Package auth is the identity collaborator: a password-less, link-style
// sign-in kept deliberately small. The only thing persisted is the current
// identity plus a transient pending-email marker used to complete a deferred
// sign-in; clearing the state dir signs everyone out.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	identityFileName = "identity.json"
	pendingFileName  = "pending-signin.json"

	// linkTTL bounds how long a sign-in code stays valid.
	linkTTL = 15 * time.Minute
)

// Identity is the signed-in user. A nil Identity means "guest", which forces
// the public catalog context upstream.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// Error is an auth failure surfaced to the user.
type Error struct {
	Reason string
	Err    error
}

func (e Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e Error) Unwrap() error { return e.Err }

// ErrBadCode: the supplied sign-in code does not match the pending sign-in
// (wrong code, expired, or no sign-in was started).
var ErrBadCode = errors.New("invalid or expired sign-in code")

type pendingSignIn struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	StartedAt time.Time `json:"startedAt"`
}

// Service manages the current identity for one state dir and notifies
// listeners on every change.
type Service struct {
	dir string

	mu       sync.Mutex
	current  *Identity
	onChange []func(*Identity)
}

func NewService(dir string) (*Service, error) {
	s := &Service{dir: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		// The actionable sub-case: a broken state dir is a setup problem,
		// not a sign-in problem.
		return nil, Error{Reason: fmt.Sprintf("auth state dir %s is not writable; fix permissions or set GEARBAG_DIR", dir), Err: err}
	}
	b, err := os.ReadFile(filepath.Join(dir, identityFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, Error{Reason: "could not read stored identity", Err: err}
	}
	var id Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return nil, Error{Reason: fmt.Sprintf("stored identity at %s is corrupt; delete it to sign out", filepath.Join(dir, identityFileName)), Err: err}
	}
	if id.UserID != "" {
		s.current = &id
	}
	return s, nil
}

// Current returns the signed-in identity, or nil for guest.
func (s *Service) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnChange registers a listener invoked (synchronously) whenever the
// identity changes, including sign-out (nil).
func (s *Service) OnChange(fn func(*Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// BeginLinkSignIn starts a password-less sign-in for email and returns the
// code the "link" would carry. The pending marker is the only local state
// and is transient by design.
func (s *Service) BeginLinkSignIn(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", Error{Reason: "enter a valid email address"}
	}
	code, err := randomCode()
	if err != nil {
		return "", Error{Reason: "could not generate sign-in code", Err: err}
	}
	p := pendingSignIn{Email: email, Code: code, StartedAt: time.Now().UTC()}
	b, err := json.Marshal(p)
	if err != nil {
		return "", Error{Reason: "could not store pending sign-in", Err: err}
	}
	if err := os.WriteFile(filepath.Join(s.dir, pendingFileName), b, 0o600); err != nil {
		return "", Error{Reason: "could not store pending sign-in", Err: err}
	}
	return code, nil
}

// CompleteLinkSignIn finishes a pending sign-in. On success the pending
// marker is removed and listeners are notified.
func (s *Service) CompleteLinkSignIn(code string) (Identity, error) {
	path := filepath.Join(s.dir, pendingFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Identity{}, ErrBadCode
		}
		return Identity{}, Error{Reason: "could not read pending sign-in", Err: err}
	}
	var p pendingSignIn
	if err := json.Unmarshal(b, &p); err != nil {
		return Identity{}, Error{Reason: "pending sign-in is corrupt; start over", Err: err}
	}
	if strings.TrimSpace(code) != p.Code || time.Since(p.StartedAt) > linkTTL {
		return Identity{}, ErrBadCode
	}

	id := Identity{UserID: UserIDForEmail(p.Email), Email: p.Email}
	raw, err := json.Marshal(id)
	if err != nil {
		return Identity{}, Error{Reason: "could not persist identity", Err: err}
	}
	if err := os.WriteFile(filepath.Join(s.dir, identityFileName), raw, 0o600); err != nil {
		return Identity{}, Error{Reason: "could not persist identity", Err: err}
	}
	_ = os.Remove(path)

	s.setCurrent(&id)
	return id, nil
}

// SignOut clears the stored identity and notifies listeners.
func (s *Service) SignOut() error {
	if err := os.Remove(filepath.Join(s.dir, identityFileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Error{Reason: "could not clear stored identity", Err: err}
	}
	s.setCurrent(nil)
	return nil
}

func (s *Service) setCurrent(id *Identity) {
	s.mu.Lock()
	s.current = id
	listeners := append([]func(*Identity){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(id)
	}
}

// UserIDForEmail derives the stable user id for an email address. Same email,
// same id, on every machine; no registry needed.
func UserIDForEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return "user-" + strings.ToLower(enc.EncodeToString(sum[:5]))
}

func randomCode() (string, error) {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return strings.ToLower(enc.EncodeToString(b[:])), nil
}
