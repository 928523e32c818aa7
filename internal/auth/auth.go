// Package auth guards the dashboard with a single operator login and a
// signed, encrypted session cookie.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	cookieName = "slotsched_session"
	sessionTTL = 14 * 24 * time.Hour
)

type Store struct {
	sc       *securecookie.SecureCookie
	username string
	hash     string
}

type ctxKey string

const operatorKey ctxKey = "operator"

// NewStore checks logins against username and a bcrypt password hash.
func NewStore(username, passwordHash string, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, username: username, hash: passwordHash}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Store) Authenticate(username, password string) error {
	// bcrypt runs even for an unknown username
	pwOK := CheckPassword(s.hash, password)
	if !secureEq(username, s.username) || !pwOK {
		return ErrInvalidCredentials
	}
	return nil
}

type Session struct {
	Operator string
	Issued   time.Time
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, operator string) error {
	val := map[string]string{"op": operator, "iat": time.Now().UTC().Format(time.RFC3339)}
	encoded, err := s.sc.Encode(cookieName, val)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	val := map[string]string{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	// a renamed operator invalidates old cookies
	if val["op"] == "" || !secureEq(val["op"], s.username) {
		return Session{}, false
	}
	issued, _ := time.Parse(time.RFC3339, val["iat"])
	return Session{Operator: val["op"], Issued: issued}, true
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey, sess.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func OperatorFromContext(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey).(string)
	return op, ok
}

func secureEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
