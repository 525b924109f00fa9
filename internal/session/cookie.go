package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// CookieStore is a gorilla/sessions Store that keeps only a signed session id
// in the cookie and the payload in a Tiered store.
type CookieStore struct {
	Options *sessions.Options

	store  *Tiered
	codecs []securecookie.Codec
}

var _ sessions.Store = (*CookieStore)(nil)

func NewCookieStore(store *Tiered, opts *sessions.Options, keyPairs ...[]byte) *CookieStore {
	return &CookieStore{
		Options: opts,
		store:   store,
		codecs:  securecookie.CodecsFromPairs(keyPairs...),
	}
}

func (s *CookieStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

func (s *CookieStore) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := *s.Options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	var sid string
	if err := securecookie.DecodeMulti(name, c.Value, &sid, s.codecs...); err != nil {
		return sess, err
	}
	rec, err := s.store.Get(r.Context(), sid)
	if errors.Is(err, ErrNotFound) {
		return sess, nil
	}
	if err != nil {
		return sess, err
	}
	sess.ID = sid
	for k, v := range rec.Values {
		sess.Values[k] = v
	}
	sess.IsNew = false
	return sess, nil
}

func (s *CookieStore) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	ctx := r.Context()
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.store.Destroy(ctx, sess.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	rec, err := record(sess)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, sess.ID, rec); err != nil {
		return err
	}
	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

// Touch extends the lifetime of an existing session without rewriting the
// cookie.
func (s *CookieStore) Touch(r *http.Request, sess *sessions.Session) error {
	if sess.IsNew || sess.ID == "" {
		return nil
	}
	rec, err := record(sess)
	if err != nil {
		return err
	}
	return s.store.Touch(r.Context(), sess.ID, rec)
}

func record(sess *sessions.Session) (*Session, error) {
	rec := &Session{Values: make(map[string]any, len(sess.Values)), MaxAge: sess.Options.MaxAge}
	for k, v := range sess.Values {
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("session key %v: only string keys are supported", k)
		}
		rec.Values[key] = v
	}
	return rec, nil
}
