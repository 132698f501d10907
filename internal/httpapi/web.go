package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/service"
	"kasirinaja/backoffice/internal/session"
)

const (
	sessionCookie = "pos_session"
	tokenCookie   = "pos_token"
)

// requestContext is what a page handler acts on: who is calling, their
// session and the URLs the request came from.
type requestContext struct {
	Actor   *domain.Actor
	Session *session.Session
	URLs    urlHelper
}

type requestContextKey struct{}

type pageFunc func(w http.ResponseWriter, r *http.Request, rc *requestContext)

type urlHelper struct {
	host    string
	current string
	referer string
}

func newURLHelper(r *http.Request) urlHelper {
	return urlHelper{host: r.Host, current: r.URL.Path, referer: r.Header.Get("Referer")}
}

// Previous is the same-host Referer path, or fallback when there is none or
// it points back at the current page.
func (u urlHelper) Previous(fallback string) string {
	if u.referer == "" {
		return fallback
	}
	ref, err := url.Parse(u.referer)
	if err != nil || (ref.Host != "" && ref.Host != u.host) {
		return fallback
	}
	if ref.Path == "" || ref.Path == u.current {
		return fallback
	}
	return safeRedirect(ref.RequestURI(), fallback)
}

// safeRedirect only accepts local absolute paths.
func safeRedirect(target string, fallback string) string {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

func requestContextFrom(ctx context.Context) *requestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*requestContext)
	return rc
}

// loadSession attaches the session and, when the token cookie is valid, the
// actor.
func (a *API) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var sessionID string
		if c, err := r.Cookie(sessionCookie); err == nil {
			sessionID = c.Value
		}
		sess, err := a.sessions.Load(ctx, sessionID)
		if err != nil {
			a.log.Error(ctx, "session.load_failed", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if sess.ID != sessionID {
			a.setCookie(w, sessionCookie, sess.ID, int(a.sessions.TTL().Seconds()))
		}

		rc := &requestContext{Session: sess, URLs: newURLHelper(r)}
		if c, err := r.Cookie(tokenCookie); err == nil {
			if actor, err := a.auth.ParseToken(c.Value); err == nil {
				rc.Actor = &actor
				ctx = service.WithActor(ctx, actor)
				ctx = a.log.WithUserID(ctx, actor.UserID)
			}
		}

		ctx = context.WithValue(ctx, requestContextKey{}, rc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := requestContextFrom(r.Context())
		if rc == nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if rc.Actor == nil {
			if r.Method == http.MethodGet {
				rc.Session.Put(session.KeyIntendedURL, r.URL.RequestURI())
			}
			a.redirect(w, r, rc, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) page(h pageFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := requestContextFrom(r.Context())
		if rc == nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		h(w, r, rc)
	}
}

func (a *API) setCookie(w http.ResponseWriter, name string, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) commitSession(r *http.Request, rc *requestContext) {
	if err := a.sessions.Save(r.Context(), rc.Session); err != nil {
		a.log.Error(r.Context(), "session.save_failed", err)
	}
}

func (a *API) redirect(w http.ResponseWriter, r *http.Request, rc *requestContext, target string) {
	a.commitSession(r, rc)
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *API) redirectWithFlash(w http.ResponseWriter, r *http.Request, rc *requestContext, target string, kind string, message string) {
	rc.Session.Flash(kind, message)
	a.redirect(w, r, rc, target)
}

type viewData struct {
	Title     string
	Actor     *domain.Actor
	CSRFToken string
	Flash     map[string][]string
	Page      any
}

func (a *API) render(w http.ResponseWriter, r *http.Request, rc *requestContext, status int, name string, title string, page any) {
	view, ok := a.views[name]
	if !ok {
		a.log.Error(r.Context(), "view.missing", errors.New(name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := viewData{
		Title:     title,
		Actor:     rc.Actor,
		CSRFToken: a.generateCSRFToken(rc.Session.ID),
		Flash: map[string][]string{
			session.FlashSuccess: rc.Session.Flashes(session.FlashSuccess),
			session.FlashError:   rc.Session.Flashes(session.FlashError),
		},
		Page: page,
	}

	buf := new(bytes.Buffer)
	if err := view.ExecuteTemplate(buf, "layout", data); err != nil {
		a.log.Error(r.Context(), "view.render_failed", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	a.commitSession(r, rc)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	Status  int
	Message string
}

func (a *API) renderError(w http.ResponseWriter, r *http.Request, rc *requestContext, err error) {
	status := statusForError(err)
	message := http.StatusText(status)
	if status >= 500 {
		a.log.Error(r.Context(), "request.failed", err)
	} else if status == http.StatusNotFound {
		message = "The page you requested could not be found."
	} else {
		message = err.Error()
	}
	a.render(w, r, rc, status, "error", http.StatusText(status), errorPage{Status: status, Message: message})
}
