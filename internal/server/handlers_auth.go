package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"arkdrop/internal/auth"
	"arkdrop/internal/metrics"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.gate.Enabled() {
		s.writeErrorReq(w, r, http.StatusNotFound, errors.New("login is disabled: no password configured"))
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("invalid form: %w", err)))
		return
	}

	now := s.now()
	limiterKey := requestClientIP(r)
	if !s.loginLimiter.Allow(limiterKey, now) {
		s.writeErrorReq(w, r, http.StatusTooManyRequests, errors.New("too many login attempts; retry later"))
		return
	}

	token, expires, err := s.gate.Login(r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			metrics.RecordAuthAttempt(false)
			s.loginLimiter.RegisterFailure(limiterKey, now)
			s.writeErrorReq(w, r, http.StatusUnauthorized, err)
			return
		}
		s.writeErrorReq(w, r, http.StatusInternalServerError, err)
		return
	}
	metrics.RecordAuthAttempt(true)
	s.loginLimiter.Reset(limiterKey)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}

// withAuth accepts a bearer token or the session cookie.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.gate.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if err := s.gate.Verify(requestToken(r)); err != nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func requestClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err == nil {
		return strings.TrimSpace(host)
	}
	return remote
}
