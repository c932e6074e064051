package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/perchkeep/perch/internal/httpserver/deps"
	"github.com/perchkeep/perch/internal/httpserver/mw"
	"github.com/perchkeep/perch/internal/logger"
	"github.com/perchkeep/perch/internal/session"
)

const (
	stateCookie    = "perch_oauth_state"
	verifierCookie = "perch_oauth_verifier"

	// How long the user has to complete the provider handshake.
	handshakeTTL = 10 * time.Minute
)

// Login serves GET /api/auth/login: starts the OAuth flow by stashing a
// one-time state and PKCE verifier in short-lived cookies, then sending
// the browser to the provider's consent page.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.OAuth == nil || d.OAuth.ClientID == "" {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "OAuth is not configured"})
			return
		}

		state := uuid.New().String()
		verifier := oauth2.GenerateVerifier()

		setHandshakeCookie(w, stateCookie, state, d.CookieSecure)
		setHandshakeCookie(w, verifierCookie, verifier, d.CookieSecure)

		url := d.OAuth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	}
}

// Callback serves GET /api/auth/callback: validates state, exchanges the
// code, resolves the user's identity and mints a session cookie before
// bouncing to the dashboard.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errCode := q.Get("error"); errCode != "" {
			d.Logger.Warn("oauth flow denied", logger.String("error", errCode))
			redirectWithError(w, r, d.DashboardURL, "access_denied")
			return
		}

		state := q.Get("state")
		code := q.Get("code")
		if state == "" || code == "" {
			badRequest(w, "Missing state or code")
			return
		}

		stateC, err := r.Cookie(stateCookie)
		if err != nil || stateC.Value != state {
			badRequest(w, "Invalid state")
			return
		}
		verifierC, err := r.Cookie(verifierCookie)
		if err != nil || verifierC.Value == "" {
			badRequest(w, "Missing code verifier")
			return
		}

		clearHandshakeCookie(w, stateCookie, d.CookieSecure)
		clearHandshakeCookie(w, verifierCookie, d.CookieSecure)

		token, err := d.OAuth.Exchange(r.Context(), code, oauth2.VerifierOption(verifierC.Value))
		if err != nil {
			d.Logger.Error("token exchange failed", logger.Error(err))
			redirectWithError(w, r, d.DashboardURL, "exchange_failed")
			return
		}

		client := d.NewUpstream(token.AccessToken, token.RefreshToken)
		user, err := client.Me(r.Context())
		if err != nil {
			d.Logger.Error("identity lookup failed", logger.Error(err))
			redirectWithError(w, r, d.DashboardURL, "identity_failed")
			return
		}

		sess := &session.Session{
			UserID:       user.ID,
			Username:     user.Username,
			Name:         user.Name,
			AvatarURL:    user.AvatarURL,
			Verified:     user.Verified,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
		}
		sessionToken, err := d.Sessions.Create(r.Context(), sess)
		if err != nil {
			d.Logger.Error("session create failed", logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to create session"})
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     mw.SessionCookie,
			Value:    sessionToken,
			Path:     "/",
			MaxAge:   int(d.SessionTTL.Seconds()),
			HttpOnly: true,
			Secure:   d.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, d.DashboardURL, http.StatusTemporaryRedirect)
	}
}

// Logout serves POST /api/auth/logout: drops the server-side session and
// expires the cookie. Safe to call without a session.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(mw.SessionCookie); err == nil && cookie.Value != "" {
			if err := d.Sessions.Delete(r.Context(), cookie.Value); err != nil {
				d.Logger.Warn("session delete failed", logger.Error(err))
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     mw.SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   d.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// Me serves GET /api/auth/me: echoes the signed-in user's identity from
// the session without an upstream call.
func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"id":        sess.UserID,
			"username":  sess.Username,
			"name":      sess.Name,
			"avatarUrl": sess.AvatarURL,
			"verified":  sess.Verified,
		})
	}
}

func setHandshakeCookie(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(handshakeTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearHandshakeCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectWithError(w http.ResponseWriter, r *http.Request, dashboardURL, code string) {
	http.Redirect(w, r, dashboardURL+"?error="+code, http.StatusTemporaryRedirect)
}
