package auth

import (
	"caption-studio/config"
	"caption-studio/core"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	stateCookie   = "oauth_state"
	tokenLifetime = 7 * 24 * time.Hour
	githubUserURL = "https://api.github.com/user"
)

var (
	loginHandler    http.HandlerFunc
	callbackHandler http.HandlerFunc

	githubOauthConfig *oauth2.Config
	oidcOauthConfig   *oauth2.Config
	verifier          *oidc.IDTokenVerifier

	jwtSecret []byte
)

// AppClaims are the claims carried by tokens issued after login.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

type oidcClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// InitAuth picks the login provider: OIDC when an issuer and client are
// configured, GitHub otherwise. Without either, login answers 500.
func InitAuth(cfg config.AuthConfig) {
	jwtSecret = []byte(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}

	switch {
	case cfg.OIDCIssuerURL != "" && cfg.OIDCClientID != "":
		logrus.Info("Initializing OIDC authentication provider.")
		if err := initOIDC(cfg); err != nil {
			logrus.WithError(err).Error("Failed to create OIDC provider")
			setUnconfigured()
			return
		}
		loginHandler = handleOIDCLogin
		callbackHandler = handleOIDCCallback
	case cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "":
		logrus.Info("Initializing GitHub authentication provider.")
		githubOauthConfig = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}
		loginHandler = handleGitHubLogin
		callbackHandler = handleGitHubCallback
	default:
		logrus.Warn("No authentication provider configured.")
		setUnconfigured()
	}
}

// SetSecret replaces the signing key without configuring a provider.
func SetSecret(secret []byte) {
	jwtSecret = secret
}

func setUnconfigured() {
	notConfigured := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
	}
	loginHandler = notConfigured
	callbackHandler = notConfigured
}

func initOIDC(cfg config.AuthConfig) error {
	provider, err := oidc.NewProvider(context.Background(), cfg.OIDCIssuerURL)
	if err != nil {
		return err
	}

	oidcOauthConfig = &oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	verifier = provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})

	logrus.WithField("issuer", cfg.OIDCIssuerURL).Info("OIDC provider initialized")
	return nil
}

func HandleLogin(w http.ResponseWriter, r *http.Request) {
	if loginHandler == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}
	loginHandler(w, r)
}

func HandleCallback(w http.ResponseWriter, r *http.Request) {
	if callbackHandler == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}
	callbackHandler(w, r)
}

func setStateCookie(w http.ResponseWriter, r *http.Request) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// validState checks the state parameter against the login cookie.
func validState(r *http.Request) bool {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		return false
	}
	return cookie.Value != "" && cookie.Value == r.FormValue("state")
}

func handleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state, err := setStateCookie(w, r)
	if err != nil {
		http.Error(w, "Failed to generate state for login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, githubOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func handleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if !validState(r) {
		logrus.Warn("OAuth state mismatch")
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	token, err := githubOauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		logrus.WithError(err).Error("Failed to exchange token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	resp, err := githubOauthConfig.Client(r.Context(), token).Get(githubUserURL)
	if err != nil {
		logrus.WithError(err).Error("Failed to get user from github")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.WithError(err).Error("Failed to read github response body")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.Unmarshal(body, &githubUser); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal github user")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	issueAndRedirect(w, r, &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		Email:     githubUser.Email,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
	})
}

func handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	state, err := setStateCookie(w, r)
	if err != nil {
		http.Error(w, "Failed to generate state for OIDC login", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, oidcOauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusTemporaryRedirect)
}

func handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if !validState(r) {
		logrus.Warn("OIDC state mismatch")
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		logrus.Error("no code in callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := oidcOauthConfig.Exchange(r.Context(), code)
	if err != nil {
		logrus.WithError(err).Error("Failed to exchange token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		logrus.Error("no id_token in token response")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	idToken, err := verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		logrus.WithError(err).Error("Failed to verify ID token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	var claims oidcClaims
	if err := idToken.Claims(&claims); err != nil {
		logrus.WithError(err).Error("Failed to extract claims from ID token")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user := &core.User{
		Subject:   claims.Sub,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
	}
	if user.Login == "" {
		user.Login = user.Email
	}
	issueAndRedirect(w, r, user)
}

func issueAndRedirect(w http.ResponseWriter, r *http.Request, user *core.User) {
	jwtToken, err := CreateJWT(user)
	if err != nil {
		logrus.WithError(err).Error("Failed to create JWT")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	logrus.WithFields(logrus.Fields{"subject": user.Subject, "login": user.Login}).Info("User logged in")
	http.Redirect(w, r, "/?token="+jwtToken, http.StatusTemporaryRedirect)
}

// CreateJWT signs a one-week HS256 token for user.
func CreateJWT(user *core.User) (string, error) {
	if len(jwtSecret) == 0 {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

func ParseJWT(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
