// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package auth provides the HTTP delivery layer for identity management.

It implements the gateway for the authentication lifecycle, from account
creation to session rotation and termination.

# Architecture

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface with the success envelope.
  - Security: Sets both token cookies; the refresh cookie is path-scoped to
    these endpoints so the long-lived credential never travels elsewhere.
  - Verification: Enforces strict input validation before passing to [Service].

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/constants"
	"github.com/inkframe/inkframe/internal/platform/middleware"
	requestutil "github.com/inkframe/inkframe/internal/platform/request"
	"github.com/inkframe/inkframe/internal/platform/respond"
	"github.com/inkframe/inkframe/internal/platform/validate"
)

// # Definitions & Constructors

// CookiePolicy carries the deployment-specific cookie attributes.
//
// Secure and SameSite come from configuration so local development over
// plain HTTP remains possible; production always runs Secure + Strict.
type CookiePolicy struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
	cookies     CookiePolicy
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, cookies CookiePolicy) *Handler {
	return &Handler{authService: service, cookies: cookies}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /register        : Creates a new account.
//   - POST /login           : Authenticates and establishes a session.
//   - POST /refresh         : Rotates the token pair.
//   - POST /logout          : Revokes the session chain.
//   - GET  /me              : Returns the authenticated profile.
//   - POST /change-password : Rotates the credential, revokes all sessions.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.me)
		r.Post("/change-password", handler.changePassword)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// # Handlers

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Description: On success the new account is signed in immediately: both
session cookies are set and the body carries no data. The fresh refresh
chain uses the default 7-day lifetime.

Request:
  - Body: registerRequest (Email, Password, DisplayName)

Response:
  - 201: Created: cookies set, empty data
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 409: ErrConflict: Email already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		Required(FieldDisplayName, input.DisplayName).
		MaxLen(FieldDisplayName, input.DisplayName, 100)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// The account is signed in immediately; the cookies carry the session
	handler.setSessionCookies(writer, session)
	respond.Created(writer, nil)
}

/*
Login authenticates a user and establishes a fresh session chain.

POST /api/v1/auth/login

Description: On success both cookies are set: the short-lived access token
(whole API) and the refresh token (path-scoped to the auth endpoints, with a
7-day or 30-day lifetime depending on remember_me). The cookies are the
whole contract; the body carries no data. Clients wanting the profile call
GET /me.

Request:
  - Body: loginRequest (Email, Password, RememberMe)

Response:
  - 200: OK: cookies set, empty data
  - 401: ErrUnauthorized: Invalid credentials or blocked account
  - 429: ErrRateLimited: Too many attempts from this client
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:      input.Email,
		Password:   input.Password,
		RememberMe: input.RememberMe,
		ClientIP:   requestutil.ClientIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookies(writer, session)
	respond.OK(writer, nil)
}

/*
Refresh rotates the token pair using the refresh token cookie.

POST /api/v1/auth/refresh

Description: Exchanges the single-use refresh token for a successor and a
fresh access token. Reuse of an already-exchanged token revokes the entire
chain and clears the cookies.

Response:
  - 200: New access token credentials
  - 401: TOKEN_INVALID or TOKEN_REUSED
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		respond.Error(writer, request, apperr.TokenInvalid())
		return
	}

	session, err := handler.authService.Refresh(request.Context(), cookie.Value)
	if err != nil {
		// A dead token cannot recover; drop the cookies so the client
		// falls back to a clean login.
		handler.clearSessionCookies(writer)
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookies(writer, session)

	respond.OK(writer, map[string]any{
		FieldAccessToken: session.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int64(AccessTokenTTL / time.Second),
	})
}

/*
Logout terminates the current session chain.

POST /api/v1/auth/logout

Description: Revokes the refresh chain (if a cookie is present) and clears
the security cookies. Idempotent: logging out twice succeeds.

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.RefreshTokenCookieName)

	if err == nil && cookie != nil && cookie.Value != "" {
		_ = handler.authService.Logout(request.Context(), cookie.Value)
	}

	handler.clearSessionCookies(writer)
	respond.NoContent(writer)
}

/*
Me returns the authenticated user's profile.

GET /api/v1/auth/me

Response:
  - 200: Profile
  - 401: ErrUnauthorized: Not authenticated
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.authService.Me(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

/*
ChangePassword rotates the credential and revokes every session.

POST /api/v1/auth/change-password

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 204: No Content: Password changed, all sessions revoked
  - 401: ErrUnauthorized: Wrong current password
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	var input changePasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, 8)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// The caller's own refresh cookie is now revoked with the rest
	handler.clearSessionCookies(writer)
	respond.NoContent(writer)
}

// # Cookie Helpers

// setSessionCookies writes the access and refresh cookies for a session.
func (handler *Handler) setSessionCookies(writer http.ResponseWriter, session *Session) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AccessTokenCookieName,
		Value:    session.AccessToken,
		Path:     "/",
		Domain:   handler.cookies.Domain,
		MaxAge:   int(AccessTokenTTL / time.Second),
		Secure:   handler.cookies.Secure,
		HttpOnly: true,
		SameSite: handler.cookies.SameSite,
	})

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    session.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Domain:   handler.cookies.Domain,
		MaxAge:   int(session.RefreshTokenTTL / time.Second),
		Secure:   handler.cookies.Secure,
		HttpOnly: true,
		SameSite: handler.cookies.SameSite,
	})
}

// clearSessionCookies expires both cookies on the client.
func (handler *Handler) clearSessionCookies(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   handler.cookies.Domain,
		MaxAge:   -1,
		Secure:   handler.cookies.Secure,
		HttpOnly: true,
		SameSite: handler.cookies.SameSite,
	})

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		Domain:   handler.cookies.Domain,
		MaxAge:   -1,
		Secure:   handler.cookies.Secure,
		HttpOnly: true,
		SameSite: handler.cookies.SameSite,
	})
}
