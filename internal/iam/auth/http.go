// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// HTTP delivery layer for the credential flows.
//
// # Architecture
//
// The handler acts as a thin mediation layer between the web and the
// orchestrator:
//   - Protocol: Standard RESTful JSON interface.
//   - Security: Injects the accessToken/refreshToken cookie pair alongside
//     the JSON body, so both browser and API clients are served.
//   - Verification: Enforces strict input validation before passing to [Service].
//
// This layer is strictly responsible for transport concerns (status codes,
// headers, cookies, JSON).

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/veyra/internal/platform/apperr"
	"github.com/taibuivan/veyra/internal/platform/constants"
	requestutil "github.com/taibuivan/veyra/internal/platform/request"
	"github.com/taibuivan/veyra/internal/platform/respond"
	"github.com/taibuivan/veyra/internal/platform/sec"
	"github.com/taibuivan/veyra/internal/platform/validate"
)

// # Definitions & Constructors

// CookieSettings controls how the credential cookies are written.
type CookieSettings struct {
	Domain       string
	Secure       bool // Secure flag; on in production.
	SameSiteNone bool // SameSite=None for cross-site deployments; Lax otherwise.
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

func (settings CookieSettings) sameSite() http.SameSite {
	if settings.SameSiteNone {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// Handler implements the credential HTTP endpoints.
type Handler struct {
	authService *Service
	cookies     CookieSettings
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, cookies CookieSettings) *Handler {
	return &Handler{authService: service, cookies: cookies}
}

// Routes returns a [chi.Router] configured with the credential routes.
//
// # Endpoints
//   - POST /register   : Creates an account and logs it in.
//   - POST /login      : Authenticates and returns a token pair.
//   - POST /refresh    : Mints a new access token from a refresh token.
//   - POST /logout     : Terminates one session.
//   - POST /logout-all : Terminates every session of the caller.
//
// The logout endpoints verify the presented access token themselves, so
// they need no upstream authentication middleware.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/logout-all", handler.logoutAll)

	return router
}

// # Request Payloads

type registerRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

/*
Register creates a new account and establishes its first session.

POST /api/v1/auth/register

Description: Validates input, resolves the target tenant by role, and
returns the freshly minted token pair alongside the cookie set.

Request:
  - Body: registerRequest (Email/Phone, Password, TenantID?, Role)

Response:
  - 200: Token pair, user id, roles, tenant id
  - 400: ErrInvalidJSON: Bad input, unknown tenant, or role without tenant
  - 409: EmailTaken / PhoneTaken
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Custom(FieldEmail, input.Email == "" && input.Phone == "", "email or phone is required").
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		Required(FieldRole, input.Role).
		OneOf(FieldRole, input.Role, "CUSTOMER", "SELLER", "ADMIN", "STAFF", "DRIVER")
	if input.Email != "" {
		validator.Email(FieldEmail, input.Email)
	}
	if input.Phone != "" {
		validator.Phone(FieldPhone, input.Phone)
	}
	if input.TenantID != "" {
		validator.UUID(FieldTenantID, input.TenantID)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	roles := sec.ParseRoles([]string{input.Role})
	if len(roles) == 0 {
		respond.Error(writer, request, validate.RequiredError(FieldRole, "is not a recognized role"))
		return
	}

	session, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:    input.Email,
		Phone:    input.Phone,
		Password: input.Password,
		TenantID: input.TenantID,
		Role:     roles[0],
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookies(writer, session)

	respond.OK(writer, map[string]any{
		FieldToken:        session.AccessToken,
		FieldRefreshToken: session.RefreshToken,
		FieldUserID:       session.User.ID,
		FieldRole:         session.User.RoleStrings(),
		FieldTenantID:     session.User.TenantID,
	})
}

/*
Login authenticates an account and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials, mints the token pair, and injects the
credential cookies into the response.

Request:
  - Body: loginRequest (Email or Phone, Password)

Response:
  - 200: Token pair, expires_in, user id, roles, tenant id
  - 401: BadCredentials on every precondition failure
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Custom(FieldEmail, input.Email == "" && input.Phone == "", "email or phone is required").
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Phone:    input.Phone,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookies(writer, session)

	respond.OK(writer, map[string]any{
		FieldAccessToken:  session.AccessToken,
		FieldRefreshToken: session.RefreshToken,
		FieldExpiresIn:    int64(handler.cookies.AccessTTL / time.Second),
		FieldUserID:       session.User.ID,
		FieldRole:         session.User.RoleStrings(),
		FieldTenantID:     session.User.TenantID,
	})
}

/*
Refresh mints a new access token from a live refresh token.

POST /api/v1/auth/refresh

Description: The refresh token comes from the body or the refreshToken
cookie (body wins). An Authorization header, when present, is cross-checked
against the refresh token's owner. The accessToken cookie is re-issued.

Request:
  - Body: refreshRequest (RefreshToken?)

Response:
  - 200: New access token and expires_in
  - 401: BadCredentials: Missing, revoked, expired, or mismatched tokens
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest

	// Body is optional when the cookie carries the token.
	_ = requestutil.DecodeJSON(request, &input)

	refreshToken, ok := sec.ExtractRefreshToken(request, input.RefreshToken)
	if !ok {
		respond.Error(writer, request, apperr.BadCredentials())
		return
	}

	accessToken, _ := sec.ExtractAccessToken(request)

	result, err := handler.authService.Refresh(request.Context(), RefreshInput{
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setCookie(writer, constants.AccessTokenCookieName, result.AccessToken, handler.cookies.AccessTTL)

	respond.OK(writer, map[string]any{
		FieldAccessToken: result.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int64(handler.cookies.AccessTTL / time.Second),
	})
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Description: Requires the access token (header or cookie) and the refresh
token (body or cookie). Revokes the session handle, blacklists the access
token, and clears the credential cookies.

Request:
  - Body: logoutRequest (RefreshToken?)

Response:
  - 200: Session terminated
  - 401: BadCredentials: Missing or mismatched credentials
  - 503: UpstreamUnavailable: Revocation store unreachable
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	accessToken, ok := sec.ExtractAccessToken(request)
	if !ok {
		respond.Error(writer, request, apperr.BadCredentials())
		return
	}

	var input logoutRequest
	_ = requestutil.DecodeJSON(request, &input)

	refreshToken, ok := sec.ExtractRefreshToken(request, input.RefreshToken)
	if !ok {
		respond.Error(writer, request, apperr.BadCredentials())
		return
	}

	if err := handler.authService.Logout(request.Context(), accessToken, refreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearSessionCookies(writer)

	respond.OK(writer, map[string]string{
		FieldMessage: "Logged out successfully",
	})
}

/*
LogoutAll terminates every session of the calling user.

POST /api/v1/auth/logout-all

Description: Revokes all refresh tokens, sets the revocation epoch, and
blacklists the calling access token. Clears the credential cookies.

Response:
  - 200: All sessions terminated
  - 401: BadCredentials: Missing or invalid access token
  - 503: UpstreamUnavailable: Revocation store unreachable
*/
func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	accessToken, ok := sec.ExtractAccessToken(request)
	if !ok {
		respond.Error(writer, request, apperr.BadCredentials())
		return
	}

	if err := handler.authService.LogoutAll(request.Context(), accessToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearSessionCookies(writer)

	respond.OK(writer, map[string]string{
		FieldMessage: "Logged out everywhere",
	})
}

// # Cookie Helpers

func (handler *Handler) setSessionCookies(writer http.ResponseWriter, session *Session) {
	handler.setCookie(writer, constants.AccessTokenCookieName, session.AccessToken, handler.cookies.AccessTTL)
	handler.setCookie(writer, constants.RefreshTokenCookieName, session.RefreshToken, handler.cookies.RefreshTTL)
}

func (handler *Handler) setCookie(writer http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     constants.AuthCookiePath,
		Domain:   handler.cookies.Domain,
		MaxAge:   int(ttl / time.Second),
		Secure:   handler.cookies.Secure,
		HttpOnly: true,
		SameSite: handler.cookies.sameSite(),
	})
}

func (handler *Handler) clearSessionCookies(writer http.ResponseWriter) {
	for _, name := range []string{constants.AccessTokenCookieName, constants.RefreshTokenCookieName} {
		http.SetCookie(writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     constants.AuthCookiePath,
			Domain:   handler.cookies.Domain,
			MaxAge:   -1,
			Secure:   handler.cookies.Secure,
			HttpOnly: true,
			SameSite: handler.cookies.sameSite(),
		})
	}
}
