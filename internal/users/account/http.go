// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package account provides the HTTP delivery layer for account administration.

# Security

Every endpoint requires an authenticated caller and is gated through the
permission matrix on the "accounts" menu code, so access is configurable
per role and per user like any other administration area.
*/
package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/middleware"
	requestutil "github.com/inkframe/inkframe/internal/platform/request"
	"github.com/inkframe/inkframe/internal/platform/respond"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/platform/validate"
	"github.com/inkframe/inkframe/internal/users/auth"
	"github.com/inkframe/inkframe/internal/users/rbac"
	"github.com/inkframe/inkframe/pkg/pagination"
	"github.com/inkframe/inkframe/pkg/query"
)

// Handler implements the HTTP layer for account administration.
type Handler struct {
	accountService *Service
	permissions    middleware.PermissionChecker
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service, permissions middleware.PermissionChecker) *Handler {
	return &Handler{accountService: service, permissions: permissions}
}

// Routes returns a [chi.Router] with the account administration endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	// Directory
	router.With(handler.guard(sec.ActionView)).Get("/", handler.listAccounts)
	router.With(handler.guard(sec.ActionView)).Get("/{id}", handler.getAccount)

	// Mutations
	router.With(handler.guard(sec.ActionUpdate)).Patch("/{id}", handler.updateAccount)
	router.With(handler.guard(sec.ActionUpdate)).Put("/{id}/status", handler.setStatus)
	router.With(handler.guard(sec.ActionDelete)).Delete("/{id}", handler.deleteAccount)

	return router
}

// guard gates a route on an action against the accounts menu node.
func (handler *Handler) guard(action sec.Action) func(http.Handler) http.Handler {
	return middleware.RequirePermission(handler.permissions, rbac.MenuAccounts, action)
}

// # Directory Endpoints

/*
GET /api/v1/accounts.

Description: Lists the account directory with pagination, optional status
filtering (comma-separated), and a free-text search over email and display
name.

Request:
  - page, limit: int (Query)
  - status: string (Query, e.g. "active,suspended")
  - q: string (Query)

Response:
  - 200: []AdminView with pagination metadata
  - 400: Validation: Unknown status value
  - 403: ErrForbidden: Caller lacks accounts:view
*/
func (handler *Handler) listAccounts(writer http.ResponseWriter, request *http.Request) {
	filter := ListFilter{
		Statuses: query.StringSlice(request.URL.Query().Get("status")),
		Search:   request.URL.Query().Get("q"),
		Page:     pagination.FromRequest(request),
	}

	for _, status := range filter.Statuses {
		if !auth.AccountStatus(status).IsValid() {
			respond.Error(writer, request, apperr.ValidationError("Unknown status", apperr.FieldError{
				Field:   "status",
				Message: "must be one of active, invited, suspended",
			}))
			return
		}
	}

	views, meta, err := handler.accountService.ListAccounts(request.Context(), filter)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, views, meta)
}

/*
GET /api/v1/accounts/{id}.

Description: Retrieves the operator view of a single account.

Response:
  - 200: AdminView
  - 404: ErrNotFound: Unknown or deleted account
*/
func (handler *Handler) getAccount(writer http.ResponseWriter, request *http.Request) {
	view, err := handler.accountService.GetAccount(request.Context(), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, view)
}

// # Mutation Endpoints

// updateAccountRequest defines the expected JSON payload for directory updates.
type updateAccountRequest struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
}

/*
PATCH /api/v1/accounts/{id}.

Description: Applies partial updates to an account's display name and role.

Request:
  - body: updateAccountRequest (Partial JSON)

Response:
  - 200: AdminView: The updated account
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 403: ErrForbidden: Self role change or missing permission
  - 404: ErrNotFound: Unknown account
*/
func (handler *Handler) updateAccount(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateAccountRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if input.DisplayName != nil {
		v.MinLen("display_name", *input.DisplayName, 2).MaxLen("display_name", *input.DisplayName, 50)
	}
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	update := UpdateInput{DisplayName: input.DisplayName}
	if input.Role != nil {
		role := sec.ParseRole(*input.Role)
		if role == "" {
			respond.Error(writer, request, apperr.ValidationError("Unknown role", apperr.FieldError{
				Field:   "role",
				Message: "must be one of user, admin, super_admin",
			}))
			return
		}
		update.Role = &role
	}

	view, err := handler.accountService.UpdateAccount(request.Context(), actorID, requestutil.Param(request, "id"), update)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, view)
}

// setStatusRequest defines the expected JSON payload for status changes.
type setStatusRequest struct {
	Status string `json:"status"`
}

/*
PUT /api/v1/accounts/{id}/status.

Description: Changes the lifecycle status of an account. Suspension revokes
every refresh token chain of the target.

Request:
  - body: setStatusRequest

Response:
  - 204: No Content: Status changed
  - 400: Validation: Unknown status value
  - 403: ErrForbidden: Self suspension or missing permission
  - 404: ErrNotFound: Unknown account
*/
func (handler *Handler) setStatus(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input setStatusRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	status := auth.AccountStatus(input.Status)
	if !status.IsValid() {
		respond.Error(writer, request, apperr.ValidationError("Unknown status", apperr.FieldError{
			Field:   "status",
			Message: "must be one of active, invited, suspended",
		}))
		return
	}

	if err := handler.accountService.SetStatus(request.Context(), actorID, requestutil.Param(request, "id"), status); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v1/accounts/{id}.

Description: Soft-deletes an account and forces a global sign-out.

Response:
  - 204: No Content: Account deleted
  - 403: ErrForbidden: Self deletion or missing permission
  - 404: ErrNotFound: Unknown account
*/
func (handler *Handler) deleteAccount(writer http.ResponseWriter, request *http.Request) {
	actorID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.DeleteAccount(request.Context(), actorID, requestutil.Param(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
