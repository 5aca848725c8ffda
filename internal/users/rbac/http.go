// Copyright (c) 2026 Inkframe. All rights reserved.

/*
Package rbac provides the HTTP delivery layer for permissions.

# Endpoint Groups

  - /my-menus, /my-permissions, /my-actions : Self-service reads, any
    authenticated user. What can I do, what navigation do I see.
  - /roles, /menus, /permissions/* : Administration of the permission graph.
    Each endpoint is gated by the resolver itself, on the "roles", "menus",
    or "permissions" menu codes, so access to permission administration is
    managed with the same matrix it administers.
*/
package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkframe/inkframe/internal/platform/apperr"
	"github.com/inkframe/inkframe/internal/platform/middleware"
	requestutil "github.com/inkframe/inkframe/internal/platform/request"
	"github.com/inkframe/inkframe/internal/platform/respond"
	"github.com/inkframe/inkframe/internal/platform/sec"
	"github.com/inkframe/inkframe/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements permission-related HTTP endpoints.
type Handler struct {
	rbacService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{rbacService: service}
}

// SelfRoutes returns the self-service endpoints, mounted at /permissions.
//
// # Endpoints
//   - GET /my-menus?locale=   : Filtered, localized navigation tree.
//   - GET /my-permissions     : Fully resolved matrix.
//   - GET /my-actions?menu=   : Allowed actions on one menu node.
func (handler *Handler) SelfRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/my-menus", handler.myMenus)
	router.Get("/my-permissions", handler.myPermissions)
	router.Get("/my-actions", handler.myMenuActions)

	return router
}

// AdminRoutes returns the permission-graph administration endpoints,
// mounted at /rbac. Every route is gated by the resolver itself.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	// Role administration
	router.Group(func(r chi.Router) {
		r.With(handler.guard(MenuRoles, sec.ActionView)).Get("/roles", handler.listRoles)
		r.With(handler.guard(MenuRoles, sec.ActionCreate)).Post("/roles", handler.createRole)
		r.With(handler.guard(MenuRoles, sec.ActionUpdate)).Put("/roles/{code}", handler.updateRole)
		r.With(handler.guard(MenuRoles, sec.ActionDelete)).Delete("/roles/{code}", handler.deleteRole)
	})

	// Menu administration
	router.Group(func(r chi.Router) {
		r.With(handler.guard(MenuMenus, sec.ActionView)).Get("/menus", handler.listMenus)
		r.With(handler.guard(MenuMenus, sec.ActionCreate)).Post("/menus", handler.createMenu)
		r.With(handler.guard(MenuMenus, sec.ActionUpdate)).Put("/menus/{code}", handler.updateMenu)
		r.With(handler.guard(MenuMenus, sec.ActionDelete)).Delete("/menus/{code}", handler.deleteMenu)
	})

	// Grant & override administration
	router.Group(func(r chi.Router) {
		r.With(handler.guard(MenuPermissions, sec.ActionUpdate)).Put("/permissions/roles", handler.setRolePermission)
		r.With(handler.guard(MenuPermissions, sec.ActionDelete)).Delete("/permissions/roles", handler.deleteRolePermission)
		r.With(handler.guard(MenuPermissions, sec.ActionUpdate)).Put("/permissions/users", handler.setUserOverride)
		r.With(handler.guard(MenuPermissions, sec.ActionDelete)).Delete("/permissions/users", handler.deleteUserOverride)
	})

	return router
}

// guard builds the permission middleware for one admin menu/action pair.
func (handler *Handler) guard(menuCode string, action sec.Action) func(http.Handler) http.Handler {
	return middleware.RequirePermission(handler.rbacService, menuCode, action)
}

// # Request Payloads

type roleRequest struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type menuRequest struct {
	Code      string            `json:"code"`
	Name      string            `json:"name"`
	ParentID  *string           `json:"parent_id"`
	Labels    map[string]string `json:"labels"`
	SortOrder int               `json:"sort_order"`
}

type rolePermissionRequest struct {
	RoleCode string `json:"role_code"`
	MenuCode string `json:"menu_code"`
	Action   string `json:"action"`
	Allowed  bool   `json:"allowed"`
}

type userOverrideRequest struct {
	UserID   string `json:"user_id"`
	MenuCode string `json:"menu_code"`
	Action   string `json:"action"`
	Allowed  bool   `json:"allowed"`
}

// # Self-Service Handlers

/*
MyMenus returns the caller's filtered, localized navigation tree.

GET /api/v1/permissions/my-menus?locale=vi

Response:
  - 200: []MenuNode
*/
func (handler *Handler) myMenus(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	role := sec.ParseRole(claims.Role)

	locale := request.URL.Query().Get(FieldLocale)

	tree, err := handler.rbacService.UserMenus(request.Context(), claims.UserID, role, locale)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, tree)
}

/*
MyPermissions returns the caller's fully resolved matrix.

GET /api/v1/permissions/my-permissions

Response:
  - 200: PermissionSet
*/
func (handler *Handler) myPermissions(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	role := sec.ParseRole(claims.Role)

	matrix, err := handler.rbacService.UserPermissions(request.Context(), claims.UserID, role)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, matrix)
}

/*
MyMenuActions returns the caller's allowed actions on one menu node.

GET /api/v1/permissions/my-actions?menu=articles

Response:
  - 200: {menu_code, actions}
  - 404: ErrNotFound: Unknown menu
*/
func (handler *Handler) myMenuActions(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	role := sec.ParseRole(claims.Role)

	menuCode := request.URL.Query().Get("menu")
	if menuCode == "" {
		respond.Error(writer, request, apperr.ValidationError("Missing menu parameter",
			apperr.FieldError{Field: "menu", Message: "is required"}))
		return
	}

	actions, err := handler.rbacService.UserMenuActions(request.Context(), claims.UserID, role, menuCode)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if actions == nil {
		actions = []sec.Action{}
	}

	respond.OK(writer, map[string]any{
		FieldMenuCode: menuCode,
		"actions":     actions,
	})
}

// # Role Administration

func (handler *Handler) listRoles(writer http.ResponseWriter, request *http.Request) {
	roles, err := handler.rbacService.ListRoles(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, roles)
}

func (handler *Handler) createRole(writer http.ResponseWriter, request *http.Request) {
	var input roleRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCode, input.Code).
		Slug(FieldCode, input.Code).
		Required(FieldName, input.Name).
		MaxLen(FieldName, input.Name, 100)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.rbacService.CreateRole(request.Context(), RoleInput{
		Code:  input.Code,
		Name:  input.Name,
		Level: input.Level,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, role)
}

func (handler *Handler) updateRole(writer http.ResponseWriter, request *http.Request) {
	var input roleRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		MaxLen(FieldName, input.Name, 100)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	role, err := handler.rbacService.UpdateRole(request.Context(), RoleInput{
		Code:  requestutil.Param(request, "code"),
		Name:  input.Name,
		Level: input.Level,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, role)
}

func (handler *Handler) deleteRole(writer http.ResponseWriter, request *http.Request) {
	if err := handler.rbacService.DeleteRole(request.Context(), requestutil.Param(request, "code")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Menu Administration

func (handler *Handler) listMenus(writer http.ResponseWriter, request *http.Request) {
	menus, err := handler.rbacService.ListMenus(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, menus)
}

func (handler *Handler) createMenu(writer http.ResponseWriter, request *http.Request) {
	var input menuRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		MaxLen(FieldName, input.Name, 100)
	if input.Code != "" {
		validator.Slug(FieldCode, input.Code)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	menu, err := handler.rbacService.CreateMenu(request.Context(), MenuInput{
		Code:      input.Code,
		Name:      input.Name,
		ParentID:  input.ParentID,
		Labels:    input.Labels,
		SortOrder: input.SortOrder,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, menu)
}

func (handler *Handler) updateMenu(writer http.ResponseWriter, request *http.Request) {
	var input menuRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		MaxLen(FieldName, input.Name, 100)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	menu, err := handler.rbacService.UpdateMenu(request.Context(), MenuInput{
		Code:      requestutil.Param(request, "code"),
		Name:      input.Name,
		ParentID:  input.ParentID,
		Labels:    input.Labels,
		SortOrder: input.SortOrder,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, menu)
}

func (handler *Handler) deleteMenu(writer http.ResponseWriter, request *http.Request) {
	if err := handler.rbacService.DeleteMenu(request.Context(), requestutil.Param(request, "code")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Grant & Override Administration

func (handler *Handler) setRolePermission(writer http.ResponseWriter, request *http.Request) {
	var input rolePermissionRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	action, err := handler.validateCell(writer, request, input.RoleCode, FieldRoleCode, input.MenuCode, input.Action)
	if err != nil {
		return
	}

	err = handler.rbacService.SetRolePermission(request.Context(), RolePermission{
		RoleCode: input.RoleCode,
		MenuCode: input.MenuCode,
		Action:   action,
		Allowed:  input.Allowed,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func (handler *Handler) deleteRolePermission(writer http.ResponseWriter, request *http.Request) {
	var input rolePermissionRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	action, err := handler.validateCell(writer, request, input.RoleCode, FieldRoleCode, input.MenuCode, input.Action)
	if err != nil {
		return
	}

	if err := handler.rbacService.DeleteRolePermission(request.Context(), input.RoleCode, input.MenuCode, action); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func (handler *Handler) setUserOverride(writer http.ResponseWriter, request *http.Request) {
	var input userOverrideRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	action, err := handler.validateCell(writer, request, input.UserID, FieldUserID, input.MenuCode, input.Action)
	if err != nil {
		return
	}

	err = handler.rbacService.SetUserOverride(request.Context(), UserOverride{
		UserID:   input.UserID,
		MenuCode: input.MenuCode,
		Action:   action,
		Allowed:  input.Allowed,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func (handler *Handler) deleteUserOverride(writer http.ResponseWriter, request *http.Request) {
	var input userOverrideRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	action, err := handler.validateCell(writer, request, input.UserID, FieldUserID, input.MenuCode, input.Action)
	if err != nil {
		return
	}

	if err := handler.rbacService.DeleteUserOverride(request.Context(), input.UserID, input.MenuCode, action); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// validateCell validates the shared (subject, menu, action) triple of cell
// mutations, writing the validation response itself on failure.
func (handler *Handler) validateCell(writer http.ResponseWriter, request *http.Request, subject, subjectField, menuCode, rawAction string) (sec.Action, error) {
	validator := &validate.Validator{}
	validator.Required(subjectField, subject).
		Required(FieldMenuCode, menuCode).
		Required(FieldAction, rawAction)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return "", err
	}

	action, ok := sec.ParseAction(rawAction)
	if !ok {
		err := apperr.ValidationError("Unknown action", apperr.FieldError{Field: FieldAction, Message: "must be one of view, create, update, delete"})
		respond.Error(writer, request, err)
		return "", err
	}

	return action, nil
}
