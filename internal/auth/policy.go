package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// The authorization policy is a single table keyed by (role, resource,
// action) instead of ad hoc per-router role checks.

// Resources.
const (
	ResCases         = "cases"
	ResDocuments     = "documents"
	ResPayments      = "payments"
	ResNotifications = "notifications"
	ResMessages      = "messages"
	ResAnalyses      = "analyses"
	ResOperatorPanel = "operator_panel"
	ResAdminPanel    = "admin_panel"
)

// Actions.
const (
	ActRead   = "read"
	ActWrite  = "write"
	ActManage = "manage"
)

type permission struct {
	resource string
	action   string
}

var rolePermissions = map[models.Role]map[permission]bool{
	models.RoleClient: {
		{ResCases, ActRead}:          true,
		{ResCases, ActWrite}:         true,
		{ResDocuments, ActRead}:      true,
		{ResDocuments, ActWrite}:     true,
		{ResPayments, ActRead}:       true,
		{ResPayments, ActWrite}:      true,
		{ResNotifications, ActRead}:  true,
		{ResNotifications, ActWrite}: true,
		{ResMessages, ActRead}:       true,
		{ResMessages, ActWrite}:      true,
		{ResAnalyses, ActRead}:       true,
	},
	models.RoleOperator: {
		{ResCases, ActRead}:           true,
		{ResDocuments, ActRead}:       true,
		{ResNotifications, ActRead}:   true,
		{ResNotifications, ActWrite}:  true,
		{ResNotifications, ActManage}: true,
		{ResMessages, ActRead}:        true,
		{ResMessages, ActWrite}:       true,
		{ResAnalyses, ActRead}:        true,
		{ResAnalyses, ActWrite}:       true,
		{ResOperatorPanel, ActRead}:   true,
		{ResOperatorPanel, ActWrite}:  true,
		{ResOperatorPanel, ActManage}: true,
	},
	models.RoleAdmin: {
		{ResCases, ActRead}:           true,
		{ResDocuments, ActRead}:       true,
		{ResNotifications, ActRead}:   true,
		{ResNotifications, ActWrite}:  true,
		{ResNotifications, ActManage}: true,
		{ResMessages, ActRead}:        true,
		{ResMessages, ActWrite}:       true,
		{ResAnalyses, ActRead}:        true,
		{ResAnalyses, ActWrite}:       true,
		{ResOperatorPanel, ActRead}:   true,
		{ResOperatorPanel, ActWrite}:  true,
		{ResOperatorPanel, ActManage}: true,
		{ResAdminPanel, ActRead}:      true,
		{ResAdminPanel, ActManage}:    true,
	},
}

// Allowed reports whether role may perform action on resource.
func Allowed(role models.Role, resource, action string) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return perms[permission{resource, action}]
}

// RequirePermission guards a route with the policy table. RequireAuth
// must run first so the role local is populated.
func RequirePermission(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !Allowed(models.Role(MustRole(c)), resource, action) {
			return fiber.ErrForbidden
		}
		return c.Next()
	}
}
