package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

func TestAllowed(t *testing.T) {
	// Clients manage their own cases but never touch the panels.
	assert.True(t, Allowed(models.RoleClient, ResCases, ActWrite))
	assert.True(t, Allowed(models.RoleClient, ResPayments, ActWrite))
	assert.False(t, Allowed(models.RoleClient, ResOperatorPanel, ActManage))
	assert.False(t, Allowed(models.RoleClient, ResAdminPanel, ActManage))
	assert.False(t, Allowed(models.RoleClient, ResAnalyses, ActWrite))

	// Clients can re-trigger their own failed notifications.
	assert.True(t, Allowed(models.RoleClient, ResNotifications, ActWrite))

	// Operators run the panel but cannot administer users.
	assert.True(t, Allowed(models.RoleOperator, ResOperatorPanel, ActManage))
	assert.True(t, Allowed(models.RoleOperator, ResAnalyses, ActWrite))
	assert.False(t, Allowed(models.RoleOperator, ResAdminPanel, ActManage))
	assert.False(t, Allowed(models.RoleOperator, ResCases, ActWrite))

	// Admins get both panels.
	assert.True(t, Allowed(models.RoleAdmin, ResOperatorPanel, ActManage))
	assert.True(t, Allowed(models.RoleAdmin, ResAdminPanel, ActManage))

	// Unknown roles get nothing.
	assert.False(t, Allowed(models.Role("ghost"), ResCases, ActRead))
}
