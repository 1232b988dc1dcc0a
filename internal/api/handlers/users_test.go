package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/auth"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/testutil"
)

func TestUserHandler_List(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		query  string
		status int
		total  int64
	}{
		{"all", "", http.StatusOK, 2},
		{"organization", "?organization_id=" + env.Org.ID.String(), http.StatusOK, 1},
		{"super admins", "?is_super_admin=true", http.StatusOK, 1},
		{"active", "?is_active=true", http.StatusOK, 2},
		{"bad organization id", "?organization_id=acme", http.StatusBadRequest, 0},
		{"bad flag", "?is_active=maybe", http.StatusBadRequest, 0},
		{"unknown sort column", "?sort_by=password_hash", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.asAdmin(t, "GET", "/api/v1/admin/users"+tt.query, nil)
			testutil.AssertStatus(t, rr, tt.status)
			if tt.status != http.StatusOK {
				return
			}

			var resp struct {
				Data  []dto.AdminUserDTO `json:"data"`
				Total int64              `json:"total"`
			}
			testutil.ParseJSONResponse(t, rr, &resp)
			assert.Equal(t, tt.total, resp.Total)
			for _, u := range resp.Data {
				require.NotNil(t, u.Organization)
			}
		})
	}

	t.Run("password hashes are never returned", func(t *testing.T) {
		rr := env.asAdmin(t, "GET", "/api/v1/admin/users/"+env.User.ID.String(), nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("tenants are refused", func(t *testing.T) {
		rr := env.asTenant(t, "GET", "/api/v1/admin/users", nil)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestUserHandler_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/admin/users/" + env.User.ID.String()

	t.Run("disable blocks sign in", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", path+"/disable", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var user dto.AdminUserDTO
		testutil.ParseJSONResponse(t, rr, &user)
		assert.False(t, user.IsActive)

		rr = env.do(t, "POST", "/api/v1/auth/login", map[string]string{
			"email":    env.User.Email,
			"password": "testpassword123",
		}, "")
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("disable twice", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", path+"/disable", nil)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("enable", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", path+"/enable", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("grant and revoke super admin", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", path+"/grant-super-admin", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = env.asAdmin(t, "GET", "/api/v1/admin/users/super-admins", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
		var resp struct {
			Data []dto.AdminUserDTO `json:"data"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Len(t, resp.Data, 2)

		rr = env.asAdmin(t, "POST", path+"/revoke-super-admin", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var user dto.AdminUserDTO
		testutil.ParseJSONResponse(t, rr, &user)
		assert.False(t, user.IsSuperAdmin)
	})

	t.Run("operators cannot disable themselves", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", "/api/v1/admin/users/"+env.Admin.ID.String()+"/disable", nil)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("reset password", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", path+"/reset-password", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

		var resp dto.ResetPasswordResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotEmpty(t, resp.TemporaryPassword)

		var stored models.User
		require.NoError(t, env.DB.First(&stored, "id = ?", env.User.ID).Error)
		assert.True(t, auth.CheckPassword(resp.TemporaryPassword, stored.PasswordHash))
	})

	t.Run("unknown user", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", "/api/v1/admin/users/"+env.Org.ID.String()+"/enable", nil)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("every change is audited", func(t *testing.T) {
		logs, err := env.Recorder.FindAll(testutil.TestContext(t), audit.Filter{TargetType: audit.TargetUser}, 1, 50)
		require.NoError(t, err)

		var actions []string
		for _, l := range logs.Data {
			actions = append(actions, l.Action)
			assert.Equal(t, env.Admin.ID, l.AdminUserID)
		}
		assert.ElementsMatch(t, []string{
			audit.ActionUserDisable,
			audit.ActionUserEnable,
			audit.ActionUserGrantSuperAdmin,
			audit.ActionUserRevokeSuperAdmin,
			audit.ActionUserResetPassword,
		}, actions)
	})
}
