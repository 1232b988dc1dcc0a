package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/promotions"
	"github.com/vizora/entitlements/internal/testutil"
)

func TestPromotionHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	plan := testutil.CreateTestPlan(t, env.DB, "pro", 25)

	t.Run("normalizes the code and scopes plans", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", "/api/v1/admin/promotions", map[string]interface{}{
			"code":           "  launch50 ",
			"name":           "Launch",
			"discount_type":  "percentage",
			"discount_value": 50,
			"plan_ids":       []string{plan.ID.String()},
		})
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var promo models.Promotion
		testutil.ParseJSONResponse(t, rr, &promo)
		assert.Equal(t, "LAUNCH50", promo.Code)
		assert.Equal(t, 1, promo.MaxPerCustomer)
		require.Len(t, promo.ApplicablePlans, 1)
		assert.Equal(t, plan.ID, promo.ApplicablePlans[0].PlanID)
	})

	t.Run("duplicate code", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", "/api/v1/admin/promotions", map[string]interface{}{
			"code":           "LAUNCH50",
			"name":           "Again",
			"discount_type":  "percentage",
			"discount_value": 10,
		})
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("percentage above 100", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", "/api/v1/admin/promotions", map[string]interface{}{
			"code":           "TOOMUCH",
			"name":           "Too much",
			"discount_type":  "percentage",
			"discount_value": 150,
		})
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("invalid plan id format", func(t *testing.T) {
		rr := env.asAdmin(t, "POST", "/api/v1/admin/promotions", map[string]interface{}{
			"code":           "SCOPED",
			"name":           "Scoped",
			"discount_type":  "percentage",
			"discount_value": 5,
			"plan_ids":       []string{"nope"},
		})
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "plan_ids")
	})

	t.Run("tenant cannot create", func(t *testing.T) {
		rr := env.asTenant(t, "POST", "/api/v1/admin/promotions", map[string]interface{}{
			"code": "SNEAKY", "name": "Sneaky", "discount_type": "percentage", "discount_value": 100,
		})
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestPromotionHandler_ValidateAndRedeem(t *testing.T) {
	env := newTestEnv(t)
	pro := testutil.CreateTestPlan(t, env.DB, "pro", 25)
	other := testutil.CreateTestPlan(t, env.DB, "basic", 5)

	promo := testutil.CreateTestPromotion(t, env.DB, "SPRING20", func(p *models.Promotion) {
		p.DiscountValue = 20
	})
	require.NoError(t, env.DB.Create(&models.PlanPromotion{PromotionID: promo.ID, PlanID: pro.ID}).Error)

	testutil.CreateTestPromotion(t, env.DB, "LATER", func(p *models.Promotion) {
		p.StartsAt = time.Now().Add(24 * time.Hour)
	})

	tests := []struct {
		name  string
		body  map[string]interface{}
		valid bool
		error string
	}{
		{"valid for plan", map[string]interface{}{"code": "spring20", "plan_id": pro.ID.String()}, true, ""},
		{"valid without plan", map[string]interface{}{"code": "SPRING20"}, true, ""},
		{"wrong plan", map[string]interface{}{"code": "SPRING20", "plan_id": other.ID.String()}, false, promotions.MsgPlanNotEligible},
		{"unknown code", map[string]interface{}{"code": "NOPE"}, false, promotions.MsgNotFound},
		{"not started", map[string]interface{}{"code": "LATER"}, false, promotions.MsgNotStarted},
	}
	for _, tt := range tests {
		t.Run("validate "+tt.name, func(t *testing.T) {
			rr := env.asTenant(t, "POST", "/api/v1/billing/promotions/validate", tt.body)
			testutil.AssertStatus(t, rr, http.StatusOK)

			var result promotions.ValidationResult
			testutil.ParseJSONResponse(t, rr, &result)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.error, result.Error)
			if tt.valid {
				require.NotNil(t, result.Promotion)
				assert.Equal(t, 20.0, result.Promotion.DiscountValue)
			}
		})
	}

	t.Run("validate requires a code", func(t *testing.T) {
		rr := env.asTenant(t, "POST", "/api/v1/billing/promotions/validate", map[string]interface{}{})
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("redeem once", func(t *testing.T) {
		rr := env.asTenant(t, "POST", "/api/v1/billing/promotions/redeem", map[string]interface{}{
			"code": "SPRING20", "discount_applied": 980,
		})
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var redemption models.PromotionRedemption
		testutil.ParseJSONResponse(t, rr, &redemption)
		assert.Equal(t, env.Org.ID, redemption.OrganizationID)
		assert.Equal(t, int64(980), redemption.DiscountApplied)
	})

	t.Run("second redemption is refused", func(t *testing.T) {
		rr := env.asTenant(t, "POST", "/api/v1/billing/promotions/redeem", map[string]interface{}{
			"code": "SPRING20", "discount_applied": 980,
		})
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, promotions.MsgAlreadyUsed, resp.Error)
	})

	t.Run("validate now reports already used", func(t *testing.T) {
		rr := env.asTenant(t, "POST", "/api/v1/billing/promotions/validate", map[string]interface{}{"code": "SPRING20"})
		var result promotions.ValidationResult
		testutil.ParseJSONResponse(t, rr, &result)
		assert.False(t, result.Valid)
		assert.Equal(t, promotions.MsgAlreadyUsed, result.Error)
	})

	t.Run("redeem works for a lapsed subscription", func(t *testing.T) {
		require.NoError(t, env.DB.Model(env.Org).Update("subscription_status", models.SubscriptionCanceled).Error)
		testutil.CreateTestPromotion(t, env.DB, "WINBACK")

		rr := env.asTenant(t, "POST", "/api/v1/billing/promotions/redeem", map[string]interface{}{
			"code": "WINBACK", "discount_applied": 0,
		})
		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	t.Run("admin sees redemptions", func(t *testing.T) {
		rr := env.asAdmin(t, "GET", "/api/v1/admin/promotions/"+promo.ID.String()+"/redemptions", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Data []models.PromotionRedemption `json:"data"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Len(t, resp.Data, 1)
	})

	t.Run("redeemed promotion cannot be deleted", func(t *testing.T) {
		rr := env.asAdmin(t, "DELETE", "/api/v1/admin/promotions/"+promo.ID.String(), nil)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

func TestPromotionHandler_UpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	promo := testutil.CreateTestPromotion(t, env.DB, "SUMMER")

	t.Run("update", func(t *testing.T) {
		rr := env.asAdmin(t, "PATCH", "/api/v1/admin/promotions/"+promo.ID.String(), map[string]interface{}{
			"discount_value":  15,
			"max_redemptions": 100,
		})
		testutil.AssertStatus(t, rr, http.StatusOK)

		var updated models.Promotion
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Equal(t, 15.0, updated.DiscountValue)
		require.NotNil(t, updated.MaxRedemptions)
		assert.Equal(t, 100, *updated.MaxRedemptions)
	})

	t.Run("clear cap", func(t *testing.T) {
		rr := env.asAdmin(t, "PATCH", "/api/v1/admin/promotions/"+promo.ID.String(), map[string]interface{}{
			"max_redemptions":       5,
			"clear_max_redemptions": true,
		})
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		rr = env.asAdmin(t, "PATCH", "/api/v1/admin/promotions/"+promo.ID.String(), map[string]interface{}{
			"clear_max_redemptions": true,
		})
		testutil.AssertStatus(t, rr, http.StatusOK)

		var updated models.Promotion
		testutil.ParseJSONResponse(t, rr, &updated)
		assert.Nil(t, updated.MaxRedemptions)
	})

	t.Run("get", func(t *testing.T) {
		rr := env.asAdmin(t, "GET", "/api/v1/admin/promotions/"+promo.ID.String(), nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("delete", func(t *testing.T) {
		rr := env.asAdmin(t, "DELETE", "/api/v1/admin/promotions/"+promo.ID.String(), nil)
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		rr = env.asAdmin(t, "GET", "/api/v1/admin/promotions/"+promo.ID.String(), nil)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestPromotionHandler_BulkGenerate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.asAdmin(t, "POST", "/api/v1/admin/promotions/bulk-generate", map[string]interface{}{
		"prefix": "vip", "count": 5,
	})
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp dto.BulkGenerateResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, 5, resp.Count)
	for _, code := range resp.Codes {
		assert.Regexp(t, `^VIP-[0-9A-F]{8}$`, code)
	}

	var count int64
	require.NoError(t, env.DB.Model(&models.Promotion{}).Count(&count).Error)
	assert.Zero(t, count, "generated codes are not persisted")

	rr = env.asAdmin(t, "POST", "/api/v1/admin/promotions/bulk-generate", map[string]interface{}{
		"prefix": "vip", "count": 1001,
	})
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestPromotionHandler_RedeemRequiresOwnerOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateTestPromotion(t, env.DB, "MEMBERS")

	member := testutil.CreateTestUser(t, env.DB, env.Org)
	require.NoError(t, env.DB.Model(member).Update("role", "member").Error)
	member.Role = "member"
	token := testutil.GenerateTestToken(t, env.JWT, member)

	rr := env.do(t, "POST", "/api/v1/billing/promotions/redeem", map[string]interface{}{"code": "MEMBERS"}, token)
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = env.do(t, "POST", "/api/v1/billing/promotions/validate", map[string]interface{}{"code": "MEMBERS"}, token)
	testutil.AssertStatus(t, rr, http.StatusOK)
}
