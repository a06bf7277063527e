package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

func activePromo() *models.PromoCode {
	return &models.PromoCode{
		Code:      "TEST-10",
		IsActive:  true,
		ValidFrom: time.Now().Add(-24 * time.Hour),
		ValidTo:   time.Now().Add(24 * time.Hour),
	}
}

func TestPackagePrice(t *testing.T) {
	price, err := PackagePrice(models.PackageStandard)
	require.NoError(t, err)
	assert.Equal(t, 199.00, price)

	_, err = PackagePrice(models.PackageType("golden"))
	assert.Error(t, err)
}

func TestValidatePromo(t *testing.T) {
	now := time.Now()

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, ValidatePromo(activePromo(), models.PackageBasic, now))
	})

	t.Run("inactive", func(t *testing.T) {
		p := activePromo()
		p.IsActive = false
		assert.Error(t, ValidatePromo(p, models.PackageBasic, now))
	})

	t.Run("expired", func(t *testing.T) {
		p := activePromo()
		p.ValidTo = now.Add(-time.Hour)
		assert.Error(t, ValidatePromo(p, models.PackageBasic, now))
	})

	t.Run("not yet valid", func(t *testing.T) {
		p := activePromo()
		p.ValidFrom = now.Add(time.Hour)
		assert.Error(t, ValidatePromo(p, models.PackageBasic, now))
	})

	t.Run("usage limit reached", func(t *testing.T) {
		p := activePromo()
		p.MaxUses = 5
		p.CurrentUses = 5
		assert.Error(t, ValidatePromo(p, models.PackageBasic, now))
	})

	t.Run("unlimited uses", func(t *testing.T) {
		p := activePromo()
		p.MaxUses = 0
		p.CurrentUses = 10000
		assert.NoError(t, ValidatePromo(p, models.PackageBasic, now))
	})

	t.Run("wrong package", func(t *testing.T) {
		p := activePromo()
		p.PackageType = models.PackagePremium
		assert.Error(t, ValidatePromo(p, models.PackageBasic, now))
		assert.NoError(t, ValidatePromo(p, models.PackagePremium, now))
	})
}

func TestApplyPromo(t *testing.T) {
	t.Run("percent", func(t *testing.T) {
		p := activePromo()
		p.DiscountPercent = 10
		assert.Equal(t, 179.10, ApplyPromo(199.00, p))
	})

	t.Run("flat", func(t *testing.T) {
		p := activePromo()
		p.DiscountAmount = 50
		assert.Equal(t, 149.00, ApplyPromo(199.00, p))
	})

	t.Run("never negative", func(t *testing.T) {
		p := activePromo()
		p.DiscountAmount = 500
		assert.Equal(t, 0.0, ApplyPromo(99.00, p))
	})

	t.Run("rounds to grosze", func(t *testing.T) {
		p := activePromo()
		p.DiscountPercent = 33
		got := ApplyPromo(99.00, p)
		assert.Equal(t, 66.33, got)
	})
}

func TestComputeAmount(t *testing.T) {
	now := time.Now()

	amount, err := ComputeAmount(models.PackagePremium, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 399.00, amount)

	p := activePromo()
	p.DiscountPercent = 50
	amount, err = ComputeAmount(models.PackagePremium, p, now)
	require.NoError(t, err)
	assert.Equal(t, 199.50, amount)

	p.IsActive = false
	_, err = ComputeAmount(models.PackagePremium, p, now)
	assert.Error(t, err)
}

func TestAmountMatches(t *testing.T) {
	assert.True(t, AmountMatches(199.00, 199.00))
	assert.True(t, AmountMatches(199.004, 199.00))
	assert.True(t, AmountMatches(198.99, 199.00))
	assert.False(t, AmountMatches(198.00, 199.00))
	assert.False(t, AmountMatches(199.02, 199.00))
}
