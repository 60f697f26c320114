package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allPaymentStatuses = []PaymentStatus{PaymentPending, PaymentInEscrow, PaymentReleased, PaymentRefunded}

func TestValidateTransition_Table(t *testing.T) {
	type key struct{ from, to PaymentStatus }
	adminRequired := map[key]bool{
		{PaymentPending, PaymentInEscrow}:  true,
		{PaymentPending, PaymentRefunded}:  true,
		{PaymentInEscrow, PaymentReleased}: false,
		{PaymentInEscrow, PaymentRefunded}: true,
	}

	for _, from := range allPaymentStatuses {
		for _, to := range allPaymentStatuses {
			needsAdmin, listed := adminRequired[key{from, to}]

			asAdmin := ValidateTransition(from, to, true)
			asSystem := ValidateTransition(from, to, false)

			if !listed {
				assert.False(t, asAdmin.Valid, "%s -> %s must be invalid", from, to)
				assert.False(t, asSystem.Valid, "%s -> %s must be invalid", from, to)
				assert.Equal(t, CodeInvalidTransition, asAdmin.Code)
				assert.Contains(t, asAdmin.Reason, "invalid transition")
				continue
			}

			assert.True(t, asAdmin.Valid, "%s -> %s must be valid for admins", from, to)
			assert.Equal(t, needsAdmin, asAdmin.RequiresAdmin)
			if needsAdmin {
				assert.False(t, asSystem.Valid, "%s -> %s must require admin", from, to)
				assert.Equal(t, CodeAdminRequired, asSystem.Code)
				assert.Contains(t, asSystem.Reason, "requires admin privileges")
			} else {
				assert.True(t, asSystem.Valid, "%s -> %s must be valid without admin", from, to)
			}
		}
	}
}

func TestPaymentStatus_IsTerminal(t *testing.T) {
	assert.False(t, PaymentPending.IsTerminal())
	assert.False(t, PaymentInEscrow.IsTerminal())
	assert.True(t, PaymentReleased.IsTerminal())
	assert.True(t, PaymentRefunded.IsTerminal())
}

func TestIsValidPaymentMethod(t *testing.T) {
	assert.True(t, IsValidPaymentMethod(MethodCard))
	assert.True(t, IsValidPaymentMethod(MethodCash))
	assert.False(t, IsValidPaymentMethod("bitcoin"))
}
