package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct(t *testing.T) {
	valid := bookingInput("carol@test.com")
	require.NoError(t, validateStruct(valid))

	tests := []struct {
		name    string
		mutate  func(in *CreateRequestInput)
		field   string
		message string
	}{
		{
			name:    "missing name",
			mutate:  func(in *CreateRequestInput) { in.CustomerName = "" },
			field:   "customer_name",
			message: "customer_name is required",
		},
		{
			name:    "bad email",
			mutate:  func(in *CreateRequestInput) { in.CustomerEmail = "carol" },
			field:   "customer_email",
			message: "customer_email must be a valid email address",
		},
		{
			name:    "bad date",
			mutate:  func(in *CreateRequestInput) { in.PreferredDate = "06/01/2030" },
			field:   "preferred_date",
			message: "preferred_date must be a date in YYYY-MM-DD format",
		},
		{
			name:    "no items",
			mutate:  func(in *CreateRequestInput) { in.Items = nil },
			field:   "selected_items",
			message: "selected_items is required",
		},
		{
			name:    "empty items",
			mutate:  func(in *CreateRequestInput) { in.Items = []LineItemInput{} },
			field:   "selected_items",
			message: "selected_items must contain at least 1 entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := bookingInput("carol@test.com")
			tt.mutate(&in)
			svcErr := requireCode(t, validateStruct(in), "VALIDATION_ERROR", 400)
			assert.Equal(t, tt.field, svcErr.Details["field"])
			assert.Equal(t, tt.message, svcErr.Message)
		})
	}
}

func TestValidateStruct_ItemIndex(t *testing.T) {
	in := bookingInput("carol@test.com")
	in.Items[1].Quantity = 0

	svcErr := requireCode(t, validateStruct(in), "VALIDATION_ERROR", 400)
	assert.Equal(t, "selected_items[1].quantity", svcErr.Details["field"])
	assert.Equal(t, 1, svcErr.Details["item_index"])
	assert.Equal(t, "selected_items[1].quantity must be greater than 0", svcErr.Message)
}

func TestItemIndex(t *testing.T) {
	idx, ok := itemIndex("selected_items[12].category")
	assert.True(t, ok)
	assert.Equal(t, 12, idx)

	_, ok = itemIndex("customer_name")
	assert.False(t, ok)

	_, ok = itemIndex("selected_items[x].category")
	assert.False(t, ok)
}
