package models

// All returns every model, in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&ProviderProfile{},
		&PricingEntry{},
		&ServiceRequest{},
		&RequestLineItem{},
		&RequestInterest{},
		&RequestEvent{},
		&Payment{},
		&TrustScore{},
		&Review{},
		&Dispute{},
		&AuditEvent{},
	}
}
