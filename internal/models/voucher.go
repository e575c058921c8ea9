package models

import "time"

// DiscountVoucher represents a percentage discount code with a usage limit.
// UsedCount only moves forward through the atomic increment in the voucher
// repository; it is never decremented here.
type DiscountVoucher struct {
	Code       string     `json:"code" db:"code"`
	Percent    float64    `json:"percent" db:"percent"`
	UsedCount  int        `json:"used_count" db:"used_count"`
	UsageLimit int        `json:"usage_limit" db:"usage_limit"`
	TripID     *string    `json:"trip_id,omitempty" db:"trip_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsExpired checks whether the voucher has passed its expiry
func (v *DiscountVoucher) IsExpired() bool {
	return v.ExpiresAt != nil && v.ExpiresAt.Before(time.Now())
}

// IsExhausted checks whether the voucher has no uses left
func (v *DiscountVoucher) IsExhausted() bool {
	return v.UsedCount >= v.UsageLimit
}

// AppliesTo checks whether the voucher is valid for the given trip
func (v *DiscountVoucher) AppliesTo(tripID string) bool {
	return v.TripID == nil || *v.TripID == tripID
}

// PriceQuote is the pricing snapshot computed for a quantity of tickets,
// optionally discounted. Amounts are rounded to 2 decimal places.
type PriceQuote struct {
	TripID          string  `json:"trip_id"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	BaseAmount      float64 `json:"base_amount"`
	DiscountAmount  float64 `json:"discount_amount"`
	FinalAmount     float64 `json:"final_amount"`
	DiscountPercent float64 `json:"discount_percent"`
	VoucherCode     *string `json:"voucher_code,omitempty"`
	Currency        string  `json:"currency"`
}
