package services

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	penaltyGraceHours = 2
	penaltyCapHours   = 24
)

// penaltyBand charges ratePercent of the amount for every delayed hour in (fromHour, toHour].
type penaltyBand struct {
	fromHour    int64
	toHour      int64
	ratePercent decimal.Decimal
}

var penaltyBands = []penaltyBand{
	{fromHour: 2, toHour: 4, ratePercent: decimal.RequireFromString("0.5")},
	{fromHour: 4, toHour: 8, ratePercent: decimal.RequireFromString("1.0")},
	{fromHour: 8, toHour: 24, ratePercent: decimal.RequireFromString("1.5")},
}

// DelayHours returns the submission delay in whole hours, rounded up. Early or on-time
// submissions yield zero or a negative value.
func DelayHours(dueDate, submittedAt time.Time) int64 {
	ms := submittedAt.Sub(dueDate).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return (ms + 3_599_999) / 3_600_000
}

// PenaltyPercent returns the accumulated penalty rate for a delay, after grace and cap.
func PenaltyPercent(delayHours int64) decimal.Decimal {
	if delayHours <= penaltyGraceHours {
		return decimal.Zero
	}
	if delayHours > penaltyCapHours {
		delayHours = penaltyCapHours
	}
	total := decimal.Zero
	for _, b := range penaltyBands {
		if delayHours <= b.fromHour {
			break
		}
		hours := min(delayHours, b.toHour) - b.fromHour
		total = total.Add(b.ratePercent.Mul(decimal.NewFromInt(hours)))
	}
	return total
}

// CalculatePenalty returns the late-delivery fee in cents for work due at dueDate and
// submitted at submittedAt on a contract of amountCents. Whole cents are two decimal places
// of the currency unit, so rounding to cents is rounding to 2 decimals.
func CalculatePenalty(dueDate, submittedAt time.Time, amountCents int64) int64 {
	pct := PenaltyPercent(DelayHours(dueDate, submittedAt))
	if pct.IsZero() || amountCents <= 0 {
		return 0
	}
	return decimal.NewFromInt(amountCents).Mul(pct).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}
