// Package domain contains core business types and interfaces.
//
// This file defines entitlement types for metering the daily quote feature
// by subscription tier.
package domain

import "time"

// DailyQuoteLimit is the number of AI quotes a free user may generate per
// UTC calendar day. Premium users are unlimited.
const DailyQuoteLimit = 3

// QuoteDay formats a point in time as the UTC calendar day used for quota
// bookkeeping. All quota comparisons run against this representation so that
// a user in any timezone rolls over at the same instant.
func QuoteDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// QuotaUsage reports a user's standing against the daily quote limit.
type QuotaUsage struct {
	Used      int
	Limit     int
	Unlimited bool
}

// Remaining returns how many quotes the user may still generate today.
// Unlimited usage reports -1.
func (q QuotaUsage) Remaining() int {
	if q.Unlimited {
		return -1
	}
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}
