package earnings

import "time"

// Split divides an unlock amount between creator and platform. The platform
// share rounds down, so the creator keeps the odd cent.
func Split(amountCents int64, feePercent int) (creatorCents, platformCents int64) {
	platformCents = amountCents * int64(feePercent) / 100
	creatorCents = amountCents - platformCents
	return creatorCents, platformCents
}

// WeekBounds returns the Monday-start week containing t as UTC dates
// (inclusive start and end). Accruals bucket into these for weekly payouts.
func WeekBounds(t time.Time) (weekStart, weekEnd time.Time) {
	t = t.UTC()
	wd := int(t.Weekday()) // Sunday == 0
	if wd == 0 {
		wd = 7
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(wd - 1))
	return start, start.AddDate(0, 0, 6)
}
