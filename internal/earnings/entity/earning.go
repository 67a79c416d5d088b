package entity

import "time"

// Earning is one creator accrual, written in the same transaction as the
// access grant it pays for. The unique transaction_ref means an unlock can
// never accrue twice.
type Earning struct {
	ID                 int64     `db:"id" json:"id"`
	TransactionRef     string    `db:"transaction_ref" json:"transaction_ref"`
	CreatorID          int64     `db:"creator_id" json:"creator_id"`
	ContentID          string    `db:"content_id" json:"content_id"`
	CreatorShareCents  int64     `db:"creator_share_cents" json:"creator_share_cents"`
	PlatformShareCents int64     `db:"platform_share_cents" json:"platform_share_cents"`
	WeekStart          time.Time `db:"week_start" json:"week_start"`
	WeekEnd            time.Time `db:"week_end" json:"week_end"`
	PaidOut            bool      `db:"paid_out" json:"paid_out"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// WeeklyCreatorTotal aggregates one creator's unpaid accruals for a week.
type WeeklyCreatorTotal struct {
	CreatorID    int64   `db:"creator_id" json:"creator_id"`
	CreatorName  string  `db:"creator_name" json:"creator_name"`
	PhoneNumber  *string `db:"phone_number" json:"phone_number,omitempty"`
	TotalCents   int64   `db:"total_cents" json:"total_cents"`
	ContentCount int64   `db:"content_count" json:"content_count"`
}

// ExportRow is one line of the weekly payout spreadsheet.
type ExportRow struct {
	CreatorName  string    `db:"creator_name"`
	PhoneNumber  *string   `db:"phone_number"`
	ContentTitle string    `db:"content_title"`
	AmountCents  int64     `db:"amount_cents"`
	WeekStart    time.Time `db:"week_start"`
	WeekEnd      time.Time `db:"week_end"`
}
