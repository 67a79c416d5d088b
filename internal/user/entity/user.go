package entity

import "time"

// User represents an account row in the `users` table. Creator accounts carry
// a public display name and a payout phone number; viewer accounts leave them
// empty. Rows are soft-disabled via status, never deleted.
type User struct {
	ID            int64      `db:"id"`
	Username      string     `db:"username"`
	Email         string     `db:"email"`
	PasswordHash  string     `db:"password_hash"`
	IsCreator     bool       `db:"is_creator"`
	CreatorName   *string    `db:"creator_name"`
	PhoneNumber   *string    `db:"phone_number"`
	Status        string     `db:"status"` // active / disabled
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeactivatedAt *time.Time `db:"deactivated_at"`
}

// Profile is the public projection returned by the API; it never carries
// credentials.
type Profile struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsCreator   bool      `json:"is_creator"`
	CreatorName *string   `json:"creator_name,omitempty"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileOf builds the public projection for a user row.
func ProfileOf(u *User) Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsCreator:   u.IsCreator,
		CreatorName: u.CreatorName,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
	}
}
