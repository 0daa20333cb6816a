package models

import "time"

// Account types known to the platform.
const (
	AccountTypePlayer = "Player"
	AccountTypeFan    = "Fan"
	AccountTypeTeam   = "Team"
	AccountTypeScout  = "Scout"
	AccountTypeAdmin  = "Admin"
)

// User is a platform user as seen by the messaging service. The record is
// owned by the user service; only identity and account type matter here.
type User struct {
	ID             string    `db:"id" json:"id"`
	FirstName      string    `db:"first_name" json:"firstName"`
	LastName       string    `db:"last_name" json:"lastName"`
	AccountType    string    `db:"account_type" json:"accountType"`
	ProfilePicture *string   `db:"profile_picture" json:"profilePicture,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
