// Package domain defines the persisted records shared by the bot and the
// checkout confirmation service.
package domain

import "time"

// User represents a Telegram user that has interacted with the bot.
type User struct {
	UserID     int64     `bson:"user_id" json:"user_id"`
	FirstName  string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName   string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Username   string    `bson:"username,omitempty" json:"username,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
	LastSeenAt time.Time `bson:"last_seen_at" json:"last_seen_at"`
}
