package models

import "strings"

// User is a player profile. This service only reads it.
type User struct {
	BaseModel

	DisplayName     string  `gorm:"column:display_name" json:"displayName"`
	FCMToken        string  `gorm:"column:fcm_token" json:"fcmToken,omitempty"`
	NTRPRating      float64 `gorm:"column:ntrp_rating;index" json:"ntrpRating"`
	SubAvailability bool    `gorm:"column:sub_availability;not null;default:false;index" json:"subAvailability"`
}

// Reachable reports whether the user has a delivery token.
func (u *User) Reachable() bool {
	return u != nil && strings.TrimSpace(u.FCMToken) != ""
}
