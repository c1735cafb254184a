package domain

import "time"

const DefaultLanguage = "en"

// User is the slice of the user-management record this service reads.
type User struct {
	ID         string    `bson:"_id" json:"_id"`
	FullName   string    `bson:"fullName" json:"fullName"`
	Email      string    `bson:"email" json:"email"`
	ProfilePic string    `bson:"profilePic,omitempty" json:"profilePic,omitempty"`
	Language   string    `bson:"language,omitempty" json:"language,omitempty"`
	Password   string    `bson:"password,omitempty" json:"-"`
	CreatedAt  time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// PreferredLanguage returns the user's language tag or fallback when unset.
func (u *User) PreferredLanguage(fallback string) string {
	if u == nil || u.Language == "" {
		if fallback == "" {
			return DefaultLanguage
		}
		return fallback
	}
	return u.Language
}
