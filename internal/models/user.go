package models

import "time"

type User struct {
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	DOB          string    `json:"dob,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Link         string    `json:"link,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is a user together with follow counts as seen by a viewer.
type Profile struct {
	User
	Followers   int  `json:"followers"`
	Following   int  `json:"following"`
	IsFollowing bool `json:"isFollowing"`
}

type FollowCounts struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}
