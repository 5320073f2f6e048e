package models

import "time"

type Message struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"threadId"`
	SenderEmail string    `json:"senderEmail"`
	Text        string    `json:"text"`
	ClientID    string    `json:"clientId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Participant struct {
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
	ProfileImage string `json:"profileImage,omitempty"`
}

type Thread struct {
	ID           string      `json:"id"`
	Participants []string    `json:"participants"`
	OtherUser    Participant `json:"otherUser"`
	LastMessage  *Message    `json:"lastMessage,omitempty"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}
