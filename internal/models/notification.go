package models

import "time"

const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
	NotificationMessage = "message"
)

type Notification struct {
	ID             string    `json:"id"`
	RecipientEmail string    `json:"recipientEmail"`
	SenderEmail    string    `json:"senderEmail"`
	SenderName     string    `json:"senderName"`
	Type           string    `json:"type"`
	PostID         string    `json:"postId,omitempty"`
	ThreadID       string    `json:"threadId,omitempty"`
	Message        string    `json:"message"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}
