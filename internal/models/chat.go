package models

import "time"

// ChatRoom links the requester of a blood request with one accepted donor.
// UniqueID is the stable opaque token that addresses the room's history
// endpoint and websocket channel.
type ChatRoom struct {
	ID          int64     `json:"id"`
	UniqueID    string    `json:"unique_id"`
	RequestID   int64     `json:"request_id"`
	RequesterID int64     `json:"requester_id"`
	DonorID     int64     `json:"donor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"-"`
	Sender    Identity  `json:"sender"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSummary is one directory row: the counterpart of a room as
// seen by the current user, annotated with preview data.
type ConversationSummary struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	UniqueID    string  `json:"unique_id"`
	BloodGroup  string  `json:"blood_group,omitempty"`
	LastMessage *string `json:"last_message"`
	UnreadCount int     `json:"unread_count"`
}

// ConversationDirectory partitions conversations by relationship role.
// The partitions are independent sets; a reciprocal pair of users can
// appear in both.
type ConversationDirectory struct {
	AsRequester []ConversationSummary `json:"as_requester"`
	AsDonor     []ConversationSummary `json:"as_donor"`
}
