// Package chatclient is the embeddable chat core consumed by UI shells:
// conversation discovery, transcript loading, and a realtime channel,
// orchestrated by a Controller that owns all chat UI state.
package chatclient

import "time"

// ChatUser identifies a conversation counterpart. UniqueID is the opaque
// room token that addresses the history endpoint and the realtime
// channel; the numeric id never appears in a URL.
type ChatUser struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	UniqueID    string  `json:"unique_id"`
	BloodGroup  string  `json:"blood_group,omitempty"`
	LastMessage *string `json:"last_message"`
	UnreadCount int     `json:"unread_count"`
}

// Directory holds the two role partitions. They are independent sets: a
// counterpart can appear in both when the relationship is reciprocal.
type Directory struct {
	AsRequester []ChatUser `json:"as_requester"`
	AsDonor     []ChatUser `json:"as_donor"`
}

// Message is the normalized transcript entry. History rows and realtime
// frames arrive in different wire shapes and both decode into this.
type Message struct {
	SenderID  int64     `json:"sender_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func emptyDirectory() Directory {
	return Directory{
		AsRequester: []ChatUser{},
		AsDonor:     []ChatUser{},
	}
}
