package types

import (
	"time"
)

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

type MessageStatus string

const (
	// StatusSending marks an optimistic message awaiting server confirmation.
	StatusSending MessageStatus = "sending"
	// StatusSent marks a message accepted by the transport but not yet echoed.
	StatusSent MessageStatus = "sent"
	// StatusDelivered marks a message confirmed by a server echo.
	StatusDelivered MessageStatus = "delivered"
	// StatusReceived marks a message originated by another participant.
	StatusReceived MessageStatus = "received"
	// StatusFailed marks a message that could not be delivered.
	StatusFailed MessageStatus = "failed"
)

type Employee struct {
	Id                string `json:"employee_id"`
	Name              string `json:"employee_name"`
	ProfilePictureUrl string `json:"profile_picture_link,omitempty"`
	JobTitle          string `json:"job_title,omitempty"`
}

type Participant struct {
	Id          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarUrl   string `json:"avatar_url,omitempty"`
	IsAdmin     bool   `json:"is_admin,omitempty"`
}

type LastMessage struct {
	Id        string    `json:"id"`
	SenderId  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ReplyRef is a snapshot of the replied-to message, not a live link. The
// referenced message may later be edited or deleted without affecting it.
type ReplyRef struct {
	Id         string `json:"id"`
	Text       string `json:"text"`
	SenderName string `json:"sender_name"`
}

type Poll struct {
	Question             string           `json:"question"`
	Options              []string         `json:"options"`
	Votes                map[int][]string `json:"votes"`
	AllowMultipleAnswers bool             `json:"allow_multiple_answers"`
}

type Message struct {
	Id                 string        `json:"id"`
	ConversationId     string        `json:"conversation_id"`
	SenderId           string        `json:"sender_id"`
	SenderName         string        `json:"sender_name,omitempty"`
	Text               string        `json:"text"`
	Timestamp          time.Time     `json:"timestamp"`
	Status             MessageStatus `json:"status"`
	FileUrls           []string      `json:"file_urls,omitempty"`
	ReplyTo            *ReplyRef     `json:"reply_to,omitempty"`
	Edited             bool          `json:"edited,omitempty"`
	EditedAt           time.Time     `json:"edited_at,omitempty"`
	IsForwarded        bool          `json:"is_forwarded,omitempty"`
	OriginalSenderName string        `json:"original_sender_name,omitempty"`
	Poll               *Poll         `json:"poll,omitempty"`

	// Optimistic bookkeeping used by the reconciler to match a server echo
	// against a locally created placeholder. Never serialized.
	Optimistic       bool   `json:"-"`
	OptimisticSender string `json:"-"`
	OptimisticText   string `json:"-"`
}

type Conversation struct {
	Id                 string           `json:"id"`
	Type               ConversationType `json:"type"`
	Name               string           `json:"name"`
	Icon               string           `json:"icon,omitempty"`
	Participants       []string         `json:"participants"`
	ParticipantDetails []Participant    `json:"participant_details,omitempty"`
	LastMessage        *LastMessage     `json:"last_message,omitempty"`
	UnreadCount        int              `json:"unread_count"`
	Admins             []string         `json:"admins,omitempty"`
	CreatedBy          string           `json:"created_by,omitempty"`
	CreatedAt          time.Time        `json:"created_at,omitempty"`
	UpdatedAt          time.Time        `json:"updated_at,omitempty"`
}
