package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/floww-app/chatkit/internal/types"
)

// FlexString decodes a field the backend serves either as a plain string or
// as an array of strings depending on the chat type. It is resolved to a
// canonical string once at ingestion and never carried further as an
// ambiguous shape.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		for _, v := range arr {
			if v != "" {
				*f = FlexString(v)
				return nil
			}
		}
		*f = ""
		return nil
	}

	// null or unexpected shape resolves to empty
	var null any
	if err := json.Unmarshal(data, &null); err == nil && null == nil {
		*f = ""
		return nil
	}

	return fmt.Errorf("unmarshal flex string: unexpected value %s", data)
}

func (f FlexString) String() string {
	return string(f)
}

// OutboundFrame is the client-to-server message envelope.
type OutboundFrame struct {
	Content          string   `json:"content"`
	SenderId         string   `json:"sender_id"`
	FileUrls         []string `json:"file_urls"`
	ReplyToMessageId *string  `json:"reply_to_message_id"`
}

type Sender struct {
	EmployeeId         string `json:"employee_id"`
	EmployeeName       string `json:"employee_name"`
	ProfilePictureLink string `json:"profile_picture_link,omitempty"`
	JobTitle           string `json:"job_title,omitempty"`
}

type ReplyToMessage struct {
	MessageId  string `json:"message_id"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
}

type PollPayload struct {
	Question             string              `json:"question"`
	Options              []string            `json:"options"`
	Votes                map[string][]string `json:"votes,omitempty"`
	AllowMultipleAnswers bool                `json:"allow_multiple_answers"`
}

// InboundMessage is the server-to-client message frame, delivered both over
// the WebSocket and in REST get_messages responses.
type InboundMessage struct {
	MessageId          string          `json:"message_id"`
	Content            string          `json:"content"`
	Sender             Sender          `json:"sender"`
	CreatedAt          time.Time       `json:"created_at"`
	FileUrls           []string        `json:"file_urls"`
	ReplyToMessageId   string          `json:"reply_to_message_id,omitempty"`
	ReplyToMessage     *ReplyToMessage `json:"reply_to_message,omitempty"`
	IsForwarded        bool            `json:"is_forwarded,omitempty"`
	OriginalSenderName string          `json:"original_sender_name,omitempty"`
	Type               string          `json:"type,omitempty"`
	Poll               *PollPayload    `json:"poll,omitempty"`
}

type RoomParticipant struct {
	EmployeeId         string `json:"employee_id"`
	EmployeeName       string `json:"employee_name"`
	ProfilePictureLink string `json:"profile_picture_link,omitempty"`
	IsAdmin            bool   `json:"is_admin,omitempty"`
}

// Room is the REST snapshot of a conversation.
type Room struct {
	RoomId       string            `json:"room_id"`
	RoomType     string            `json:"room_type"`
	RoomName     FlexString        `json:"room_name"`
	RoomIcon     FlexString        `json:"room_icon"`
	Participants []RoomParticipant `json:"participants"`
	Admins       []string          `json:"admins,omitempty"`
	LastMessage  *InboundMessage   `json:"last_message,omitempty"`
	UnreadCount  int               `json:"unread_count"`
	CreatedBy    string            `json:"created_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Event is the unit fanned out to message subscribers. Frames carry no room
// identifier on the wire since a channel is bound to a single room, so the
// channel tags each frame with its room before fan-out.
type Event struct {
	RoomId  string
	Message InboundMessage
}

// ConversationType maps the wire room_type to the store's type, defaulting
// unknown values to direct.
func (r Room) ConversationType() types.ConversationType {
	if r.RoomType == string(types.ConversationGroup) {
		return types.ConversationGroup
	}
	return types.ConversationDirect
}
