package store

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/floww-app/chatkit/internal/stats"
	"github.com/floww-app/chatkit/internal/transport"
	"github.com/floww-app/chatkit/internal/types"
)

// reconcileWindow bounds how far apart an optimistic entry and a server echo
// may be in time and still be treated as the same logical send. The backend
// does not echo a client correlation id, so identity is approximated from
// sender, content and timing.
const reconcileWindow = 10 * time.Second

// reconcile merges one inbound frame into the conversation without producing
// duplicates or losing optimistic context. First match wins:
//
//  1. exact server-id match: the frame was already applied, drop it;
//  2. optimistic match: promote the placeholder in place, keeping its
//     position in the list;
//  3. no match: append as a new received message.
//
// Existing entries are never reordered. Returns the affected message and
// false when the frame was discarded as a redelivery. Caller holds s.mu.
func (s *Store) reconcile(convId string, in transport.InboundMessage) (*types.Message, bool) {
	msgs := s.msgs[convId]

	for _, m := range msgs {
		if m.Id == in.MessageId {
			return nil, false
		}
	}

	// Candidates are scanned in list order, so two rapid sends with
	// identical text resolve to the earliest unmatched entry (FIFO) rather
	// than leaving the oldest stuck forever.
	for _, m := range msgs {
		if !m.Optimistic || m.OptimisticSender != in.Sender.EmployeeId {
			continue
		}

		if !withinWindow(m.Timestamp, in.CreatedAt) {
			continue
		}

		if m.OptimisticText != in.Content && !sharesFileBasename(m.FileUrls, in.FileUrls) {
			continue
		}

		m.Id = in.MessageId
		m.SenderId = in.Sender.EmployeeId
		m.SenderName = in.Sender.EmployeeName
		m.Text = in.Content
		m.Timestamp = in.CreatedAt
		m.FileUrls = in.FileUrls
		m.IsForwarded = in.IsForwarded
		m.Status = types.StatusDelivered
		m.Optimistic = false
		m.OptimisticSender = ""
		m.OptimisticText = ""

		s.stats.Incr(stats.OptimisticPromotions)
		return m, true
	}

	msg := messageFromFrame(convId, in, types.StatusReceived)
	s.msgs[convId] = append(msgs, msg)
	return msg, true
}

func withinWindow(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}

	return d < reconcileWindow
}

// sharesFileBasename reports whether two non-empty file URL sets share at
// least one basename. The server rewrites upload URLs, so only the trailing
// path segment is comparable.
func sharesFileBasename(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	names := make(map[string]struct{}, len(a))
	for _, u := range a {
		names[fileBasename(u)] = struct{}{}
	}

	for _, u := range b {
		if _, ok := names[fileBasename(u)]; ok {
			return true
		}
	}

	return false
}

func fileBasename(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}

	return path.Base(u)
}

func messageFromFrame(convId string, in transport.InboundMessage, status types.MessageStatus) *types.Message {
	msg := &types.Message{
		Id:                 in.MessageId,
		ConversationId:     convId,
		SenderId:           in.Sender.EmployeeId,
		SenderName:         in.Sender.EmployeeName,
		Text:               in.Content,
		Timestamp:          in.CreatedAt,
		Status:             status,
		FileUrls:           in.FileUrls,
		IsForwarded:        in.IsForwarded,
		OriginalSenderName: in.OriginalSenderName,
	}

	if in.ReplyToMessage != nil {
		msg.ReplyTo = &types.ReplyRef{
			Id:         in.ReplyToMessage.MessageId,
			Text:       in.ReplyToMessage.Content,
			SenderName: in.ReplyToMessage.SenderName,
		}
	} else if in.ReplyToMessageId != "" {
		msg.ReplyTo = &types.ReplyRef{Id: in.ReplyToMessageId}
	}

	if in.Poll != nil {
		msg.Poll = pollFromPayload(in.Poll)
	}

	return msg
}

func pollFromPayload(p *transport.PollPayload) *types.Poll {
	poll := &types.Poll{
		Question:             p.Question,
		Options:              p.Options,
		Votes:                make(map[int][]string, len(p.Votes)),
		AllowMultipleAnswers: p.AllowMultipleAnswers,
	}

	for key, voters := range p.Votes {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(p.Options) {
			continue
		}
		poll.Votes[idx] = voters
	}

	return poll
}
