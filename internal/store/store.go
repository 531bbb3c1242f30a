package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/teris-io/shortid"

	"github.com/floww-app/chatkit/internal/stats"
	"github.com/floww-app/chatkit/internal/transport"
	"github.com/floww-app/chatkit/internal/types"
)

const (
	// editWindow bounds how long the local user may edit their own message.
	editWindow = 5 * time.Minute

	defaultPendingTimeout = 15 * time.Second
	defaultResyncInterval = 60 * time.Second
	defaultResyncLimit    = 3

	pendingSweepInterval = 5 * time.Second
)

// Transport is the slice of the transport client the store depends on.
type Transport interface {
	Send(content, senderId string, fileUrls []string, replyToId string) error
	ListAllRooms(ctx context.Context, lastCheckedAt time.Time) ([]transport.Room, error)
	GetRoomMessages(ctx context.Context, roomId string) ([]transport.InboundMessage, error)
	ForwardMessage(ctx context.Context, messageId string, roomIds []string) error
	SubscribeMessages() (<-chan transport.Event, func())
	SubscribeErrors() (<-chan error, func())
}

// Params configures a Store.
type Params struct {
	Transport   Transport
	LocalUserId string

	// PendingTimeout is how long an optimistic message may stay in the
	// sending state before it is marked failed. Defaults to 15s.
	PendingTimeout time.Duration
	// ResyncInterval is the period of the REST safety-net resync.
	// Defaults to 60s.
	ResyncInterval time.Duration
	// ResyncLimit bounds how many conversations one resync pass refreshes.
	// Defaults to 3.
	ResyncLimit int
}

// Store is the authoritative in-memory conversation and message state. It is
// the single writer; all reads return copies and all mutations go through
// its methods.
type Store struct {
	log   *log.Logger
	stats stats.Provider
	tr    Transport

	localUser string

	pendingTimeout time.Duration
	resyncInterval time.Duration
	resyncLimit    int

	mu          sync.Mutex
	convs       map[string]*types.Conversation
	msgs        map[string][]*types.Message
	activity    map[string]time.Time
	lastChecked time.Time

	now func() time.Time
}

func NewStore(p Params, logger *log.Logger, sp stats.Provider) (*Store, error) {
	if p.Transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if p.LocalUserId == "" {
		return nil, fmt.Errorf("local user id cannot be empty")
	}

	pendingTimeout := p.PendingTimeout
	if pendingTimeout <= 0 {
		pendingTimeout = defaultPendingTimeout
	}

	resyncInterval := p.ResyncInterval
	if resyncInterval <= 0 {
		resyncInterval = defaultResyncInterval
	}

	resyncLimit := p.ResyncLimit
	if resyncLimit <= 0 {
		resyncLimit = defaultResyncLimit
	}

	return &Store{
		log:            logger,
		stats:          sp,
		tr:             p.Transport,
		localUser:      p.LocalUserId,
		pendingTimeout: pendingTimeout,
		resyncInterval: resyncInterval,
		resyncLimit:    resyncLimit,
		convs:          make(map[string]*types.Conversation),
		msgs:           make(map[string][]*types.Message),
		activity:       make(map[string]time.Time),
		now:            func() time.Time { return time.Now().UTC().Round(time.Millisecond) },
	}, nil
}

// LocalUserId reports the identity all sends are attributed to.
func (s *Store) LocalUserId() string {
	return s.localUser
}

// LoadConversations replaces the full conversation set from a REST snapshot.
// Conversations absent from the snapshot are dropped along with their
// messages; there is no tombstoning.
func (s *Store) LoadConversations(ctx context.Context) error {
	s.mu.Lock()
	lastChecked := s.lastChecked
	s.mu.Unlock()

	rooms, err := s.tr.ListAllRooms(ctx, lastChecked)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	convs := make(map[string]*types.Conversation, len(rooms))
	for _, room := range rooms {
		conv := conversationFromRoom(room)
		convs[conv.Id] = conv
	}

	for id := range s.msgs {
		if _, ok := convs[id]; !ok {
			delete(s.msgs, id)
			delete(s.activity, id)
		}
	}

	s.convs = convs
	s.lastChecked = s.now()
	return nil
}

// LoadMessages replaces one conversation's message list from REST, used on
// first open of a conversation. Any optimistic entries still pending for the
// conversation are overwritten.
func (s *Store) LoadMessages(ctx context.Context, convId string) error {
	if err := s.loadMessages(ctx, convId); err != nil {
		return err
	}

	s.mu.Lock()
	s.activity[convId] = s.now()
	s.mu.Unlock()
	return nil
}

func (s *Store) loadMessages(ctx context.Context, convId string) error {
	frames, err := s.tr.GetRoomMessages(ctx, convId)
	if err != nil {
		return fmt.Errorf("load messages for %q: %w", convId, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]*types.Message, 0, len(frames))
	for _, frame := range frames {
		status := types.StatusReceived
		if frame.Sender.EmployeeId == s.localUser {
			status = types.StatusDelivered
		}
		msgs = append(msgs, messageFromFrame(convId, frame, status))
	}

	s.msgs[convId] = msgs

	conv := s.ensureConversation(convId)
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		conv.LastMessage = &types.LastMessage{
			Id:        last.Id,
			SenderId:  last.SenderId,
			Text:      last.Text,
			Timestamp: last.Timestamp,
		}
	}

	return nil
}

// SendMessage appends an optimistic message and delegates delivery to the
// transport. The optimistic entry is returned synchronously so callers can
// render it immediately; its promotion to delivered happens when the server
// echo is reconciled. A transport refusal marks the entry failed right away.
func (s *Store) SendMessage(convId, text string, fileUrls []string, replyTo *types.ReplyRef) types.Message {
	now := s.now()

	msg := &types.Message{
		Id:               s.nextMessageId(),
		ConversationId:   convId,
		SenderId:         s.localUser,
		Text:             text,
		Timestamp:        now,
		Status:           types.StatusSending,
		FileUrls:         fileUrls,
		ReplyTo:          replyTo,
		Optimistic:       true,
		OptimisticSender: s.localUser,
		OptimisticText:   text,
	}

	s.mu.Lock()
	conv := s.ensureConversation(convId)
	s.msgs[convId] = append(s.msgs[convId], msg)
	conv.LastMessage = &types.LastMessage{
		Id:        msg.Id,
		SenderId:  msg.SenderId,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
	s.activity[convId] = now
	s.mu.Unlock()

	var replyToId string
	if replyTo != nil {
		replyToId = replyTo.Id
	}

	if err := s.tr.Send(text, s.localUser, fileUrls, replyToId); err != nil {
		s.log.Printf("send to %q: %v", convId, err)
		s.stats.Incr(stats.SendFailures)

		s.mu.Lock()
		msg.Status = types.StatusFailed
		s.mu.Unlock()
	}

	return copyMessage(msg)
}

// ApplyIncoming merges one inbound frame into the store via the reconciler.
// This is the only path by which externally-sourced messages enter the store.
func (s *Store) ApplyIncoming(ev transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.ensureConversation(ev.RoomId)
	msg, ok := s.reconcile(ev.RoomId, ev.Message)
	if !ok {
		return
	}

	if conv.LastMessage == nil || !msg.Timestamp.Before(conv.LastMessage.Timestamp) {
		conv.LastMessage = &types.LastMessage{
			Id:        msg.Id,
			SenderId:  msg.SenderId,
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
		}
	}

	if msg.Status == types.StatusReceived && msg.SenderId != s.localUser {
		conv.UnreadCount++
	}

	s.activity[ev.RoomId] = s.now()
}

// EditMessage updates the text of the local user's own message within the
// edit window. Outside the window or for foreign messages it is a no-op; the
// window is re-validated here regardless of what the UI exposes.
func (s *Store) EditMessage(convId, msgId, newText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.findMessage(convId, msgId)
	if msg == nil {
		return false
	}

	if msg.SenderId != s.localUser {
		return false
	}

	now := s.now()
	if now.Sub(msg.Timestamp) > editWindow {
		return false
	}

	msg.Text = newText
	msg.Edited = true
	msg.EditedAt = now

	if conv := s.convs[convId]; conv != nil && conv.LastMessage != nil && conv.LastMessage.Id == msgId {
		conv.LastMessage.Text = newText
	}

	return true
}

// MarkRead zeroes the conversation's unread count. Other conversations are
// unaffected.
func (s *Store) MarkRead(convId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv := s.convs[convId]; conv != nil {
		conv.UnreadCount = 0
		s.activity[convId] = s.now()
	}
}

// DeleteMessage removes a message from the conversation's list.
func (s *Store) DeleteMessage(convId, msgId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.msgs[convId]
	for i, m := range msgs {
		if m.Id != msgId {
			continue
		}

		s.msgs[convId] = append(msgs[:i], msgs[i+1:]...)

		if conv := s.convs[convId]; conv != nil && conv.LastMessage != nil && conv.LastMessage.Id == msgId {
			conv.LastMessage = nil
			if remaining := s.msgs[convId]; len(remaining) > 0 {
				last := remaining[len(remaining)-1]
				conv.LastMessage = &types.LastMessage{
					Id:        last.Id,
					SenderId:  last.SenderId,
					Text:      last.Text,
					Timestamp: last.Timestamp,
				}
			}
		}

		return true
	}

	return false
}

// Forward forwards a message into the given rooms over REST.
func (s *Store) Forward(ctx context.Context, messageId string, roomIds []string) error {
	if err := s.tr.ForwardMessage(ctx, messageId, roomIds); err != nil {
		return fmt.Errorf("forward message %q: %w", messageId, err)
	}

	return nil
}

// SweepPending marks optimistic messages stuck in the sending state longer
// than the pending timeout as failed. Returns how many were marked.
func (s *Store) SweepPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var marked int
	for _, msgs := range s.msgs {
		for _, m := range msgs {
			if m.Status == types.StatusSending && now.Sub(m.Timestamp) > s.pendingTimeout {
				m.Status = types.StatusFailed
				marked++
			}
		}
	}

	if marked > 0 {
		s.stats.Incr(stats.SendFailures)
	}

	return marked
}

// Resync refreshes the message lists of the most recently active
// conversations from REST. It is a safety net against missed frames, not the
// primary delivery path: its full-list replacement is last-write-wins and
// can clobber a very fresh optimistic entry.
func (s *Store) Resync(ctx context.Context) {
	for _, convId := range s.resyncCandidates() {
		if err := s.loadMessages(ctx, convId); err != nil {
			s.log.Println("resync:", err)
			continue
		}
		s.stats.Incr(stats.Resyncs)
	}
}

func (s *Store) resyncCandidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.activity))
	for id := range s.activity {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		return s.activity[ids[i]].After(s.activity[ids[j]])
	})

	if len(ids) > s.resyncLimit {
		ids = ids[:s.resyncLimit]
	}

	return ids
}

// Run consumes the transport's message and error subscriptions and drives
// the periodic resync and pending sweep until the context is cancelled.
func (s *Store) Run(ctx context.Context) {
	events, cancelMsgs := s.tr.SubscribeMessages()
	defer cancelMsgs()

	errs, cancelErrs := s.tr.SubscribeErrors()
	defer cancelErrs()

	resyncTicker := time.NewTicker(s.resyncInterval)
	defer resyncTicker.Stop()

	sweepTicker := time.NewTicker(pendingSweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case ev := <-events:
			s.ApplyIncoming(ev)
		case err := <-errs:
			s.log.Println("transport:", err)
		case <-resyncTicker.C:
			s.Resync(ctx)
		case <-sweepTicker.C:
			s.SweepPending()
		case <-ctx.Done():
			return
		}
	}
}

// Conversations returns a snapshot of all conversations ordered by most
// recent message.
func (s *Store) Conversations() []types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		out = append(out, copyConversation(conv))
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := time.Time{}, time.Time{}
		if out[i].LastMessage != nil {
			ti = out[i].LastMessage.Timestamp
		}
		if out[j].LastMessage != nil {
			tj = out[j].LastMessage.Timestamp
		}
		if ti.Equal(tj) {
			return out[i].Id < out[j].Id
		}
		return ti.After(tj)
	})

	return out
}

// Conversation returns a snapshot of one conversation.
func (s *Store) Conversation(convId string) (types.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[convId]
	if !ok {
		return types.Conversation{}, false
	}

	return copyConversation(conv), true
}

// Messages returns a snapshot of one conversation's ordered message list.
func (s *Store) Messages(convId string) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.msgs[convId]
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, copyMessage(m))
	}

	return out
}

// ensureConversation returns the conversation, creating a skeleton entry for
// frames arriving ahead of the room snapshot. Caller holds s.mu.
func (s *Store) ensureConversation(convId string) *types.Conversation {
	if conv, ok := s.convs[convId]; ok {
		return conv
	}

	conv := &types.Conversation{
		Id:   convId,
		Type: types.ConversationDirect,
	}
	s.convs[convId] = conv
	return conv
}

// findMessage locates a message in a conversation. Caller holds s.mu.
func (s *Store) findMessage(convId, msgId string) *types.Message {
	for _, m := range s.msgs[convId] {
		if m.Id == msgId {
			return m
		}
	}

	return nil
}

func (s *Store) nextMessageId() string {
	sid, err := shortid.Generate()
	if err != nil {
		return fmt.Sprintf("mid-%d", s.now().UnixNano())
	}

	return "mid-" + sid
}

func conversationFromRoom(room transport.Room) *types.Conversation {
	conv := &types.Conversation{
		Id:          room.RoomId,
		Type:        room.ConversationType(),
		Name:        room.RoomName.String(),
		Icon:        room.RoomIcon.String(),
		UnreadCount: room.UnreadCount,
		Admins:      room.Admins,
		CreatedBy:   room.CreatedBy,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}

	for _, p := range room.Participants {
		conv.Participants = append(conv.Participants, p.EmployeeId)
		conv.ParticipantDetails = append(conv.ParticipantDetails, types.Participant{
			Id:          p.EmployeeId,
			DisplayName: p.EmployeeName,
			AvatarUrl:   p.ProfilePictureLink,
			IsAdmin:     p.IsAdmin,
		})
	}

	if room.LastMessage != nil {
		conv.LastMessage = &types.LastMessage{
			Id:        room.LastMessage.MessageId,
			SenderId:  room.LastMessage.Sender.EmployeeId,
			Text:      room.LastMessage.Content,
			Timestamp: room.LastMessage.CreatedAt,
		}
	}

	return conv
}

func copyConversation(conv *types.Conversation) types.Conversation {
	out := *conv
	out.Participants = append([]string(nil), conv.Participants...)
	out.ParticipantDetails = append([]types.Participant(nil), conv.ParticipantDetails...)
	out.Admins = append([]string(nil), conv.Admins...)
	if conv.LastMessage != nil {
		last := *conv.LastMessage
		out.LastMessage = &last
	}

	return out
}

func copyMessage(m *types.Message) types.Message {
	out := *m
	out.FileUrls = append([]string(nil), m.FileUrls...)
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		out.ReplyTo = &ref
	}
	if m.Poll != nil {
		poll := *m.Poll
		poll.Options = append([]string(nil), m.Poll.Options...)
		poll.Votes = make(map[int][]string, len(m.Poll.Votes))
		for idx, voters := range m.Poll.Votes {
			poll.Votes[idx] = append([]string(nil), voters...)
		}
		out.Poll = &poll
	}

	return out
}
