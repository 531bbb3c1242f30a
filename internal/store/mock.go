package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/floww-app/chatkit/internal/transport"
)

type MockTransport struct {
	mock.Mock

	events chan transport.Event
	errs   chan error
}

func (m *MockTransport) Send(content, senderId string, fileUrls []string, replyToId string) error {
	args := m.Called(content, senderId, fileUrls, replyToId)
	return args.Error(0)
}

func (m *MockTransport) ListAllRooms(ctx context.Context, lastCheckedAt time.Time) ([]transport.Room, error) {
	args := m.Called(ctx, lastCheckedAt)
	if rooms, ok := args.Get(0).([]transport.Room); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransport) GetRoomMessages(ctx context.Context, roomId string) ([]transport.InboundMessage, error) {
	args := m.Called(ctx, roomId)
	if msgs, ok := args.Get(0).([]transport.InboundMessage); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTransport) ForwardMessage(ctx context.Context, messageId string, roomIds []string) error {
	args := m.Called(ctx, messageId, roomIds)
	return args.Error(0)
}

// SubscribeMessages and SubscribeErrors hand out real channels so tests can
// drive Run without mock expectations.
func (m *MockTransport) SubscribeMessages() (<-chan transport.Event, func()) {
	if m.events == nil {
		m.events = make(chan transport.Event, 64)
	}
	return m.events, func() {}
}

func (m *MockTransport) SubscribeErrors() (<-chan error, func()) {
	if m.errs == nil {
		m.errs = make(chan error, 16)
	}
	return m.errs, func() {}
}
