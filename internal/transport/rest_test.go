package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floww-app/chatkit/internal/stats"
	"github.com/floww-app/chatkit/internal/testutil"
)

func newTestClient(t *testing.T, p Params) *Client {
	t.Helper()

	if p.ApiURL == "" {
		p.ApiURL = "http://example.com"
	}
	if p.SocketURL == "" {
		p.SocketURL = "ws://example.com/ws"
	}
	if p.AuthType == "" {
		p.AuthType = AuthEmployee
	}
	if p.Token == "" {
		p.Token = "tok-123"
	}

	c, err := NewClient(p, testutil.TestLogger(t), stats.Nop{})
	require.NoError(t, err, "expected client construction to succeed")

	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"missing api url", Params{SocketURL: "ws://x", AuthType: AuthEmployee, Token: "t"}},
		{"missing socket url", Params{ApiURL: "http://x", AuthType: AuthEmployee, Token: "t"}},
		{"missing token", Params{ApiURL: "http://x", SocketURL: "ws://x", AuthType: AuthEmployee}},
		{"bad auth type", Params{ApiURL: "http://x", SocketURL: "ws://x", AuthType: "root", Token: "t"}},
		{"admin without admin token", Params{ApiURL: "http://x", SocketURL: "ws://x", AuthType: AuthAdmin, Token: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.p, testutil.TestLogger(t), stats.Nop{})
			assert.Error(t, err)
		})
	}

	t.Run("valid", func(t *testing.T) {
		c := newTestClient(t, Params{})
		assert.Equal(t, StateIdle, c.State())
		assert.NotEmpty(t, c.Id())
	})
}

func TestListAllRooms(t *testing.T) {
	lastChecked := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/wall/chat/rooms/list_all_rooms", r.URL.Path)
		assert.Equal(t, "tok-123", r.Header.Get("Authorization"), "expected the token sent raw, without a bearer prefix")
		assert.Empty(t, r.Header.Get("floww-admin-token"), "expected no admin token for employee auth")

		var req listRoomsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.LastCheckedAt.Equal(lastChecked))

		json.NewEncoder(w).Encode(listRoomsResponse{Rooms: []Room{
			{RoomId: "r1", RoomType: "group", RoomName: "General"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, Params{ApiURL: srv.URL})

	rooms, err := c.ListAllRooms(context.Background(), lastChecked)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r1", rooms[0].RoomId)
	assert.Equal(t, "General", rooms[0].RoomName.String())
}

func TestGetRoomMessages_admin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/wall/chat/admin/rooms/r1/get_messages", r.URL.Path)
		assert.Equal(t, "tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "admin-tok", r.Header.Get("floww-admin-token"))

		json.NewEncoder(w).Encode(getMessagesResponse{Messages: []InboundMessage{
			{MessageId: "m1", Content: "hello"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(t, Params{ApiURL: srv.URL, AuthType: AuthAdmin, AdminToken: "admin-tok"})

	msgs, err := c.GetRoomMessages(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].MessageId)
}

func TestGetRoomDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/wall/chat/rooms/r9/get_details", r.URL.Path)

		json.NewEncoder(w).Encode(Room{RoomId: "r9", RoomType: "direct"})
	}))
	defer srv.Close()

	c := newTestClient(t, Params{ApiURL: srv.URL})

	room, err := c.GetRoomDetails(context.Background(), "r9")
	require.NoError(t, err)
	assert.Equal(t, "r9", room.RoomId)
}

func TestCreateRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/wall/chat/rooms/create", r.URL.Path)

		var req createRoomRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "emp-7", req.ReceiverEmployeeId)

		json.NewEncoder(w).Encode(Room{RoomId: "r-new", RoomType: "direct"})
	}))
	defer srv.Close()

	c := newTestClient(t, Params{ApiURL: srv.URL})

	room, err := c.CreateRoom(context.Background(), "emp-7")
	require.NoError(t, err)
	assert.Equal(t, "r-new", room.RoomId)
}

func TestSendMessageHTTP_alwaysEmployeePath(t *testing.T) {
	// The admin environment has no send endpoint, so the REST send path is
	// pinned to the employee prefix regardless of auth type.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/wall/chat/rooms/r1/send_message", r.URL.Path)
		assert.Equal(t, "admin-tok", r.Header.Get("floww-admin-token"))

		var frame OutboundFrame
		require.NoError(t, json.NewDecoder(r.Body).Decode(&frame))
		assert.Equal(t, "hello", frame.Content)

		json.NewEncoder(w).Encode(InboundMessage{MessageId: "srv-1", Content: "hello"})
	}))
	defer srv.Close()

	c := newTestClient(t, Params{ApiURL: srv.URL, AuthType: AuthAdmin, AdminToken: "admin-tok"})

	msg, err := c.SendMessageHTTP(context.Background(), "r1", OutboundFrame{Content: "hello", SenderId: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.MessageId)
}

func TestForwardMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/wall/chat/messages/m1/forward", r.URL.Path)

		var req forwardRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"r1", "r2"}, req.RoomIds)

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, Params{ApiURL: srv.URL})

	assert.NoError(t, c.ForwardMessage(context.Background(), "m1", []string{"r1", "r2"}))
}

func Test_doJSON_errors(t *testing.T) {
	t.Run("status error with body message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(errorResponse{Message: "not a participant"})
		}))
		defer srv.Close()

		c := newTestClient(t, Params{ApiURL: srv.URL})

		_, err := c.GetRoomMessages(context.Background(), "r1")
		require.Error(t, err)

		var terr *Error
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusForbidden, terr.StatusCode)
		assert.Equal(t, "not a participant", terr.Message)
		assert.Equal(t, "get_messages", terr.Op)
	})

	t.Run("status error without body falls back to status text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := newTestClient(t, Params{ApiURL: srv.URL})

		_, err := c.ListAllRooms(context.Background(), time.Time{})
		require.Error(t, err)

		var terr *Error
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusText(http.StatusInternalServerError), terr.Message)
	})

	t.Run("malformed response body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{not json"))
		}))
		defer srv.Close()

		c := newTestClient(t, Params{ApiURL: srv.URL})

		_, err := c.GetRoomMessages(context.Background(), "r1")
		require.Error(t, err)

		var terr *Error
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "malformed response body", terr.Message)
		assert.Error(t, errors.Unwrap(terr))
	})

	t.Run("unreachable server", func(t *testing.T) {
		c := newTestClient(t, Params{ApiURL: "http://127.0.0.1:1"})

		_, err := c.ListAllRooms(context.Background(), time.Time{})
		require.Error(t, err)

		var terr *Error
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, "request failed", terr.Message)
	})
}
