package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type listRoomsRequest struct {
	LastCheckedAt time.Time `json:"last_checked_at"`
}

type listRoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

type getMessagesResponse struct {
	Messages []InboundMessage `json:"messages"`
}

type createRoomRequest struct {
	ReceiverEmployeeId string `json:"receiver_employee_id"`
}

type forwardRequest struct {
	RoomIds []string `json:"room_ids"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// basePath selects the REST prefix by environment.
func (c *Client) basePath() string {
	if c.authType == AuthAdmin {
		return adminBasePath
	}

	return employeeBasePath
}

// ListAllRooms fetches the full room snapshot.
func (c *Client) ListAllRooms(ctx context.Context, lastCheckedAt time.Time) ([]Room, error) {
	var out listRoomsResponse
	url := c.apiURL + c.basePath() + "/rooms/list_all_rooms"
	if err := c.doJSON(ctx, "list_all_rooms", http.MethodPost, url, listRoomsRequest{LastCheckedAt: lastCheckedAt}, &out); err != nil {
		return nil, err
	}

	return out.Rooms, nil
}

// GetRoomDetails fetches one room's metadata.
func (c *Client) GetRoomDetails(ctx context.Context, roomId string) (*Room, error) {
	var out Room
	url := fmt.Sprintf("%s%s/rooms/%s/get_details", c.apiURL, c.basePath(), roomId)
	if err := c.doJSON(ctx, "get_details", http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetRoomMessages fetches a room's full message list, used on first open of
// a conversation and by the periodic resync safety net.
func (c *Client) GetRoomMessages(ctx context.Context, roomId string) ([]InboundMessage, error) {
	var out getMessagesResponse
	url := fmt.Sprintf("%s%s/rooms/%s/get_messages", c.apiURL, c.basePath(), roomId)
	if err := c.doJSON(ctx, "get_messages", http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}

	return out.Messages, nil
}

// CreateRoom creates a direct room with the given employee.
func (c *Client) CreateRoom(ctx context.Context, receiverEmployeeId string) (*Room, error) {
	var out Room
	url := c.apiURL + c.basePath() + "/rooms/create"
	if err := c.doJSON(ctx, "create_room", http.MethodPost, url, createRoomRequest{ReceiverEmployeeId: receiverEmployeeId}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// SendMessageHTTP is the REST fallback path for message persistence. It
// always uses the employee base path regardless of environment.
func (c *Client) SendMessageHTTP(ctx context.Context, roomId string, frame OutboundFrame) (*InboundMessage, error) {
	var out InboundMessage
	url := fmt.Sprintf("%s%s/rooms/%s/send_message", c.apiURL, employeeBasePath, roomId)
	if err := c.doJSON(ctx, "send_message", http.MethodPost, url, frame, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ForwardMessage forwards a message into the given rooms.
func (c *Client) ForwardMessage(ctx context.Context, messageId string, roomIds []string) error {
	url := fmt.Sprintf("%s%s/messages/%s/forward", c.apiURL, c.basePath(), messageId)
	return c.doJSON(ctx, "forward_message", http.MethodPost, url, forwardRequest{RoomIds: roomIds}, nil)
}

// doJSON performs one REST call. No retries; the caller decides. Failures
// come back as a tagged *Error.
func (c *Client) doJSON(ctx context.Context, op, method, url string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return newRequestError(op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return newRequestError(op, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	if c.authType == AuthAdmin {
		req.Header.Set("floww-admin-token", c.adminToken)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return newRequestError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Message == "" {
			errResp.Message = http.StatusText(resp.StatusCode)
		}
		return newStatusError(op, resp.StatusCode, errResp.Message)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newDecodeError(op, err)
	}

	return nil
}
