package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const basePath = "/api/wall/feed/admin"

// Post is one entry in the admin post feed.
type Post struct {
	PostId       string    `json:"post_id"`
	Text         string    `json:"text"`
	MediaUrls    []string  `json:"media_urls,omitempty"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
}

type listRequest struct {
	LastCheckedAt time.Time `json:"last_checked_at"`
}

type listResponse struct {
	Posts []Post `json:"posts"`
}

type publishRequest struct {
	Text      string   `json:"text"`
	MediaUrls []string `json:"media_urls"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client is the admin post-feed utility. It shares the chat transport's REST
// conventions (raw Authorization header plus the admin token) but performs no
// local reconciliation; the feed is read-your-writes over REST only.
type Client struct {
	apiURL     string
	token      string
	adminToken string
	httpc      *http.Client
	log        *log.Logger
}

func NewClient(apiURL, token, adminToken string, logger *log.Logger) (*Client, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("api URL cannot be empty")
	}
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	if adminToken == "" {
		return nil, fmt.Errorf("admin token cannot be empty")
	}

	return &Client{
		apiURL:     apiURL,
		token:      token,
		adminToken: adminToken,
		httpc:      &http.Client{Timeout: 30 * time.Second},
		log:        logger,
	}, nil
}

// ListPosts fetches the post feed snapshot.
func (c *Client) ListPosts(ctx context.Context, lastCheckedAt time.Time) ([]Post, error) {
	var out listResponse
	url := c.apiURL + basePath + "/posts/list_all"
	if err := c.do(ctx, http.MethodPost, url, listRequest{LastCheckedAt: lastCheckedAt}, &out); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return out.Posts, nil
}

// PublishPost creates a new feed post.
func (c *Client) PublishPost(ctx context.Context, text string, mediaUrls []string) (*Post, error) {
	if mediaUrls == nil {
		mediaUrls = []string{}
	}

	var out Post
	url := c.apiURL + basePath + "/posts/create"
	if err := c.do(ctx, http.MethodPost, url, publishRequest{Text: text, MediaUrls: mediaUrls}, &out); err != nil {
		return nil, fmt.Errorf("publish post: %w", err)
	}

	return &out, nil
}

// DeletePost removes a feed post.
func (c *Client) DeletePost(ctx context.Context, postId string) error {
	url := fmt.Sprintf("%s%s/posts/%s/delete", c.apiURL, basePath, postId)
	if err := c.do(ctx, http.MethodPost, url, nil, nil); err != nil {
		return fmt.Errorf("delete post %q: %w", postId, err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
	req.Header.Set("floww-admin-token", c.adminToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Message == "" {
			errResp.Message = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, errResp.Message)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
