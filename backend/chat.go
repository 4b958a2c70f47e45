package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"git.sr.ht/~aondrejcak/policy-console/models"
)

// Chat forwards free text to the backend's language model endpoint.
func (c *Client) Chat(ctx context.Context, message string) (*models.ChatReply, error) {
	b, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, unexpected(err)
	}

	rsp, err := c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/chat",
		route:       "/chat",
		body:        b,
		contentType: "application/json",
		accept:      []int{http.StatusOK},
	})
	if err != nil {
		return nil, err
	}

	var reply models.ChatReply
	if err := json.Unmarshal(rsp.Body, &reply); err != nil {
		return nil, unexpected(err)
	}
	return &reply, nil
}
