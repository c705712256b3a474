package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const pushbulletPushURL = "https://api.pushbullet.com/v2/pushes"

// Pushbullet sends a push note through the Pushbullet v2 API.
type Pushbullet struct {
	accessToken string
	channelTag  string // optional; empty pushes to all of the user's devices
	url         string
	client      *http.Client
}

func NewPushbullet(accessToken, channelTag string) *Pushbullet {
	return &Pushbullet{
		accessToken: accessToken,
		channelTag:  channelTag,
		url:         pushbulletPushURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *Pushbullet) Name() string { return "pushbullet" }

type pushbulletNote struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ChannelTag string `json:"channel_tag,omitempty"`
}

func (p *Pushbullet) Notify(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(pushbulletNote{
		Type:       "note",
		Title:      title,
		Body:       body,
		ChannelTag: p.channelTag,
	})
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Access-Token", p.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("pushbullet returned status %d", resp.StatusCode)
	}
	return nil
}
