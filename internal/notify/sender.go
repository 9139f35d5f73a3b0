package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	contentType        = "application/json"
	defaultSendTimeout = 10 * time.Second
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailGateway posts messages to an HTTP email gateway as JSON.
type EmailGateway struct {
	url    string
	token  string
	from   string
	client *http.Client
}

type gatewayRequest struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

func NewEmailGateway(url, token, from string, timeout time.Duration) (*EmailGateway, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("email gateway url is required")
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &EmailGateway{
		url:    url,
		token:  token,
		from:   from,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (g *EmailGateway) Send(ctx context.Context, msg Message) error {
	if msg.Email == "" {
		return fmt.Errorf("message %s has no recipient", msg.ID)
	}

	body, err := json.Marshal(gatewayRequest{
		From:     g.from,
		To:       msg.Email,
		Subject:  fmt.Sprintf("You may be a fit for %s", msg.JobTitle),
		Template: msg.Kind,
		Data: map[string]any{
			"candidateName": msg.CandidateName,
			"jobId":         msg.JobID,
			"jobTitle":      msg.JobTitle,
			"score":         msg.Score,
			"matchedSkills": msg.MatchedSkills,
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", msg.ID)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	return nil
}
