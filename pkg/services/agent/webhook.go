package agentservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// webhookForwarder posts utterances to the agent's message endpoint.
// One attempt per message, bounded by the configured request timeout.
type webhookForwarder struct {
	url    string
	apiKey string
	client *http.Client
	logger *logrus.Entry
}

type agentMessage struct {
	ConversationId string `json:"conversation_id"`
	Text           string `json:"text"`
}

func newWebhookForwarder(cnf *config.AgentInfo, logger *logrus.Entry) (*webhookForwarder, error) {
	if cnf.WebhookUrl == "" {
		return nil, fmt.Errorf("webhook agent provider requires webhook_url")
	}

	return &webhookForwarder{
		url:    cnf.WebhookUrl,
		apiKey: cnf.ApiKey,
		client: &http.Client{Timeout: *cnf.RequestTimeout},
		logger: logger,
	}, nil
}

func (f *webhookForwarder) SendMessage(ctx context.Context, conversationId, text string) error {
	b, err := json.Marshal(&agentMessage{
		ConversationId: conversationId,
		Text:           text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agent webhook returned %d: %s", resp.StatusCode, string(data))
	}

	f.logger.WithField("conversationId", conversationId).Debugln("forwarded message to agent")
	return nil
}
