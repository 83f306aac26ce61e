package agentservice

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// openAIForwarder talks to an OpenAI-compatible chat endpoint directly,
// keeping a short in-memory history per conversation. Useful when no
// dedicated agent service sits in front of the model.
type openAIForwarder struct {
	client openai.Client
	model  string
	logger *logrus.Entry

	// histories are local to this instance and vanish with it.
	histories map[string][]openai.ChatCompletionMessageParamUnion
	mu        sync.Mutex
}

// maxHistoryMessages bounds the per-conversation context we resend.
const maxHistoryMessages = 20

func newOpenAIForwarder(cnf *config.AgentInfo, logger *logrus.Entry) (*openAIForwarder, error) {
	if cnf.ApiKey == "" {
		return nil, fmt.Errorf("openai agent provider requires api_key")
	}

	// one attempt per message, a failure is logged by the caller and the
	// utterance dropped
	opts := []option.RequestOption{
		option.WithAPIKey(cnf.ApiKey),
		option.WithRequestTimeout(*cnf.RequestTimeout),
		option.WithMaxRetries(0),
	}
	if cnf.Endpoint != "" {
		base := strings.TrimSuffix(cnf.Endpoint, "/")
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	model := cnf.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}

	return &openAIForwarder{
		client:    openai.NewClient(opts...),
		model:     model,
		logger:    logger,
		histories: make(map[string][]openai.ChatCompletionMessageParamUnion),
	}, nil
}

func (f *openAIForwarder) SendMessage(ctx context.Context, conversationId, text string) error {
	messages := f.appendHistory(conversationId, openai.UserMessage(text))

	completion, err := f.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(f.model),
		Messages: messages,
	})
	if err != nil {
		return err
	}

	if len(completion.Choices) > 0 {
		reply := completion.Choices[0].Message
		f.appendHistory(conversationId, reply.ToParam())
		f.logger.WithField("conversationId", conversationId).Debugln("agent reply:", reply.Content)
	}

	return nil
}

func (f *openAIForwarder) appendHistory(conversationId string, msg openai.ChatCompletionMessageParamUnion) []openai.ChatCompletionMessageParamUnion {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := append(f.histories[conversationId], msg)
	if len(h) > maxHistoryMessages {
		h = h[len(h)-maxHistoryMessages:]
	}
	f.histories[conversationId] = h

	out := make([]openai.ChatCompletionMessageParamUnion, len(h))
	copy(out, h)
	return out
}
