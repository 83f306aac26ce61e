package callmediaservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/sirupsen/logrus"
)

// MediaHandle is a capability to control an active call's audio playback.
type MediaHandle interface {
	CallConnectionId() string
	// CancelAllMediaOperations interrupts the platform's in-flight playback.
	CancelAllMediaOperations(ctx context.Context) error
}

// MediaResolver turns a call connection id into a media handle, when possible.
type MediaResolver interface {
	ResolveHandle(callConnectionId string) MediaHandle
}

// CallMediaClient controls audio playback on active calls through the
// telephony platform's call-control REST API.
type CallMediaClient struct {
	endpoint   string
	apiVersion string
	accessKey  string
	client     *http.Client
	logger     *logrus.Entry
}

// Handle is a capability bound to one call connection. It stays valid until
// the platform retires the connection id; channels rebind on metadata events.
type Handle struct {
	c                *CallMediaClient
	callConnectionId string
}

func NewCallMediaClient(cnf *config.CallMediaInfo, logger *logrus.Logger) *CallMediaClient {
	return &CallMediaClient{
		endpoint:   strings.TrimSuffix(cnf.Endpoint, "/"),
		apiVersion: cnf.ApiVersion,
		accessKey:  cnf.AccessKey,
		client:     &http.Client{Timeout: *cnf.RequestTimeout},
		logger:     logger.WithField("service", "call_media"),
	}
}

// ResolveHandle returns a handle for the given call connection id, or nil
// when no handle can be produced (empty id or client not configured).
func (c *CallMediaClient) ResolveHandle(callConnectionId string) MediaHandle {
	if c == nil || c.endpoint == "" || callConnectionId == "" {
		return nil
	}
	return &Handle{c: c, callConnectionId: callConnectionId}
}

func (h *Handle) CallConnectionId() string {
	return h.callConnectionId
}

// CancelAllMediaOperations stops whatever the platform is currently playing
// into the call, so the caller's speech is not talked over.
func (h *Handle) CancelAllMediaOperations(ctx context.Context) error {
	url := fmt.Sprintf("%s/calling/callConnections/%s:cancelAllMediaOperations?api-version=%s",
		h.c.endpoint, h.callConnectionId, h.c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+h.c.accessKey)

	resp, err := h.c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cancel media operations returned %d: %s", resp.StatusCode, string(data))
	}

	h.c.logger.WithField("callConnectionId", h.callConnectionId).Debugln("cancelled active media operations")
	return nil
}
