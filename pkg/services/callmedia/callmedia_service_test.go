package callmediaservice

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCallMediaInfo(endpoint string) *config.CallMediaInfo {
	d := 5 * time.Second
	return &config.CallMediaInfo{
		Endpoint:       endpoint,
		ApiVersion:     "2024-06-15",
		AccessKey:      "media-key",
		RequestTimeout: &d,
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCancelAllMediaOperations(t *testing.T) {
	var gotPath, gotQuery, gotAuth string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	c := NewCallMediaClient(testCallMediaInfo(ts.URL), testLogger())
	h := c.ResolveHandle("cc-42")
	require.NotNil(t, h)
	assert.Equal(t, "cc-42", h.CallConnectionId())

	err := h.CancelAllMediaOperations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/calling/callConnections/cc-42:cancelAllMediaOperations", gotPath)
	assert.Equal(t, "api-version=2024-06-15", gotQuery)
	assert.Equal(t, "Bearer media-key", gotAuth)
}

func TestCancelAllMediaOperationsNon2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "call connection not found", http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewCallMediaClient(testCallMediaInfo(ts.URL), testLogger())
	err := c.ResolveHandle("cc-42").CancelAllMediaOperations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestResolveHandleReturnsNil(t *testing.T) {
	c := NewCallMediaClient(testCallMediaInfo(""), testLogger())
	assert.Nil(t, c.ResolveHandle("cc-42"), "unconfigured endpoint must not produce a handle")

	c = NewCallMediaClient(testCallMediaInfo("http://localhost"), testLogger())
	assert.Nil(t, c.ResolveHandle(""), "empty call connection id must not produce a handle")

	var missing *CallMediaClient
	assert.Nil(t, missing.ResolveHandle("cc-42"))
}

func TestEndpointTrailingSlashTrimmed(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewCallMediaClient(testCallMediaInfo(ts.URL+"/"), testLogger())
	err := c.ResolveHandle("cc-1").CancelAllMediaOperations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/calling/callConnections/cc-1:cancelAllMediaOperations", gotPath)
}
