package controllers

import (
	"strings"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/callvox/callvox-server/pkg/models"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// TranscriptionController accepts the telephony platform's streaming
// connections and hands each one to its own channel loop.
type TranscriptionController struct {
	app    *config.AppConfig
	m      *models.TranscriptionModel
	logger *logrus.Entry
}

func NewTranscriptionController(app *config.AppConfig, m *models.TranscriptionModel, logger *logrus.Logger) *TranscriptionController {
	return &TranscriptionController{
		app:    app,
		m:      m,
		logger: logger.WithField("controller", "transcription"),
	}
}

// HandleTranscriptionUpgrade gates the stream endpoint: the request must be a
// websocket upgrade carrying a non-empty correlation id. Violations are
// rejected before any channel state exists.
func (tc *TranscriptionController) HandleTranscriptionUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	correlationId := strings.TrimSpace(c.Get(config.HeaderCallCorrelationId))
	if correlationId == "" {
		tc.logger.Warnln("rejected stream connection without correlation id")
		return c.SendStatus(fiber.StatusBadRequest)
	}

	c.Locals("correlationId", correlationId)
	c.Locals("callConnectionId", strings.TrimSpace(c.Get(config.HeaderCallConnectionId)))
	return c.Next()
}

// HandleTranscriptionStream runs one channel per accepted connection. The
// handler goroutine is the channel's loop; when it returns the connection
// is released.
func (tc *TranscriptionController) HandleTranscriptionStream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		correlationId, _ := conn.Locals("correlationId").(string)
		callConnectionId, _ := conn.Locals("callConnectionId").(string)

		src := models.NewWebsocketFrameSource(conn, tc.app.Transcription.ReadBufferSize)
		ch := tc.m.NewChannel(correlationId, callConnectionId, src)
		ch.RunLoop()
	})
}
