package controllers

import (
	natsservice "github.com/callvox/callvox-server/pkg/services/nats"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// TranscriptController exposes the stored transcript of a call for live
// monitoring. Read-only; chunks are written by the channels themselves.
type TranscriptController struct {
	recorder *natsservice.TranscriptRecorder
	logger   *logrus.Entry
}

func NewTranscriptController(recorder *natsservice.TranscriptRecorder, logger *logrus.Logger) *TranscriptController {
	return &TranscriptController{
		recorder: recorder,
		logger:   logger.WithField("controller", "transcript"),
	}
}

// HandleGetTranscript returns the chunks recorded for one call, keyed by
// arrival timestamp. 404 covers both an unknown call and fan-out disabled.
func (tc *TranscriptController) HandleGetTranscript(c *fiber.Ctx) error {
	correlationId := c.Params("correlationId")

	raw, err := tc.recorder.GetTranscriptChunks(correlationId)
	if err != nil {
		tc.logger.WithError(err).WithField("correlationId", correlationId).
			Errorln("failed to read transcript chunks")
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if len(raw) == 0 {
		return c.Status(fiber.StatusNotFound).SendString("no transcript found")
	}

	chunks := make(map[string]natsservice.TranscriptChunk, len(raw))
	for k, v := range raw {
		var chunk natsservice.TranscriptChunk
		if err := json.Unmarshal(v, &chunk); err != nil {
			tc.logger.WithError(err).Warnln("skipping undecodable transcript chunk")
			continue
		}
		chunks[k] = chunk
	}

	return c.JSON(fiber.Map{
		"correlationId": correlationId,
		"chunks":        chunks,
	})
}
