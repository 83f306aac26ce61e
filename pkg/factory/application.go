package factory

import (
	"context"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/callvox/callvox-server/pkg/controllers"
	"github.com/callvox/callvox-server/pkg/models"
	agentservice "github.com/callvox/callvox-server/pkg/services/agent"
	callmediaservice "github.com/callvox/callvox-server/pkg/services/callmedia"
	natsservice "github.com/callvox/callvox-server/pkg/services/nats"
	registryservice "github.com/callvox/callvox-server/pkg/services/registry"
)

// ApplicationControllers holds all the controllers.
type ApplicationControllers struct {
	HealthCheckController   *controllers.HealthCheckController
	TranscriptionController *controllers.TranscriptionController
	TranscriptController    *controllers.TranscriptController
}

// Application is the root struct holding all dependencies.
type Application struct {
	Controllers *ApplicationControllers
	AppConfig   *config.AppConfig
	Ctx         context.Context

	recorder *natsservice.TranscriptRecorder
}

// NewAppFactory wires services, models and controllers together.
func NewAppFactory(ctx context.Context, appConfig *config.AppConfig) (*Application, error) {
	logger := appConfig.Logger

	registry := registryservice.NewRedisCallRegistry(appConfig.RDS, logger)
	media := callmediaservice.NewCallMediaClient(&appConfig.CallMediaInfo, logger)
	forwarder, err := agentservice.NewForwarder(&appConfig.AgentInfo, logger)
	if err != nil {
		return nil, err
	}
	// nil when NATS is not configured; the model treats that as a no-op sink
	recorder := natsservice.NewTranscriptRecorder(appConfig, logger)

	transcriptionModel := models.NewTranscriptionModel(appConfig, registry, media, forwarder, recorder, logger)

	return &Application{
		Controllers: &ApplicationControllers{
			HealthCheckController:   controllers.NewHealthCheckController(appConfig),
			TranscriptionController: controllers.NewTranscriptionController(appConfig, transcriptionModel, logger),
			TranscriptController:    controllers.NewTranscriptController(recorder, logger),
		},
		AppConfig: appConfig,
		Ctx:       ctx,
		recorder:  recorder,
	}, nil
}

func (a *Application) Boot() {
	a.AppConfig.Logger.WithField("agentProvider", a.AppConfig.AgentInfo.Provider).
		Infoln("transcription relay booted")
}

func (a *Application) Shutdown() {
	a.recorder.Stop()
}
