package helpers

import (
	"context"
	"os"

	"github.com/callvox/callvox-server/pkg/config"
	"github.com/callvox/callvox-server/pkg/factory"
	"gopkg.in/yaml.v3"
)

// PrepareServer opens the shared connections the relay depends on.
func PrepareServer(appCnf *config.AppConfig) error {
	ctx := context.Background()

	// the call registry lives in Redis
	if err := factory.NewRedisConnection(ctx, appCnf); err != nil {
		return err
	}

	// optional, for live transcript fan-out
	if err := factory.NewNatsConnection(appCnf); err != nil {
		return err
	}

	return nil
}

func ReadYamlConfigFile(filename string) (*config.AppConfig, error) {
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	appCnf := new(config.AppConfig)
	err = yaml.Unmarshal(yamlFile, appCnf)
	if err != nil {
		return nil, err
	}

	// get current working dir
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	appCnf.RootWorkingDir = wd

	return appCnf, nil
}
