package helpers

import (
	"github.com/callvox/callvox-server/pkg/config"
	"github.com/sirupsen/logrus"
)

func HandleCloseConnections() {
	app := config.GetConfig()
	if app == nil {
		return
	}

	if app.RDS != nil {
		_ = app.RDS.Close()
	}

	if app.NatsConn != nil && !app.NatsConn.IsClosed() {
		_ = app.NatsConn.Drain()
	}

	// close logger
	logrus.Exit(0)
}
