package statusfx

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/segrecovery/pkg/http/handler"
	"github.com/yurykabanov/segrecovery/pkg/orchestrator"
)

func RecoveryStatusHandler(logger *logrus.Logger, tracker *orchestrator.Tracker) *handler.RecoveryStatusHandler {
	return handler.NewRecoveryStatusHandler(logger, tracker)
}

func RegisterRecoveryStatusHandler(router *mux.Router, h *handler.RecoveryStatusHandler) {
	router.Handle("/recoveries", h).Methods(http.MethodGet)
}
