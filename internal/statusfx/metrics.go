package statusfx

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/yurykabanov/segrecovery/pkg/metrics"
)

func MetricsRecorder() *metrics.Recorder {
	return metrics.NewRecorder()
}

func RegisterMetricsHandler(router *mux.Router, recorder *metrics.Recorder) {
	router.Handle("/metrics", recorder.Handler()).Methods(http.MethodGet)
}
