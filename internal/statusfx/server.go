package statusfx

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/yurykabanov/segrecovery/pkg/http/middleware"
)

const (
	ConfigServerAddress      = "status.address"
	ConfigServerTimeoutRead  = "status.timeout.read"
	ConfigServerTimeoutWrite = "status.timeout.write"
	ConfigServerLogRequests  = "status.log.requests"

	defaultTimeout = 10 * time.Second
)

type HttpServerConfig struct {
	Address           string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	EnableRequestsLog bool
}

func HttpServerConfigProvider(v *viper.Viper) (*HttpServerConfig, error) {
	config := &HttpServerConfig{
		Address:           v.GetString(ConfigServerAddress),
		ReadTimeout:       v.GetDuration(ConfigServerTimeoutRead),
		WriteTimeout:      v.GetDuration(ConfigServerTimeoutWrite),
		EnableRequestsLog: v.GetBool(ConfigServerLogRequests),
	}

	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaultTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultTimeout
	}

	return config, nil
}

func HttpServer(
	config *HttpServerConfig,
	logger *logrus.Logger,
	defaultLogger *log.Logger,
	router *mux.Router,
) (*http.Server, error) {
	var h http.Handler = router

	if config.EnableRequestsLog {
		h = middleware.WithRequestLogging(router, logger)
	}

	h = middleware.WithRequestId(h, middleware.DefaultRequestIdProvider)

	return &http.Server{
		Addr:         config.Address,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		ErrorLog:     defaultLogger,
		Handler:      h,
	}, nil
}

func HttpRouter() (*mux.Router, error) {
	return mux.NewRouter(), nil
}

// RunServer serves the status endpoint for the lifetime of the app. Nothing
// is started when no address is configured.
func RunServer(lc fx.Lifecycle, config *HttpServerConfig, server *http.Server, logger *logrus.Logger) {
	if config.Address == "" {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			listener, err := net.Listen("tcp", config.Address)
			if err != nil {
				return err
			}

			logger.WithField("address", listener.Addr().String()).Info("Serving recovery status")

			go server.Serve(listener)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
