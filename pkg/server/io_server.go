package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iobridge/iobridge/pkg/config"
	"github.com/iobridge/iobridge/pkg/infra/prometheus"
	"github.com/iobridge/iobridge/pkg/registry"
	"github.com/iobridge/iobridge/pkg/server/router"
	"github.com/iobridge/iobridge/pkg/version"
)

type (
	IOServerDI struct {
		Config   *config.Config
		Logger   *logrus.Logger
		Registry *registry.Registry
		Routers  []router.ServerRouter
	}
	IOServer struct {
		*BaseServer
		registry *registry.Registry
	}
)

func NewIOServer(di IOServerDI) *IOServer {
	if di.Config.Metrics.Enabled {
		prometheus.Initialize()
	}

	s := &IOServer{
		BaseServer: NewBaseServer(di.Config, di.Logger).WithRouters(di.Routers...),
		registry:   di.Registry,
	}
	s.BaseServer.setupMetricsEndpoint()
	return s
}

func (s *IOServer) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.WithFields(logrus.Fields{
		"addr":    addr,
		"version": version.Version,
	}).Info("starting io server")
	return s.router.Listen(addr)
}

func (s *IOServer) Shutdown() error {
	if err := s.router.Shutdown(); err != nil {
		return err
	}
	s.registry.Shutdown()
	return nil
}
