package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

const readinessTimeout = 10 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger               *logger.Logger
	DB                   pinger
	Redis                pinger
	PubSub               pinger
	NotificationConsumer runner
}

type dependency struct {
	name string
	pinger
}

// Service runs the notification consumer once every dependency answers.
type Service struct {
	logg     *logger.Logger
	deps     []dependency
	consumer runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.NotificationConsumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	deps := []dependency{{"database", params.DB}, {"redis", params.Redis}, {"pubsub", params.PubSub}}
	for _, dep := range deps {
		if dep.pinger == nil {
			return nil, fmt.Errorf("%s client is required", dep.name)
		}
	}
	return &Service{logg: params.Logger, deps: deps, consumer: params.NotificationConsumer}, nil
}

// checkReadiness pings every dependency and reports all failures together.
func (s *Service) checkReadiness(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	var errs error
	for _, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", dep.name), "dependency ping failed", err)
			errs = multierr.Append(errs, fmt.Errorf("%s ping failed: %w", dep.name, err))
		}
	}
	return errs
}

// Run returns ctx.Err() on shutdown and the consumer's error otherwise.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkReadiness(ctx); err != nil {
		return err
	}
	s.logg.Info(ctx, "worker dependencies ready")

	err := s.consumer.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		s.logg.Error(ctx, "notification consumer stopped", err)
	}
	return err
}
