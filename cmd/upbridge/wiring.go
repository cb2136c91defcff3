package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/snowmerak/upbridge/lib/bridge"
	"github.com/snowmerak/upbridge/lib/config"
	"github.com/snowmerak/upbridge/lib/store"
	"github.com/snowmerak/upbridge/lib/transport"
)

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func newChannel(ctx context.Context, cfg config.TransportConfig) (transport.Channel, error) {
	codec, err := transport.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	withCodec := transport.WithCodec(codec)

	switch cfg.Kind {
	case config.TransportStdio:
		return transport.NewStreamChannel(os.Stdin, os.Stdout, withCodec), nil
	case config.TransportProcess:
		ch, err := transport.NewProcessChannel(ctx, cfg.Process.Path, cfg.Process.Args, withCodec)
		if err != nil {
			return nil, err
		}
		return ch, nil
	case config.TransportWebSocket:
		ch, err := transport.DialWebSocket(ctx, cfg.WebSocket.URL, nil, withCodec)
		if err != nil {
			return nil, err
		}
		return ch, nil
	case config.TransportRedis:
		return transport.NewRedisChannel(transport.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Inbound:  cfg.Redis.Inbound,
			Outbound: cfg.Redis.Outbound,
		}, withCodec), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// session is a started bridge plus an event subscription taken before the handshake,
// so the first prefChanged is never missed.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	bridge *bridge.Bridge
	events <-chan store.Event

	stopBridge   func() error
	cancelEvents func()
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	ch, err := newChannel(ctx, cfg.Transport)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithInterestLimit(cfg.Bridge.InterestLimit),
	}
	if !cfg.Bridge.RequestPrefsOnStart {
		opts = append(opts, bridge.WithoutPrefsRequest())
	}
	b := bridge.New(transport.NewAdapter(ch, transport.WithLogger(logger)), opts...)

	events, cancelEvents := b.View().Events(64)
	stop, err := b.Start(ctx)
	if err != nil {
		cancelEvents()
		_ = ch.Close()
		return nil, err
	}

	return &session{
		cfg:          cfg,
		logger:       logger,
		bridge:       b,
		events:       events,
		stopBridge:   stop,
		cancelEvents: cancelEvents,
	}, nil
}

func (s *session) Close() error {
	err := s.stopBridge()
	s.cancelEvents()
	_ = s.logger.Sync()
	return err
}

// waitFor blocks until an event with one of names arrives.
func (s *session) waitFor(ctx context.Context, names ...store.EventName) (store.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return store.Event{}, fmt.Errorf("waiting for %v: %w", names, ctx.Err())
		case ev, ok := <-s.events:
			if !ok {
				return store.Event{}, fmt.Errorf("event stream closed while waiting for %v", names)
			}
			for _, name := range names {
				if ev.Name == name {
					return ev, nil
				}
			}
		}
	}
}

// consoleOut picks the stream for human output. Stdout carries the protocol when the
// host talks to us over stdio.
func consoleOut(cfg config.Config, stdout, stderr io.Writer) io.Writer {
	if cfg.Transport.Kind == config.TransportStdio {
		return stderr
	}
	return stdout
}
