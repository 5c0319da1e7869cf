package main

import (
	"errors"
	"fmt"
	"io"
	"log"

	"attview/internal/config"
	"attview/internal/mqttsink"
	"attview/internal/pipeline"
	"attview/internal/udp"
	"attview/internal/web"
)

// sinkSet holds the presenters enabled by config, in publish order.
type sinkSet struct {
	presenters []pipeline.Presenter
	names      []string
	closers    []io.Closer
}

func (s *sinkSet) add(name string, p pipeline.Presenter) {
	s.presenters = append(s.presenters, p)
	s.names = append(s.names, name)
	if c, ok := p.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
}

func (s *sinkSet) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildSinks(cfg config.Config, poses *web.PoseBroadcaster, stdout io.Writer) (*sinkSet, error) {
	s := &sinkSet{}

	if cfg.WebEnabled() && poses != nil {
		s.add("web", poses)
	}
	if cfg.ConsoleEnabled() && stdout != nil {
		s.add("console", pipeline.NewConsole(stdout))
	}
	if cfg.MQTT.Enable {
		m, err := mqttsink.New(mqttsink.Options{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("mqtt sink init failed: %w", err)
		}
		log.Printf("mqtt: broker=%s topic=%s client_id=%s", cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID)
		s.add("mqtt", m)
	}
	if cfg.UDP.Enable {
		u, err := udp.NewSender(cfg.UDP.Dest)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("udp sink init failed: %w", err)
		}
		log.Printf("udp: dest=%s", cfg.UDP.Dest)
		s.add("udp", u)
	}
	if len(s.presenters) == 0 {
		log.Printf("warn: no sinks enabled; poses are decoded and counted only")
	}
	return s, nil
}
