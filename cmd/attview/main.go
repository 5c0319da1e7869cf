package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attview/internal/config"
	"attview/internal/pipeline"
	"attview/internal/serialport"
	"attview/internal/telemetry"
	"attview/internal/web"
)

type flags struct {
	configPath    string
	device        string
	listen        string
	replayPath    string
	summarizePath string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config")
	flag.StringVar(&f.device, "device", "", "Serial device, overrides serial.device")
	flag.StringVar(&f.listen, "listen", "", "Web listen address, overrides web.listen")
	flag.StringVar(&f.replayPath, "replay", "", "Read records from a capture file instead of the serial port")
	flag.StringVar(&f.summarizePath, "summarize", "", "Print decode statistics for a capture file and exit")
	flag.Parse()

	if f.summarizePath != "" {
		unit := pipeline.Radians
		if f.configPath != "" {
			cfg, err := config.Decode(f.configPath)
			if err != nil {
				log.Fatalf("fatal: config load failed: %v", err)
			}
			if cfg.Telemetry.AngleUnit != "" {
				unit = pipeline.AngleUnit(cfg.Telemetry.AngleUnit)
			}
		}
		if err := printCaptureSummary(os.Stdout, f.summarizePath, unit); err != nil {
			log.Fatalf("fatal: summarize %s: %v", f.summarizePath, err)
		}
		return
	}

	cfg, err := loadConfig(f)
	if err != nil {
		log.Fatalf("fatal: config load failed: %v", err)
	}

	if err := run(cfg, f.replayPath); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the optional config file and applies command-line
// overrides before defaults and validation.
func loadConfig(f flags) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		c, err := config.Decode(f.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = c
	}
	if f.device != "" {
		cfg.Serial.Device = f.device
	}
	if f.replayPath != "" {
		cfg.Serial.Device = f.replayPath
		cfg.Serial.Driver = ""
	}
	if f.listen != "" {
		cfg.Web.Listen = f.listen
	}
	if err := config.DefaultAndValidate(&cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openSource(cfg config.Config, replayPath string) (io.ReadCloser, web.SerialInfo, error) {
	if replayPath != "" {
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, web.SerialInfo{}, fmt.Errorf("open replay: %w", err)
		}
		return f, web.SerialInfo{Device: replayPath, Driver: "replay"}, nil
	}

	opts, err := serialport.Options{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		DataBits:    cfg.Serial.DataBits,
		Parity:      cfg.Serial.Parity,
		StopBits:    cfg.Serial.StopBits,
		ReadTimeout: cfg.Serial.ReadTimeout,
		Driver:      cfg.Serial.Driver,
	}.Normalize()
	if err != nil {
		return nil, web.SerialInfo{}, err
	}
	port, err := serialport.Open(opts)
	if err != nil {
		return nil, web.SerialInfo{}, fmt.Errorf("serial open failed: %w", err)
	}
	info := web.SerialInfo{
		Device: opts.Device,
		Baud:   opts.Baud,
		Mode:   fmt.Sprintf("%d%s%d", opts.DataBits, opts.Parity, opts.StopBits),
		Driver: opts.Driver,
	}
	log.Printf("serial: opened %s", opts)
	return port, info, nil
}

func run(cfg config.Config, replayPath string) error {
	logs := web.NewLogBuffer(cfg.Web.LogLines)
	log.SetOutput(io.MultiWriter(os.Stderr, logs))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, info, err := openSource(cfg, replayPath)
	if err != nil {
		return err
	}
	defer src.Close()

	status := web.NewStatus()
	poses := web.NewPoseBroadcaster()
	status.SetBroadcaster(poses)

	sinks, err := buildSinks(cfg, poses, os.Stdout)
	if err != nil {
		return err
	}
	defer sinks.Close()
	status.SetStatic(info, cfg.Telemetry.AngleUnit, sinks.names)

	log.Printf("attview starting (session %s)", status.Session())
	log.Printf("angle_unit=%s sinks=%v", cfg.Telemetry.AngleUnit, sinks.names)

	if cfg.WebEnabled() {
		go func() {
			log.Printf("web: listening on %s", cfg.Web.Listen)
			if err := web.Serve(ctx, cfg.Web.Listen, web.Handler(status, poses, logs)); err != nil && ctx.Err() == nil {
				log.Printf("warn: web: server stopped: %v", err)
			}
		}()
	}

	fr := telemetry.NewFrameReader(src, telemetry.FrameConfig{
		IdleWait:     cfg.Frame.IdleWait,
		MaxLineBytes: cfg.Frame.MaxLineBytes,
	})
	p := pipeline.New(fr, pipeline.Multi(sinks.presenters...), pipeline.Options{
		AngleUnit: pipeline.AngleUnit(cfg.Telemetry.AngleUnit),
	})
	status.SetStatsSource(p.Stats)

	err = p.Run(ctx)
	log.Printf("attview stopping: %s", p.Stats())

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case replayPath != "" && errors.Is(err, io.EOF):
		log.Printf("replay: reached end of %s", replayPath)
		return nil
	default:
		return err
	}
}
