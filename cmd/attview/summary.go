package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"attview/internal/pipeline"
	"attview/internal/telemetry"
)

// summarizeCapture runs a recorded byte stream through the decode and solve
// stages without any presenter and returns the final counters.
func summarizeCapture(r io.Reader, unit pipeline.AngleUnit) (pipeline.Stats, error) {
	fr := telemetry.NewFrameReader(r, telemetry.FrameConfig{})
	p := pipeline.New(fr, nil, pipeline.Options{
		AngleUnit: unit,
		Logger:    log.New(io.Discard, "", 0),
	})
	err := p.Run(context.Background())
	if err != nil && !errors.Is(err, io.EOF) {
		return p.Stats(), err
	}
	return p.Stats(), nil
}

func printCaptureSummary(w io.Writer, path string, unit pipeline.AngleUnit) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := summarizeCapture(f, unit)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "angle_unit: %s\n", unit)
	fmt.Fprintf(w, "summary: %s\n", s)
	if s.LastError != "" {
		fmt.Fprintf(w, "last_error: %s\n", s.LastError)
	}
	return nil
}
