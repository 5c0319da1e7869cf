package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Frame     FrameConfig     `yaml:"frame"`
	Web       WebConfig       `yaml:"web"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	UDP       UDPConfig       `yaml:"udp"`
	Console   ConsoleConfig   `yaml:"console"`
}

type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	DataBits    int           `yaml:"data_bits"`
	Parity      string        `yaml:"parity"`
	StopBits    int           `yaml:"stop_bits"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// Driver is "termios", "bugst" or empty for the platform default.
	Driver string `yaml:"driver"`
}

type TelemetryConfig struct {
	// AngleUnit is "radians" (default) or "degrees".
	AngleUnit string `yaml:"angle_unit"`
}

type FrameConfig struct {
	IdleWait     time.Duration `yaml:"idle_wait"`
	MaxLineBytes int           `yaml:"max_line_bytes"`
}

type WebConfig struct {
	Enable   *bool  `yaml:"enable"`
	Listen   string `yaml:"listen"`
	LogLines int    `yaml:"log_lines"`
}

type MQTTConfig struct {
	Enable   bool   `yaml:"enable"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type ConsoleConfig struct {
	Enable *bool `yaml:"enable"`
}

// WebEnabled reports whether the web UI should run. Unset means enabled.
func (c Config) WebEnabled() bool {
	return c.Web.Enable == nil || *c.Web.Enable
}

// ConsoleEnabled reports whether poses are printed to stdout. Unset means enabled.
func (c Config) ConsoleEnabled() bool {
	return c.Console.Enable == nil || *c.Console.Enable
}

var lineNumberPrefix = regexp.MustCompile(`^line \d+: `)

// Decode reads and parses the YAML file without applying defaults.
// Unknown keys are rejected.
func Decode(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return decodeBytes(b)
}

func decodeBytes(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, nil
		}
		var te *yaml.TypeError
		if errors.As(err, &te) && allUnknownFields(te.Errors) {
			msgs := make([]string, 0, len(te.Errors))
			for _, e := range te.Errors {
				msgs = append(msgs, lineNumberPrefix.ReplaceAllString(e, ""))
			}
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(msgs, "; "))
		}
		return Config{}, err
	}
	return cfg, nil
}

func allUnknownFields(errs []string) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !strings.Contains(e, " not found in type ") {
			return false
		}
	}
	return true
}

// Load reads, parses, defaults and validates the YAML file.
func Load(path string) (Config, error) {
	cfg, err := Decode(path)
	if err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills unset values and rejects inconsistent ones. It is
// also used after command-line overrides have been applied.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	cfg.Serial.Device = strings.TrimSpace(cfg.Serial.Device)
	if cfg.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be > 0")
	}
	if cfg.Serial.DataBits == 0 {
		cfg.Serial.DataBits = 8
	}
	if cfg.Serial.DataBits < 5 || cfg.Serial.DataBits > 8 {
		return fmt.Errorf("serial.data_bits must be between 5 and 8")
	}
	cfg.Serial.Parity = strings.ToUpper(strings.TrimSpace(cfg.Serial.Parity))
	if cfg.Serial.Parity == "" {
		cfg.Serial.Parity = "N"
	}
	switch cfg.Serial.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("serial.parity must be one of 'N', 'E', 'O'")
	}
	if cfg.Serial.StopBits == 0 {
		cfg.Serial.StopBits = 1
	}
	if cfg.Serial.StopBits != 1 && cfg.Serial.StopBits != 2 {
		return fmt.Errorf("serial.stop_bits must be 1 or 2")
	}
	if cfg.Serial.ReadTimeout <= 0 {
		cfg.Serial.ReadTimeout = 100 * time.Millisecond
	}
	cfg.Serial.Driver = strings.ToLower(strings.TrimSpace(cfg.Serial.Driver))
	switch cfg.Serial.Driver {
	case "", "termios", "bugst":
	default:
		return fmt.Errorf("serial.driver must be 'termios' or 'bugst'")
	}

	cfg.Telemetry.AngleUnit = strings.ToLower(strings.TrimSpace(cfg.Telemetry.AngleUnit))
	if cfg.Telemetry.AngleUnit == "" {
		cfg.Telemetry.AngleUnit = "radians"
	}
	if cfg.Telemetry.AngleUnit != "radians" && cfg.Telemetry.AngleUnit != "degrees" {
		return fmt.Errorf("telemetry.angle_unit must be 'radians' or 'degrees'")
	}

	if cfg.Frame.IdleWait <= 0 {
		cfg.Frame.IdleWait = 5 * time.Millisecond
	}
	if cfg.Frame.MaxLineBytes == 0 {
		cfg.Frame.MaxLineBytes = 4096
	}
	if cfg.Frame.MaxLineBytes < 64 {
		return fmt.Errorf("frame.max_line_bytes must be >= 64")
	}

	if strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.Web.LogLines <= 0 {
		cfg.Web.LogLines = 2000
	}

	cfg.MQTT.Broker = strings.TrimSpace(cfg.MQTT.Broker)
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if !strings.Contains(cfg.MQTT.Broker, "://") {
		return fmt.Errorf("mqtt.broker must be a URL such as tcp://host:1883")
	}
	if strings.TrimSpace(cfg.MQTT.Topic) == "" {
		cfg.MQTT.Topic = "attview/pose"
	}
	if strings.ContainsAny(cfg.MQTT.Topic, "+#") {
		return fmt.Errorf("mqtt.topic must not contain wildcards")
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "attview-" + uuid.NewString()[:8]
	}

	cfg.UDP.Dest = strings.TrimSpace(cfg.UDP.Dest)
	if cfg.UDP.Dest == "" {
		cfg.UDP.Dest = "127.0.0.1:49002"
	}
	if _, _, err := net.SplitHostPort(cfg.UDP.Dest); err != nil {
		return fmt.Errorf("udp.dest must be host:port: %w", err)
	}

	return nil
}
