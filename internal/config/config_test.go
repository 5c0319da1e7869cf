package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const minimal = "serial:\n  device: /dev/ttyUSB0\n"

func TestLoad_RequiresDevice(t *testing.T) {
	path := writeTempConfig(t, "serial: {}\n")
	_, err := Load(path)
	requireErrEq(t, err, "serial.device is required")
}

func TestLoad_EmptyFileRequiresDevice(t *testing.T) {
	path := writeTempConfig(t, "")
	_, err := Load(path)
	requireErrEq(t, err, "serial.device is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, minimal)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("baud=%d want 115200", cfg.Serial.Baud)
	}
	if cfg.Serial.DataBits != 8 || cfg.Serial.Parity != "N" || cfg.Serial.StopBits != 1 {
		t.Fatalf("mode=%d%s%d want 8N1", cfg.Serial.DataBits, cfg.Serial.Parity, cfg.Serial.StopBits)
	}
	if cfg.Serial.ReadTimeout != 100*time.Millisecond {
		t.Fatalf("read_timeout=%s want 100ms", cfg.Serial.ReadTimeout)
	}
	if cfg.Telemetry.AngleUnit != "radians" {
		t.Fatalf("angle_unit=%q want radians", cfg.Telemetry.AngleUnit)
	}
	if cfg.Frame.IdleWait != 5*time.Millisecond || cfg.Frame.MaxLineBytes != 4096 {
		t.Fatalf("frame=%+v", cfg.Frame)
	}
	if !cfg.WebEnabled() || cfg.Web.Listen != ":8080" || cfg.Web.LogLines != 2000 {
		t.Fatalf("web=%+v enabled=%v", cfg.Web, cfg.WebEnabled())
	}
	if !cfg.ConsoleEnabled() {
		t.Fatalf("expected console enabled by default")
	}
	if cfg.MQTT.Enable || cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.Topic != "attview/pose" {
		t.Fatalf("mqtt=%+v", cfg.MQTT)
	}
	if !strings.HasPrefix(cfg.MQTT.ClientID, "attview-") || len(cfg.MQTT.ClientID) != len("attview-")+8 {
		t.Fatalf("client_id=%q", cfg.MQTT.ClientID)
	}
	if cfg.UDP.Enable || cfg.UDP.Dest != "127.0.0.1:49002" {
		t.Fatalf("udp=%+v", cfg.UDP)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	body := minimal +
		"  baud: 57600\n  parity: e\n  stop_bits: 2\n  read_timeout: 250ms\n  driver: BUGST\n" +
		"telemetry:\n  angle_unit: Degrees\n" +
		"web:\n  enable: false\n  listen: '127.0.0.1:9000'\n" +
		"console:\n  enable: false\n" +
		"mqtt:\n  enable: true\n  client_id: bench\n"
	cfg, err := Load(writeTempConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Serial.Baud != 57600 || cfg.Serial.Parity != "E" || cfg.Serial.StopBits != 2 {
		t.Fatalf("serial=%+v", cfg.Serial)
	}
	if cfg.Serial.ReadTimeout != 250*time.Millisecond {
		t.Fatalf("read_timeout=%s want 250ms", cfg.Serial.ReadTimeout)
	}
	if cfg.Serial.Driver != "bugst" {
		t.Fatalf("driver=%q want bugst", cfg.Serial.Driver)
	}
	if cfg.Telemetry.AngleUnit != "degrees" {
		t.Fatalf("angle_unit=%q want degrees", cfg.Telemetry.AngleUnit)
	}
	if cfg.WebEnabled() || cfg.Web.Listen != "127.0.0.1:9000" {
		t.Fatalf("web=%+v", cfg.Web)
	}
	if cfg.ConsoleEnabled() {
		t.Fatalf("expected console disabled")
	}
	if !cfg.MQTT.Enable || cfg.MQTT.ClientID != "bench" {
		t.Fatalf("mqtt=%+v", cfg.MQTT)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name  string
		extra string
		want  string
	}{
		{
			name:  "DataBits",
			extra: "  data_bits: 9\n",
			want:  "serial.data_bits must be between 5 and 8",
		},
		{
			name:  "Parity",
			extra: "  parity: mark\n",
			want:  "serial.parity must be one of 'N', 'E', 'O'",
		},
		{
			name:  "StopBits",
			extra: "  stop_bits: 3\n",
			want:  "serial.stop_bits must be 1 or 2",
		},
		{
			name:  "Driver",
			extra: "  driver: ftdi\n",
			want:  "serial.driver must be 'termios' or 'bugst'",
		},
		{
			name:  "AngleUnit",
			extra: "telemetry:\n  angle_unit: gradians\n",
			want:  "telemetry.angle_unit must be 'radians' or 'degrees'",
		},
		{
			name:  "MaxLineBytes",
			extra: "frame:\n  max_line_bytes: 10\n",
			want:  "frame.max_line_bytes must be >= 64",
		},
		{
			name:  "MQTTBroker",
			extra: "mqtt:\n  broker: localhost\n",
			want:  "mqtt.broker must be a URL such as tcp://host:1883",
		},
		{
			name:  "MQTTTopic",
			extra: "mqtt:\n  topic: 'attview/#'\n",
			want:  "mqtt.topic must not contain wildcards",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, minimal+tc.extra)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_UDPDestMustHavePort(t *testing.T) {
	path := writeTempConfig(t, minimal+"udp:\n  enable: true\n  dest: 'localhost'\n")
	_, err := Load(path)
	if err == nil || !strings.HasPrefix(err.Error(), "udp.dest must be host:port") {
		t.Fatalf("err=%v want udp.dest must be host:port", err)
	}
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeTempConfig(t, minimal+"web:\n  colour: blue\n")
	_, err := Load(path)
	requireErrEq(t, err, "config contains unknown fields: field colour not found in type config.WebConfig")
}

func TestDefaultAndValidate_AfterOverride(t *testing.T) {
	var cfg Config
	cfg.Serial.Device = "/dev/ttyACM1"
	if err := DefaultAndValidate(&cfg); err != nil {
		t.Fatalf("DefaultAndValidate() error: %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("baud=%d want 115200", cfg.Serial.Baud)
	}
	requireErrEq(t, DefaultAndValidate(nil), "config is nil")
}

func TestDecode_DoesNotApplyDefaults(t *testing.T) {
	cfg, err := Decode(writeTempConfig(t, "web:\n  listen: ':9999'\n"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if cfg.Serial.Baud != 0 || cfg.Web.Listen != ":9999" {
		t.Fatalf("cfg=%+v", cfg)
	}
}
