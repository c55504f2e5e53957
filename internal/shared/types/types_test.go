package types

import (
	"strings"
	"testing"
	"time"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    int
		want    string
		wantErr string
	}{
		{name: "ipv4", host: "172.16.1.6", port: 8080, want: "172.16.1.6:8080"},
		{name: "loopback", host: "127.0.0.1", port: 1, want: "127.0.0.1:1"},
		{name: "hostname", host: "localhost", port: 8080, wantErr: "invalid address"},
		{name: "ipv6", host: "::1", port: 8080, wantErr: "only IPv4"},
		{name: "zero port", host: "127.0.0.1", port: 0, wantErr: "invalid port"},
		{name: "port overflow", host: "127.0.0.1", port: 70000, wantErr: "invalid port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.host, tt.port)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ParseEndpoint(%q, %d) error = %v, want containing %q", tt.host, tt.port, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint(%q, %d) returned an error: %v", tt.host, tt.port, err)
			}
			if ep.String() != tt.want {
				t.Errorf("Expected '%s', but got '%s'", tt.want, ep.String())
			}
		})
	}
}

func TestEndpointUnspecified(t *testing.T) {
	var zero Endpoint
	if !zero.IsUnspecified() {
		t.Errorf("zero Endpoint should be unspecified")
	}
	if zero.String() != "0.0.0.0:0" {
		t.Errorf("Expected '0.0.0.0:0', but got '%s'", zero.String())
	}
	if !EndpointFrom4([4]byte{}, 0).IsUnspecified() {
		t.Errorf("0.0.0.0:0 should be unspecified")
	}
	if EndpointFrom4([4]byte{127, 0, 0, 1}, 0).IsUnspecified() {
		t.Errorf("127.0.0.1:0 should not be unspecified")
	}
	ep := EndpointFrom4([4]byte{10, 0, 0, 1}, 4242)
	if ep.Octets() != [4]byte{10, 0, 0, 1} {
		t.Errorf("Octets() = %v", ep.Octets())
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ProbeConf: ProbeConf{
				Host: "127.0.0.1", Port: 8080, Message: "Hello from client",
				BufferSize: 1024, Rounds: 10, Segments: 3, Pause: time.Second,
			},
			ReportConf: ReportConf{Format: "text"},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate() on a valid config returned an error: %v", err)
	}

	mutations := map[string]func(c *Config){
		"bad host":       func(c *Config) { c.Host = "example.com" },
		"empty message":  func(c *Config) { c.Message = "" },
		"zero buffer":    func(c *Config) { c.BufferSize = 0 },
		"zero rounds":    func(c *Config) { c.Rounds = 0 },
		"zero segments":  func(c *Config) { c.Segments = 0 },
		"negative pause": func(c *Config) { c.Pause = -time.Second },
		"bad format":     func(c *Config) { c.Format = "xml" },
	}
	for name, mutate := range mutations {
		cfg := valid()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected Validate() to fail", name)
		}
	}
}

func TestSessionStateString(t *testing.T) {
	if StateUnconnected.String() != "unconnected" || StateConnected.String() != "connected" || StateClosed.String() != "closed" {
		t.Errorf("unexpected state names: %s %s %s", StateUnconnected, StateConnected, StateClosed)
	}
}
