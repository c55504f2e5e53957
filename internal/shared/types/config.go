package types

import (
	"fmt"
	"time"
)

// ProbeConf 包含探针本身的行为配置
type ProbeConf struct {
	Host            string        `ini:"host"`
	Port            int           `ini:"port"`
	Message         string        `ini:"message"`
	BufferSize      int           `ini:"buffer_size"`
	Rounds          int           `ini:"rounds"`
	Segments        int           `ini:"segments"`
	Pause           time.Duration `ini:"pause"`
	StrictPeerCheck bool          `ini:"strict_peer_check"` // 连接前查询对端失败时是否直接退出
	UnconnectedSend bool          `ini:"probe_unconnected_send"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// ReportConf controls how the probe report is written to stdout.
type ReportConf struct {
	Format string `ini:"format"` // text, json or yaml
}

// PeerConf 包含回显对端 (cmd/peer) 的配置
type PeerConf struct {
	Listen   string `ini:"listen"`
	Greeting string `ini:"greeting"`
}

// Config 是项目的统一配置结构体
type Config struct {
	ProbeConf  `ini:"probe"`
	LogConf    `ini:"log"`
	ReportConf `ini:"report"`
	PeerConf   `ini:"peer"`
}

// Target returns the configured target endpoint.
func (c *Config) Target() (Endpoint, error) {
	return ParseEndpoint(c.Host, c.Port)
}

// Validate checks the probe section for values the probe cannot run with.
func (c *Config) Validate() error {
	if _, err := c.Target(); err != nil {
		return fmt.Errorf("probe target: %w", err)
	}
	if c.Message == "" {
		return fmt.Errorf("probe message must not be empty")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize)
	}
	if c.Rounds <= 0 {
		return fmt.Errorf("rounds must be positive, got %d", c.Rounds)
	}
	if c.Segments <= 0 {
		return fmt.Errorf("segments must be positive, got %d", c.Segments)
	}
	if c.Pause < 0 {
		return fmt.Errorf("pause must not be negative, got %s", c.Pause)
	}
	switch c.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown report format %q", c.Format)
	}
	return nil
}
