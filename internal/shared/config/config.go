package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
	"sockprobe/internal/shared/types"
)

// 默认目标沿用最初手工测试时使用的地址
const (
	DefaultHost       = "172.16.1.6"
	DefaultPort       = 8080
	DefaultMessage    = "Hello from client"
	DefaultBufferSize = 1024
	DefaultRounds     = 10
	DefaultSegments   = 3
	DefaultPause      = time.Second

	DefaultPeerListen   = "127.0.0.1:8080"
	DefaultPeerGreeting = "Hello from server"
)

// Default returns a config populated with the built-in defaults.
func Default() *types.Config {
	return &types.Config{
		ProbeConf: types.ProbeConf{
			Host:       DefaultHost,
			Port:       DefaultPort,
			Message:    DefaultMessage,
			BufferSize: DefaultBufferSize,
			Rounds:     DefaultRounds,
			Segments:   DefaultSegments,
			Pause:      DefaultPause,
		},
		LogConf:    types.LogConf{Level: "info"},
		ReportConf: types.ReportConf{Format: "text"},
		PeerConf: types.PeerConf{
			Listen:   DefaultPeerListen,
			Greeting: DefaultPeerGreeting,
		},
	}
}

// LoadIni 加载 ini 配置文件，未出现的键保留 cfg 中已有的值。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	return nil
}

// Load builds the effective configuration: defaults, then the optional ini
// file, then environment overrides. An empty fileName skips the file.
func Load(fileName string) (*types.Config, error) {
	cfg := Default()
	if fileName != "" {
		if err := LoadIni(cfg, fileName); err != nil {
			return nil, fmt.Errorf("failed to load config file '%s': %w", fileName, err)
		}
	}
	overrideFromEnvString(&cfg.Host, "PROBE_HOST")
	overrideFromEnvInt(&cfg.Port, "PROBE_PORT")
	overrideFromEnvString(&cfg.Level, "LOG_LEVEL")
	return cfg, nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
