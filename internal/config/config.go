package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	// LeaveGrace is how long a dropped connection keeps its seat.
	LeaveGrace          time.Duration `mapstructure:"leave_grace"`
	MessageRateLimit    int           `mapstructure:"message_rate_limit"`
	MessageRateInterval time.Duration `mapstructure:"message_rate_interval"`
	// Backpressure is "kick" or "drop" for members whose send queue is full.
	Backpressure string `mapstructure:"backpressure"`
}

type ClientConfig struct {
	ServerURL          string        `mapstructure:"server_url"`
	STUNServers        []string      `mapstructure:"stun_servers"`
	TURNServer         string        `mapstructure:"turn_server"`
	TURNUser           string        `mapstructure:"turn_user"`
	TURNPass           string        `mapstructure:"turn_pass"`
	AudioDevice        string        `mapstructure:"audio_device"`
	VideoDevice        string        `mapstructure:"video_device"`
	SignalBufferTTL    time.Duration `mapstructure:"signal_buffer_ttl"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	ReconnectAttempts  int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	LogLevel           string        `mapstructure:"log_level"`
}

func newViper() (*viper.Viper, string) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("huddle")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, fileName
}

func LoadServer() (*ServerConfig, error) {
	v, fileName := newViper()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("log_level", "info")
	v.SetDefault("leave_grace", "10s")
	v.SetDefault("message_rate_limit", 5)
	v.SetDefault("message_rate_interval", "1s")
	v.SetDefault("backpressure", "kick")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}

// LoadClient reads the participant client settings. overrides carries the
// command-line flags the user actually set and wins over file and env.
func LoadClient(overrides map[string]any) (*ClientConfig, error) {
	v, _ := newViper()

	v.SetDefault("server_url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("turn_server", "")
	v.SetDefault("turn_user", "")
	v.SetDefault("turn_pass", "")
	v.SetDefault("audio_device", "Synthetic Microphone")
	v.SetDefault("video_device", "")
	v.SetDefault("signal_buffer_ttl", "5s")
	v.SetDefault("negotiation_timeout", "30s")
	v.SetDefault("reconnect_attempts", 0)
	v.SetDefault("reconnect_delay", "2s")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("log_level", "warn")

	// The client runs fine on defaults alone.
	_ = v.ReadInConfig()

	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
