package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Drone     DroneConfig     `yaml:"drone"`
	Stream    StreamConfig    `yaml:"stream"`
	Recording RecordingConfig `yaml:"recording"`
	Media     MediaConfig     `yaml:"media"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DroneConfig struct {
	Host         string        `yaml:"host"`
	CommandPort  int           `yaml:"command_port"`
	VideoPort    int           `yaml:"video_port"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
}

func (d DroneConfig) CommandAddr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.CommandPort)
}

type StreamConfig struct {
	FFmpegPath     string        `yaml:"ffmpeg_path"`
	ChunkPackets   int           `yaml:"chunk_packets"`
	RestartBackoff time.Duration `yaml:"restart_backoff"`
	// MaxRestarts caps automatic transcoder restarts. 0 means unlimited.
	MaxRestarts int `yaml:"max_restarts"`
}

type RecordingConfig struct {
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// Reencode trades CPU for robustness against malformed input.
	Reencode bool `yaml:"reencode"`
}

type MediaConfig struct {
	RootDir string `yaml:"root_dir"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable overrides.
// A missing file is not an error: the relay runs fine on defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Drone.Host == "" {
		cfg.Drone.Host = "192.168.10.1"
	}
	if cfg.Drone.CommandPort == 0 {
		cfg.Drone.CommandPort = 8889
	}
	if cfg.Drone.VideoPort == 0 {
		cfg.Drone.VideoPort = 11111
	}
	if cfg.Drone.PollInterval == 0 {
		cfg.Drone.PollInterval = 5 * time.Second
	}
	if cfg.Drone.PollTimeout == 0 {
		cfg.Drone.PollTimeout = time.Second
	}
	if cfg.Stream.FFmpegPath == "" {
		cfg.Stream.FFmpegPath = "ffmpeg"
	}
	if cfg.Stream.ChunkPackets == 0 {
		cfg.Stream.ChunkPackets = 21
	}
	if cfg.Stream.RestartBackoff == 0 {
		cfg.Stream.RestartBackoff = time.Second
	}
	if cfg.Recording.StopTimeout == 0 {
		cfg.Recording.StopTimeout = 5 * time.Second
	}
	if cfg.Media.RootDir == "" {
		cfg.Media.RootDir = "media"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "drone"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DRELAY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DRELAY_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("DRELAY_DRONE_HOST"); v != "" {
		cfg.Drone.Host = v
	}
	if v := os.Getenv("DRELAY_DRONE_COMMAND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Drone.CommandPort = port
		}
	}
	if v := os.Getenv("DRELAY_DRONE_VIDEO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Drone.VideoPort = port
		}
	}
	if v := os.Getenv("DRELAY_FFMPEG_PATH"); v != "" {
		cfg.Stream.FFmpegPath = v
	}
	if v := os.Getenv("DRELAY_MEDIA_DIR"); v != "" {
		cfg.Media.RootDir = v
	}
	if v := os.Getenv("DRELAY_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("DRELAY_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("DRELAY_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("DRELAY_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("DRELAY_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("DRELAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DRELAY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
