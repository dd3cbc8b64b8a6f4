package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Queue    QueueConfig    `yaml:"queue"`
	Camera   CameraConfig   `yaml:"camera"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	APIKey      string `yaml:"api_key"`
	AdminSecret string `yaml:"admin_secret"`
	// ReportRateLimit caps segment reports per client per ReportRateWindow.
	ReportRateLimit  int           `yaml:"report_rate_limit"`
	ReportRateWindow time.Duration `yaml:"report_rate_window"`
}

// DatabaseConfig selects the daily summary archive. An empty driver disables it.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres, sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
	Path     string `yaml:"path"` // sqlite file
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// MinIOConfig configures the reset snapshot bucket. An empty endpoint disables it.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type QueueConfig struct {
	Opening          string        `yaml:"opening"`
	Closing          string        `yaml:"closing"`
	ServiceMinutes   int           `yaml:"service_minutes"`
	SecondaryWindow  bool          `yaml:"secondary_window"`
	SecondaryCutover int           `yaml:"secondary_cutover"`
	LivenessWindow   time.Duration `yaml:"liveness_window"`
	MinDwell         time.Duration `yaml:"min_dwell"`
	Timezone         string        `yaml:"timezone"`
}

// Schedule returns the parsed opening and closing times.
func (q QueueConfig) Schedule() (opening, closing ClockTime, err error) {
	opening, err = ParseClock(q.Opening)
	if err != nil {
		return opening, closing, fmt.Errorf("opening: %w", err)
	}
	closing, err = ParseClock(q.Closing)
	if err != nil {
		return opening, closing, fmt.Errorf("closing: %w", err)
	}
	return opening, closing, nil
}

// Location returns the time zone calendar days and closing time are evaluated in.
func (q QueueConfig) Location() *time.Location {
	if q.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CameraConfig describes the single camera a segmenter process serves.
type CameraConfig struct {
	ID             string        `yaml:"id"`
	Segment        int           `yaml:"segment"`
	Zone           [][2]float64  `yaml:"zone"`
	Origin         [2]float64    `yaml:"origin"`
	Direction      [2]float64    `yaml:"direction"`
	MinConfidence  float64       `yaml:"min_confidence"`
	FusionDistance float64       `yaml:"fusion_distance"`
	MaxDistance    float64       `yaml:"max_distance"`
	MaxDisappeared int           `yaml:"max_disappeared"`
	SendInterval   time.Duration `yaml:"send_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ReportRateLimit == 0 {
		cfg.Server.ReportRateLimit = 120
	}
	if cfg.Server.ReportRateWindow == 0 {
		cfg.Server.ReportRateWindow = time.Minute
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 5
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/fila.db"
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "fila-snapshots"
	}
	if cfg.Queue.Opening == "" {
		cfg.Queue.Opening = "09:00"
	}
	if cfg.Queue.Closing == "" {
		cfg.Queue.Closing = "17:00"
	}
	if cfg.Queue.ServiceMinutes == 0 {
		cfg.Queue.ServiceMinutes = 3
	}
	if cfg.Queue.LivenessWindow == 0 {
		cfg.Queue.LivenessWindow = 10 * time.Second
	}
	if cfg.Queue.MinDwell == 0 {
		cfg.Queue.MinDwell = 30 * time.Second
	}
	if cfg.Camera.Segment == 0 {
		cfg.Camera.Segment = 1
	}
	if len(cfg.Camera.Zone) == 0 {
		cfg.Camera.Zone = [][2]float64{{100, 100}, {1180, 100}, {1180, 700}, {100, 700}}
	}
	if cfg.Camera.Direction == [2]float64{} {
		cfg.Camera.Direction = [2]float64{0, 1}
	}
	if cfg.Camera.MinConfidence == 0 {
		cfg.Camera.MinConfidence = 0.5
	}
	if cfg.Camera.FusionDistance == 0 {
		cfg.Camera.FusionDistance = 80
	}
	if cfg.Camera.MaxDistance == 0 {
		cfg.Camera.MaxDistance = 100
	}
	if cfg.Camera.MaxDisappeared == 0 {
		cfg.Camera.MaxDisappeared = 45
	}
	if cfg.Camera.SendInterval == 0 {
		cfg.Camera.SendInterval = 2 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if _, _, err := cfg.Queue.Schedule(); err != nil {
		return err
	}
	if cfg.Queue.ServiceMinutes < 0 {
		return fmt.Errorf("service_minutes must be positive, got %d", cfg.Queue.ServiceMinutes)
	}
	if cfg.Queue.SecondaryCutover < 0 {
		return fmt.Errorf("secondary_cutover must not be negative, got %d", cfg.Queue.SecondaryCutover)
	}
	for name, d := range map[string]time.Duration{
		"server.report_rate_window": cfg.Server.ReportRateWindow,
		"queue.liveness_window":     cfg.Queue.LivenessWindow,
		"queue.min_dwell":           cfg.Queue.MinDwell,
		"camera.send_interval":      cfg.Camera.SendInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if cfg.Queue.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Queue.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if cfg.Camera.Segment < 1 {
		return fmt.Errorf("camera segment must be >= 1, got %d", cfg.Camera.Segment)
	}
	if len(cfg.Camera.Zone) < 3 {
		return fmt.Errorf("camera zone needs at least 3 points, got %d", len(cfg.Camera.Zone))
	}
	switch cfg.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QW_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("QW_ADMIN_SECRET"); v != "" {
		cfg.Server.AdminSecret = v
	}
	if v := os.Getenv("QW_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("QW_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("QW_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("QW_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("QW_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("QW_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("QW_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("QW_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("QW_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("QW_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("QW_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("QW_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("QW_SERVICE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.ServiceMinutes = n
		}
	}
	if v := os.Getenv("QW_CAMERA_ID"); v != "" {
		cfg.Camera.ID = v
	}
	if v := os.Getenv("QW_CAMERA_SEGMENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Camera.Segment = n
		}
	}
}
