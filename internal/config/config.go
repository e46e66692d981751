package config

import (
	"fmt"
	"time"

	"github.com/kartracer/kartsim/internal/physics"
	"github.com/kartracer/kartsim/internal/track"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "kartsim.cfg.json"

// SimConfig holds session timing settings
type SimConfig struct {
	TickInterval    time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	PublishInterval time.Duration `json:"publishInterval" mapstructure:"publishInterval"`
	Debounce        time.Duration `json:"debounce" mapstructure:"debounce"`
	Duration        time.Duration `json:"duration" mapstructure:"duration"`
	Karts           int           `json:"karts" mapstructure:"karts"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds in-memory SQLite backend settings
type SQLiteConfig struct {
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database,
	)
}

// StorageConfig selects and configures the recording backend
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB telemetry settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// TransportConfig holds the observer websocket settings
type TransportConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
	Path    string `json:"path" mapstructure:"path"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// TrackConfig selects the track. An empty File uses the built-in stadium.
type TrackConfig struct {
	File    string              `json:"file" mapstructure:"file"`
	Stadium track.StadiumConfig `json:"stadium" mapstructure:"stadium"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./kartlogs")

	viper.SetDefault("sim.tickInterval", "20ms")
	viper.SetDefault("sim.publishInterval", "66ms")
	viper.SetDefault("sim.debounce", "100ms")
	viper.SetDefault("sim.duration", "2m")
	viper.SetDefault("sim.karts", 4)

	h := core.DefaultHandlingProfile()
	for _, s := range core.AllStats() {
		viper.SetDefault("handling."+s.String(), h.Get(s))
	}

	p := physics.DefaultConfig()
	viper.SetDefault("physics.groundProbeOffset", p.GroundProbeOffset)
	viper.SetDefault("physics.groundProbeLength", p.GroundProbeLength)
	viper.SetDefault("physics.orientationProbeLength", p.OrientationProbeLength)
	viper.SetDefault("physics.recoveryProbeLength", p.RecoveryProbeLength)
	viper.SetDefault("physics.liftForce", p.LiftForce)
	viper.SetDefault("physics.recoveryRate", p.RecoveryRate)
	viper.SetDefault("physics.levelRate", p.LevelRate)
	viper.SetDefault("physics.rideHeight", p.RideHeight)
	viper.SetDefault("physics.mass", p.Mass)
	viper.SetDefault("physics.gravity", p.Gravity)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./replays")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.outputDir", "./replays")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "kartsim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "kartsim")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "kartsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("transport.enabled", true)
	viper.SetDefault("transport.listen", "127.0.0.1:7700")
	viper.SetDefault("transport.path", "/ws")
	viper.SetDefault("transport.secret", "")

	st := track.DefaultStadium()
	viper.SetDefault("track.file", "")
	viper.SetDefault("track.stadium.straightLength", st.StraightLength)
	viper.SetDefault("track.stadium.radius", st.Radius)
	viper.SetDefault("track.stadium.width", st.Width)
	viper.SetDefault("track.stadium.segments", st.Segments)
}

// GetSimConfig returns session timing.
func GetSimConfig() SimConfig {
	return SimConfig{
		TickInterval:    viper.GetDuration("sim.tickInterval"),
		PublishInterval: viper.GetDuration("sim.publishInterval"),
		Debounce:        viper.GetDuration("sim.debounce"),
		Duration:        viper.GetDuration("sim.duration"),
		Karts:           viper.GetInt("sim.karts"),
	}
}

// GetHandlingProfile returns the baseline handling, falling back to the
// stock profile for any field the config omits.
func GetHandlingProfile() (core.HandlingProfile, error) {
	p := core.DefaultHandlingProfile()
	if err := viper.UnmarshalKey("handling", &p); err != nil {
		return p, fmt.Errorf("error decoding handling profile: %w", err)
	}
	return p, nil
}

// GetPhysicsConfig returns the integrator settings.
func GetPhysicsConfig() (physics.Config, error) {
	c := physics.DefaultConfig()
	if err := viper.UnmarshalKey("physics", &c); err != nil {
		return c, fmt.Errorf("error decoding physics config: %w", err)
	}
	return c, nil
}

// GetStorageConfig returns the recording backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
		},
	}
}

// GetOTelConfig returns OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetTransportConfig returns the observer websocket settings.
func GetTransportConfig() TransportConfig {
	return TransportConfig{
		Enabled: viper.GetBool("transport.enabled"),
		Listen:  viper.GetString("transport.listen"),
		Path:    viper.GetString("transport.path"),
		Secret:  viper.GetString("transport.secret"),
	}
}

// GetTrackConfig returns the track selection.
func GetTrackConfig() TrackConfig {
	return TrackConfig{
		File: viper.GetString("track.file"),
		Stadium: track.StadiumConfig{
			StraightLength: viper.GetFloat64("track.stadium.straightLength"),
			Radius:         viper.GetFloat64("track.stadium.radius"),
			Width:          viper.GetFloat64("track.stadium.width"),
			Segments:       viper.GetInt("track.stadium.segments"),
		},
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// Load builds the configured track: the file when one is set, otherwise
// the built-in stadium.
func (c TrackConfig) Load() (*track.Track, error) {
	if c.File != "" {
		return track.LoadFile(c.File)
	}
	return track.Stadium(c.Stadium)
}
