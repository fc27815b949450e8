package config

import "time"

// StreamerConfig is the root configuration for a streamer instance.
type StreamerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DBConfig       `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this streamer.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// StreamConfig holds the realtime endpoint and connection behavior.
type StreamConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"` // static access token; omit when a token provider is wired

	Channels []string `yaml:"channels"` // channels subscribed at startup

	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	RotateInterval     time.Duration `yaml:"rotate_interval"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	ReconnectJitter    float64       `yaml:"reconnect_jitter"`
	MaxAttempts        int           `yaml:"max_attempts"` // 0 retries forever
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds frame persistence settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
