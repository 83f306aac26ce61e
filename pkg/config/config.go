package config

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var appCnf *AppConfig

type AppConfig struct {
	RDS       *redis.Client
	Logger    *logrus.Logger
	NatsConn  *nats.Conn
	JetStream jetstream.JetStream

	RootWorkingDir string

	Client        ClientInfo            `yaml:"client"`
	LogSettings   LogSettings           `yaml:"log_settings"`
	RedisInfo     RedisInfo             `yaml:"redis_info"`
	NatsInfo      *NatsInfo             `yaml:"nats_info"`
	Transcription TranscriptionSettings `yaml:"transcription"`
	CallMediaInfo CallMediaInfo         `yaml:"call_media_info"`
	AgentInfo     AgentInfo             `yaml:"agent_info"`

	startedAt time.Time
	// openChannels tracks live transcription channels, local to this instance.
	openChannels map[string]string
	mu           sync.Mutex
}

type ClientInfo struct {
	Port           int            `yaml:"port"`
	Debug          bool           `yaml:"debug"`
	ProxyHeader    string         `yaml:"proxy_header"`
	PrometheusConf PrometheusConf `yaml:"prometheus"`
}

type PrometheusConf struct {
	Enable      bool   `yaml:"enable"`
	MetricsPath string `yaml:"metrics_path"`
}

type LogSettings struct {
	LogLevel   *string `yaml:"log_level"`
	LogFile    string  `yaml:"log_file"`
	MaxSize    int     `yaml:"max_size"`
	MaxBackups int     `yaml:"max_backups"`
	MaxAge     int     `yaml:"max_age"`
}

type RedisInfo struct {
	Host              string   `yaml:"host"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	DBName            int      `yaml:"db"`
	UseTLS            bool     `yaml:"use_tls"`
	MasterName        string   `yaml:"sentinel_master_name"`
	SentinelUsername  string   `yaml:"sentinel_username"`
	SentinelPassword  string   `yaml:"sentinel_password"`
	SentinelAddresses []string `yaml:"sentinel_addresses"`
}

type NatsInfo struct {
	NatsUrls      []string       `yaml:"nats_urls"`
	User          string         `yaml:"user"`
	Password      string         `yaml:"password"`
	Nkey          *string        `yaml:"nkey"`
	NumReplicas   int            `yaml:"num_replicas"`
	TranscriptTTL *time.Duration `yaml:"transcript_ttl"`
}

// TranscriptionSettings tunes the per-call streaming channels.
type TranscriptionSettings struct {
	// IdleTimeout closes a channel that received no frame within the window.
	IdleTimeout *time.Duration `yaml:"idle_timeout"`
	// EagerForwardMinChars is the minimum partial text length worth forwarding
	// ahead of the final result.
	EagerForwardMinChars *int `yaml:"eager_forward_min_chars"`
	// ReadBufferSize is the size of the per-read receive buffer.
	ReadBufferSize int `yaml:"read_buffer_size"`
}

// CallMediaInfo points at the telephony platform's call-control API.
type CallMediaInfo struct {
	Endpoint       string         `yaml:"endpoint"`
	ApiVersion     string         `yaml:"api_version"`
	AccessKey      string         `yaml:"access_key"`
	RequestTimeout *time.Duration `yaml:"request_timeout"`
}

// AgentInfo configures the conversational agent the relay forwards utterances to.
type AgentInfo struct {
	// Provider selects the forwarder implementation: "webhook" or "openai".
	Provider       string         `yaml:"provider"`
	WebhookUrl     string         `yaml:"webhook_url"`
	ApiKey         string         `yaml:"api_key"`
	Endpoint       string         `yaml:"endpoint"`
	Model          string         `yaml:"model"`
	RequestTimeout *time.Duration `yaml:"request_timeout"`
}

// New applies defaults, stores the config for global usage and returns it.
func New(a *AppConfig) (*AppConfig, error) {
	if a.Transcription.IdleTimeout == nil || *a.Transcription.IdleTimeout <= 0 {
		d := DefaultChannelIdleTimeout
		a.Transcription.IdleTimeout = &d
	}
	if a.Transcription.EagerForwardMinChars == nil || *a.Transcription.EagerForwardMinChars < 0 {
		n := DefaultEagerForwardMinChars
		a.Transcription.EagerForwardMinChars = &n
	}
	if a.Transcription.ReadBufferSize <= 0 {
		a.Transcription.ReadBufferSize = DefaultReadBufferSize
	}
	if a.CallMediaInfo.ApiVersion == "" {
		a.CallMediaInfo.ApiVersion = DefaultCallMediaApiVersion
	}
	if a.CallMediaInfo.RequestTimeout == nil || *a.CallMediaInfo.RequestTimeout <= 0 {
		d := DefaultUpstreamRequestTimeout
		a.CallMediaInfo.RequestTimeout = &d
	}
	if a.AgentInfo.Provider == "" {
		a.AgentInfo.Provider = AgentProviderWebhook
	}
	if a.AgentInfo.RequestTimeout == nil || *a.AgentInfo.RequestTimeout <= 0 {
		d := DefaultUpstreamRequestTimeout
		a.AgentInfo.RequestTimeout = &d
	}
	if a.NatsInfo != nil {
		if a.NatsInfo.NumReplicas <= 0 {
			a.NatsInfo.NumReplicas = 1
		}
		if a.NatsInfo.TranscriptTTL == nil || *a.NatsInfo.TranscriptTTL <= 0 {
			d := DefaultTranscriptTTL
			a.NatsInfo.TranscriptTTL = &d
		}
	}

	a.startedAt = time.Now()
	a.openChannels = make(map[string]string)

	appCnf = a
	return appCnf, nil
}

func GetConfig() *AppConfig {
	return appCnf
}

func (a *AppConfig) Uptime() time.Duration {
	return time.Since(a.startedAt)
}

// AddOpenChannel registers a live channel by its id with the correlation id it serves.
func (a *AppConfig) AddOpenChannel(channelId, correlationId string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openChannels[channelId] = correlationId
}

func (a *AppConfig) RemoveOpenChannel(channelId string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.openChannels, channelId)
}

func (a *AppConfig) CountOpenChannels() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.openChannels)
}
