package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const AppName = "docchat"

type Settings struct {
	Server  ServerSettings  `mapstructure:"server" yaml:"server"`
	Reveal  RevealSettings  `mapstructure:"reveal" yaml:"reveal"`
	Notice  NoticeSettings  `mapstructure:"notice" yaml:"notice"`
	Cache   CacheSettings   `mapstructure:"cache" yaml:"cache"`
	Redis   RedisSettings   `mapstructure:"redis" yaml:"redis"`
	Speech  SpeechSettings  `mapstructure:"speech" yaml:"speech"`
	Session SessionSettings `mapstructure:"session" yaml:"session"`
}

type ServerSettings struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type RevealSettings struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type NoticeSettings struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type CacheSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type RedisSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Group    string `mapstructure:"group" yaml:"group"`
	Consumer string `mapstructure:"consumer" yaml:"consumer"`
	Stream   string `mapstructure:"stream" yaml:"stream"`
}

type SpeechSettings struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Command   string `mapstructure:"command" yaml:"command"`
	AutoSpeak bool   `mapstructure:"auto_speak" yaml:"auto_speak"`
	Lang      string `mapstructure:"lang" yaml:"lang"`
}

type SessionSettings struct {
	File string `mapstructure:"file" yaml:"file"`
}

// Dir is the per-user config directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(".", "."+AppName)
}

func SetDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("server.url", "http://localhost:5000")
	v.SetDefault("server.timeout", 60*time.Second)
	v.SetDefault("reveal.interval", 20*time.Millisecond)
	v.SetDefault("notice.ttl", 3*time.Second)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", filepath.Join(dir, "cache.db"))
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.group", "docchat-cache")
	v.SetDefault("redis.consumer", "cache-1")
	v.SetDefault("redis.stream", "docchat.transcript")
	v.SetDefault("speech.enabled", true)
	v.SetDefault("speech.command", "")
	v.SetDefault("speech.auto_speak", false)
	v.SetDefault("speech.lang", "en")
	v.SetDefault("session.file", filepath.Join(dir, "session.yaml"))
}

const (
	FlagServerURL = "server-url"
	FlagNoCache   = "no-cache"
)

// AddFlags registers the docchat persistent flags. Config file, logging and
// env handling come from clay.InitViper on the root command.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(FlagServerURL, "", "Backend base URL (overrides server.url)")
	fs.Bool(FlagNoCache, false, "Disable the local conversation cache")
}

// Load decodes Settings from the global viper instance.
func Load() (*Settings, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom applies the defaults to v and decodes it. Nested keys read from
// env vars with dots turned into underscores (DOCCHAT_SERVER_URL).
func LoadFrom(v *viper.Viper) (*Settings, error) {
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if url := strings.TrimSpace(v.GetString(FlagServerURL)); url != "" {
		v.Set("server.url", url)
	}
	if v.GetBool(FlagNoCache) {
		v.Set("cache.enabled", false)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Server.URL) == "" {
		return errors.New("config: server.url is empty")
	}
	if s.Reveal.Interval <= 0 {
		return errors.New("config: reveal.interval must be positive")
	}
	if s.Notice.TTL <= 0 {
		return errors.New("config: notice.ttl must be positive")
	}
	if s.Cache.Enabled && strings.TrimSpace(s.Cache.Path) == "" {
		return errors.New("config: cache.path is empty")
	}
	return nil
}
