package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// newViper mirrors what clay.InitViper sets up on the root command.
func newViper(t *testing.T, configFile string, args ...string) *viper.Viper {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))

	v := viper.New()
	v.SetEnvPrefix(AppName)
	if configFile != "" {
		v.SetConfigFile(configFile)
		require.NoError(t, v.ReadInConfig())
	}
	require.NoError(t, v.BindPFlags(fs))
	return v
}

func TestLoadFrom_Defaults(t *testing.T) {
	s, err := LoadFrom(newViper(t, ""))
	require.NoError(t, err)

	require.Equal(t, "http://localhost:5000", s.Server.URL)
	require.Equal(t, 20*time.Millisecond, s.Reveal.Interval)
	require.Equal(t, 3*time.Second, s.Notice.TTL)
	require.True(t, s.Cache.Enabled)
	require.False(t, s.Redis.Enabled)
	require.Equal(t, "docchat.transcript", s.Redis.Stream)
}

func TestLoadFrom_FileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: http://file:5000
  timeout: 5s
reveal:
  interval: 5ms
speech:
  auto_speak: true
`), 0o600))
	t.Setenv("DOCCHAT_NOTICE_TTL", "7s")

	s, err := LoadFrom(newViper(t, path, "--server-url", "http://flag:8080", "--no-cache"))
	require.NoError(t, err)

	require.Equal(t, "http://flag:8080", s.Server.URL)
	require.Equal(t, 5*time.Second, s.Server.Timeout)
	require.Equal(t, 5*time.Millisecond, s.Reveal.Interval)
	require.Equal(t, 7*time.Second, s.Notice.TTL)
	require.True(t, s.Speech.AutoSpeak)
	require.False(t, s.Cache.Enabled)
}

func TestLoadFrom_EnvServerURL(t *testing.T) {
	t.Setenv("DOCCHAT_SERVER_URL", "http://env:9000")
	s, err := LoadFrom(newViper(t, ""))
	require.NoError(t, err)
	require.Equal(t, "http://env:9000", s.Server.URL)
}

func TestValidate(t *testing.T) {
	s := Settings{Reveal: RevealSettings{Interval: time.Millisecond}, Notice: NoticeSettings{TTL: time.Second}}
	require.Error(t, s.Validate())
	s.Server.URL = "http://x"
	require.NoError(t, s.Validate())
	s.Cache.Enabled = true
	require.Error(t, s.Validate())
}
