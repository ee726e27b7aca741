package cmds

import (
	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// setup loads the settings for a command run. quiet keeps logs off the
// terminal, for commands that own the screen; a configured --log-file still
// receives them.
func setup(quiet bool) (*config.Settings, error) {
	s, err := config.Load()
	if err != nil {
		return nil, err
	}
	if quiet {
		quietLogs(viper.GetViper())
	}
	return s, nil
}

func quietLogs(v *viper.Viper) {
	if v.GetString("log-file") == "" {
		log.Logger = zerolog.Nop()
	}
}
