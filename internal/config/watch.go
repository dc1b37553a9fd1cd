package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"traderelay/internal/logger"
)

// Watch re-decodes the configuration whenever the file changes and hands
// each valid new version to onChange. Invalid edits are logged and skipped;
// the running configuration stays as it was.
func Watch(v *viper.Viper, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Errorf("config reload rejected: %v", err)
			return
		}
		logger.Infof("config reloaded from %s", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
}
