package configfx

import (
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix              = "segrecovery"
	DefaultConfigDirectory = "segrecovery"
	DefaultConfigFile      = "segrecovery"
)

var (
	defaultConfigPaths = []string{
		".",
		"./config",
		path.Join("/etc", DefaultConfigDirectory),
	}

	// flags whose configuration keys differ from their names
	flagKeys = map[string]string{
		FlagLogDir: "log.dir",
	}
)

func ViperProvider(logger *logrus.Logger, flagSet *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	err := v.BindPFlags(flagSet)
	if err != nil {
		return nil, err
	}

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flagSet.Lookup(name)); err != nil {
			return nil, err
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("history.migrations", "file://migrations/")

	// Read config from config file
	if configFile := v.GetString(FlagConfig); configFile != "" {
		// Explicitly given config file MUST exist and be valid
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		// Otherwise look for a config in default locations, missing file is not an error
		v.SetConfigName(DefaultConfigFile)

		for _, dir := range defaultConfigPaths {
			v.AddConfigPath(dir)
		}

		if err := v.ReadInConfig(); err != nil {
			logger.WithError(err).Debug("Couldn't read config file")
		}
	}

	return v, nil
}
