package recoveryfx

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/yurykabanov/segrecovery/internal/configfx"
	"github.com/yurykabanov/segrecovery/pkg/orchestrator"
	"github.com/yurykabanov/segrecovery/pkg/recovery"
)

type RecoveryConfig struct {
	Options   orchestrator.Options
	BatchSize int
}

func RecoveryConfigProvider(v *viper.Viper) (*RecoveryConfig, error) {
	confinfo := v.GetString(configfx.FlagConfinfo)
	if confinfo == "" {
		return nil, errors.New("Missing required option --" + configfx.FlagConfinfo)
	}

	era := v.GetString(configfx.FlagEra)
	if era == "" {
		return nil, errors.New("Missing required option --" + configfx.FlagEra)
	}

	descriptors, err := recovery.DeserializeList(confinfo)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to decode segments to recover")
	}

	batchSize := v.GetInt(configfx.FlagBatchSize)
	if err := orchestrator.ValidateBatchSize(batchSize); err != nil {
		return nil, errors.Wrap(err, "Invalid --"+configfx.FlagBatchSize)
	}

	return &RecoveryConfig{
		Options: orchestrator.Options{
			Descriptors:    descriptors,
			ForceOverwrite: v.GetBool(configfx.FlagForceOverwrite),
			Era:            era,
		},
		BatchSize: batchSize,
	}, nil
}

func RecoveryOptions(config *RecoveryConfig) orchestrator.Options {
	return config.Options
}
