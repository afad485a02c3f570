package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/footprint/internal/emission/factor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const factorsKey = "factors"

// FactorTableHolder keeps the emission factor table in force and swaps it
// when the backing file changes.
type FactorTableHolder struct {
	current atomic.Pointer[factor.Snapshot]
	log     *zap.Logger
}

func NewFactorTableHolder(cfg Config, log *zap.Logger) (*FactorTableHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	holder := &FactorTableHolder{log: log.Named("config.factors")}

	v := viper.New()
	if path := strings.TrimSpace(cfg.FactorsConfigPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("emission_factors")
		v.SetConfigType("yml")
		v.AddConfigPath("/var/lib/footprint/config") // Volume-mounted config
		v.AddConfigPath("/etc/footprint")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read emission factors: %w", err)
		}
		if err := holder.update(factor.DefaultTable()); err != nil {
			return nil, err
		}
		holder.log.Info("emission factor file not found, using builtin table",
			zap.String("version", factor.DefaultTable().Version),
		)
		return holder, nil
	}

	table, err := decodeTable(v)
	if err != nil {
		return nil, err
	}
	if err := holder.update(table); err != nil {
		return nil, err
	}
	holder.log.Info("emission factors loaded",
		zap.String("file", v.ConfigFileUsed()),
		zap.String("version", table.Version),
	)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeTable(v)
		if err == nil {
			err = holder.update(updated)
		}
		if err != nil {
			holder.log.Warn("emission factor reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.log.Info("emission factors reloaded", zap.String("file", e.Name), zap.String("version", updated.Version))
	})

	return holder, nil
}

// NewStaticFactorTableHolder wraps a fixed table.
func NewStaticFactorTableHolder(t factor.Table) (*FactorTableHolder, error) {
	holder := &FactorTableHolder{log: zap.NewNop()}
	if err := holder.update(t); err != nil {
		return nil, err
	}
	return holder, nil
}

func (h *FactorTableHolder) Snapshot() *factor.Snapshot {
	return h.current.Load()
}

func (h *FactorTableHolder) Get() factor.Table {
	return h.Snapshot().Table()
}

// update installs t if it is valid; the previous table stays otherwise.
func (h *FactorTableHolder) update(t factor.Table) error {
	snapshot, err := factor.Compile(t)
	if err != nil {
		return err
	}
	h.current.Store(snapshot)
	return nil
}

func decodeTable(v *viper.Viper) (factor.Table, error) {
	if !v.IsSet(factorsKey) {
		return factor.Table{}, fmt.Errorf("emission factor file has no %q section", factorsKey)
	}
	defaults := factor.DefaultTable()
	table := factor.Table{
		DefaultIntensity:        defaults.DefaultIntensity,
		DefaultInstanceBaseline: defaults.DefaultInstanceBaseline,
		DefaultWastePoints:      defaults.DefaultWastePoints,
	}
	if err := v.UnmarshalKey(factorsKey, &table); err != nil {
		return factor.Table{}, fmt.Errorf("decode emission factors: %w", err)
	}
	return table, nil
}
