package catalog

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Holder serves immutable catalog snapshots. The file on disk may be
// hot-reloaded; an invalid file is ignored and the previous snapshot stays
// in effect.
type Holder struct {
	current atomic.Value // holds *Catalog
}

type fileCatalog struct {
	Services []Service `mapstructure:"services"`
	Plans    []Plan    `mapstructure:"plans"`
}

// NewHolder loads catalog.yml from searchPath (plus the standard config
// locations) and falls back to the built-in defaults when no file exists.
func NewHolder(searchPath string, log *zap.Logger) (*Holder, error) {
	log = log.Named("catalog.holder")
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	if strings.TrimSpace(searchPath) != "" {
		v.AddConfigPath(searchPath)
	}
	v.AddConfigPath("/etc/khaja")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KHAJA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &Holder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(Default())
		return holder, nil
	}

	loaded, err := unmarshalCatalog(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(loaded)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalCatalog(v)
		if err != nil {
			log.Warn("invalid catalog ignored, keeping previous snapshot", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("catalog reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticHolder wraps a fixed catalog, used in tests and seeds.
func NewStaticHolder(c *Catalog) *Holder {
	holder := &Holder{}
	holder.current.Store(c)
	return holder
}

// Get returns the current catalog snapshot.
func (h *Holder) Get() *Catalog {
	return h.current.Load().(*Catalog)
}

func unmarshalCatalog(v *viper.Viper) (*Catalog, error) {
	var file fileCatalog
	if err := v.UnmarshalKey("catalog", &file); err != nil {
		return nil, err
	}
	if len(file.Services) == 0 && len(file.Plans) == 0 {
		return Default(), nil
	}
	return New(file.Services, file.Plans)
}
