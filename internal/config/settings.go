package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SettingsHolder keeps operator-provided fallbacks for billing tunables.
// Values stored in the settings table always win over these.
type SettingsHolder struct {
	current  atomic.Value // holds map[string]string
	onReload atomic.Value // holds func(bool)
}

// OnReload registers fn to observe every hot reload attempt.
func (h *SettingsHolder) OnReload(fn func(ok bool)) {
	if h == nil || fn == nil {
		return
	}
	h.onReload.Store(fn)
}

func (h *SettingsHolder) notifyReload(ok bool) {
	if fn, _ := h.onReload.Load().(func(bool)); fn != nil {
		fn(ok)
	}
}

func NewSettingsHolder(cfg Config) (*SettingsHolder, error) {
	v := viper.New()

	if cfg.SettingsFile != "" {
		v.SetConfigFile(cfg.SettingsFile)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/dunning") // System config
		v.AddConfigPath(".")            // Current directory (dev mode)
	}

	holder := &SettingsHolder{}
	holder.current.Store(map[string]string{})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// no file: code defaults apply
			return holder, nil
		}
		return nil, err
	}

	values, err := decodeSettings(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(values)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSettings(v)
		if err != nil {
			log.Printf("[settings] reload failed: %v", err)
			holder.notifyReload(false)
			return
		}
		holder.current.Store(updated)
		log.Printf("[settings] reloaded from %s", filepath.Base(e.Name))
		holder.notifyReload(true)
	})

	return holder, nil
}

// NewStaticSettingsHolder builds a holder with fixed values, mainly for tests.
func NewStaticSettingsHolder(values map[string]string) *SettingsHolder {
	holder := &SettingsHolder{}
	copied := make(map[string]string, len(values))
	for k, val := range values {
		copied[k] = val
	}
	holder.current.Store(copied)
	return holder
}

// Lookup returns the file-provided fallback for key.
func (h *SettingsHolder) Lookup(key string) (string, bool) {
	if h == nil {
		return "", false
	}
	values, _ := h.current.Load().(map[string]string)
	value, ok := values[key]
	return value, ok
}

func decodeSettings(v *viper.Viper) (map[string]string, error) {
	raw := v.GetStringMap("settings")
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		switch typed := value.(type) {
		case nil:
			continue
		case string:
			out[key] = strings.TrimSpace(typed)
		case map[string]any, []any:
			return nil, fmt.Errorf("settings.%s must be a scalar", key)
		default:
			out[key] = fmt.Sprint(typed)
		}
	}
	return out, nil
}
