// Package config resolves mount options the same way cmd/root.go
// resolves MountConfig: persistent flags bound into viper, an
// optional YAML config file layered on top, unmarshalled into a
// single struct via mapstructure tags.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogLevel is a distinct string type (like cfg.LogSeverity) so its
// mapstructure decode hook only fires for this field, not every
// string in Config.
type LogLevel string

// LogConfig controls the destination and rotation of the structured
// log internal/logger builds.
type LogConfig struct {
	Path       string   `mapstructure:"path" yaml:"path"`
	Level      LogLevel `mapstructure:"level" yaml:"level"`
	MaxSizeMB  int    `mapstructure:"max-size-mb" yaml:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups" yaml:"max-backups"`
	MaxAgeDays int    `mapstructure:"max-age-days" yaml:"max-age-days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// TracingConfig controls whether mount/unmount spans are exported.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Config is the fully resolved set of options a mount run needs:
// which image to mount where, as what filesystem type, and how the
// ambient stack (logging, metrics, tracing) should behave.
type Config struct {
	ImagePath  string `mapstructure:"image-path" yaml:"image-path"`
	MountPoint string `mapstructure:"mount-point" yaml:"mount-point"`
	FsType     string `mapstructure:"fs-type" yaml:"fs-type"`
	BlockSize  int    `mapstructure:"block-size" yaml:"block-size"`
	ReadOnly   bool   `mapstructure:"read-only" yaml:"read-only"`
	Uid        uint32 `mapstructure:"uid" yaml:"uid"`
	Gid        uint32 `mapstructure:"gid" yaml:"gid"`

	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// Default returns the flag defaults registered by BindFlags, so a
// run with no config file and no flags still mounts a sane ext4
// image read-write at 4096-byte blocks.
func Default() Config {
	return Config{
		FsType:    "ext4",
		BlockSize: 4096,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  64,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// BindFlags registers Config fields as persistent flags on fs. The
// image path and mount point have no flag (they come from the
// positional arguments), and neither do the log rotation settings
// (max-size-mb, max-backups, max-age-days, compress), which are set
// only from a config file or left at their defaults. This mirrors cfg.BindFlags's generated registration against rootCmd's
// PersistentFlags in cmd/root.go.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("fs-type", d.FsType, "on-disk filesystem to mount: ext2, ext3 or ext4")
	fs.Int("block-size", d.BlockSize, "block size in bytes the backing image is opened with")
	fs.Bool("read-only", d.ReadOnly, "mount the image read-only")
	fs.Uint32("uid", 0, "uid FUSE requests are evaluated as")
	fs.Uint32("gid", 0, "gid FUSE requests are evaluated as")
	fs.String("log.path", "", "log file path; stderr if empty")
	fs.String("log.level", string(d.Log.Level), "debug, info, warn or error")
	fs.Bool("metrics.enabled", false, "serve Prometheus metrics")
	fs.String("metrics.addr", d.Metrics.Addr, "listen address for the metrics endpoint")
	fs.Bool("tracing.enabled", false, "export a trace span for mount/unmount")
}

// Load resolves a Config from fs's bound flags, layering cfgFile's
// YAML over them when cfgFile is non-empty, the same precedence
// initConfig gives viper.ReadInConfig over bound PersistentFlags.
func Load(cfgFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	cfg := Default()
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		levelDecodeHook(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if args := fs.Args(); len(args) > 0 {
		cfg.ImagePath = args[0]
	}
	if len(fs.Args()) > 1 {
		cfg.MountPoint = fs.Args()[1]
	}

	return &cfg, nil
}

// String renders the effective config as YAML, the same debug
// artifact legacy_main.go's Stringify produces for MountConfig.
func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<config marshal error: %v>", err)
	}
	return string(b)
}
