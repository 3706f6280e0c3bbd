package config

import (
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

var v *viper.Viper

func init() {
	v = viper.New()

	v.SetDefault("smashspeed.home", filepath.Join(xdg.Home, ".smashspeed"))
	v.SetDefault("trim.cache_dir", filepath.Join(xdg.CacheHome, "smashspeed"))
	v.SetDefault("trim.max_clip_seconds", 0.8)
	v.SetDefault("trim.buffer_size", media.DefaultBufferSize)
	v.SetDefault("trim.backend", "auto")
	v.SetDefault("trim.ffmpeg_path", "ffmpeg")
	v.SetDefault("server.port", 29889)

	v.AutomaticEnv()
	v.BindEnv("smashspeed.home", "SMASHSPEED_HOME")
	v.BindEnv("trim.cache_dir", "SMASHSPEED_CACHE_DIR")
	v.BindEnv("trim.max_clip_seconds", "SMASHSPEED_MAX_CLIP_SECONDS")
	v.BindEnv("trim.buffer_size", "SMASHSPEED_BUFFER_SIZE")
	v.BindEnv("trim.backend", "SMASHSPEED_BACKEND")
	v.BindEnv("trim.ffmpeg_path", "SMASHSPEED_FFMPEG")
	v.BindEnv("server.port", "SMASHSPEED_PORT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range []string{".", GetHome(), "/etc/smashspeed"} {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
	}
}

// GetHome returns the smashspeed home directory.
func GetHome() string {
	return v.GetString("smashspeed.home")
}

// GetCacheDir returns the directory trimmed clips are written to.
func GetCacheDir() string {
	return v.GetString("trim.cache_dir")
}

// GetMaxClipSeconds returns the longest clip a caller may request.
func GetMaxClipSeconds() float64 {
	return v.GetFloat64("trim.max_clip_seconds")
}

// GetBufferSize returns the sample transfer buffer size in bytes.
func GetBufferSize() int {
	if n := v.GetInt("trim.buffer_size"); n > 0 {
		return n
	}
	return media.DefaultBufferSize
}

func GetBackend() string {
	return v.GetString("trim.backend")
}

func GetFFmpegPath() string {
	return v.GetString("trim.ffmpeg_path")
}

// GetServerPort returns the HTTP server port.
func GetServerPort() int {
	return v.GetInt("server.port")
}

// Set overrides a key for the rest of the process, used by command line flags.
func Set(key string, value interface{}) {
	v.Set(key, value)
}
