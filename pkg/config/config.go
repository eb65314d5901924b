package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	DefaultMaxChunks = 2048
	DefaultChunkSize = 1 << 30
	DefaultGpuCount  = 0

	// DefaultGpuMemory bounds each emulated device; 0 means unbounded.
	DefaultGpuMemory = 0
)

// Config is the runtime configuration of a store instance.
type Config struct {
	// MaxChunks caps the chunk descriptor array.
	MaxChunks int
	// ChunkSize is the columnar image budget per chunk, in bytes.
	ChunkSize int64
	// GpuCount is the number of GPU devices available for pinning.
	GpuCount int
	// GpuMemory is the per-device memory budget in bytes, 0 = unbounded.
	GpuMemory int64
}

func Default() *Config {
	return &Config{
		MaxChunks: DefaultMaxChunks,
		ChunkSize: DefaultChunkSize,
		GpuCount:  DefaultGpuCount,
		GpuMemory: DefaultGpuMemory,
	}
}

func init() {
	viper.SetDefault("gstore.max_chunks", DefaultMaxChunks)
	viper.SetDefault("gstore.chunk_size", DefaultChunkSize)
	viper.SetDefault("gstore.gpu_count", DefaultGpuCount)
	viper.SetDefault("gstore.gpu_memory", DefaultGpuMemory)
}

// Load reads the [gstore] section from whatever configuration sources
// viper has been pointed at.
func Load() (*Config, error) {
	cfg := &Config{
		MaxChunks: viper.GetInt("gstore.max_chunks"),
		ChunkSize: viper.GetInt64("gstore.chunk_size"),
		GpuCount:  viper.GetInt("gstore.gpu_count"),
		GpuMemory: viper.GetInt64("gstore.gpu_memory"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.MaxChunks <= 0 {
		return fmt.Errorf("gstore: max_chunks must be positive: %d", cfg.MaxChunks)
	}
	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("gstore: chunk_size must be positive: %d", cfg.ChunkSize)
	}
	if cfg.GpuCount < 0 {
		return fmt.Errorf("gstore: gpu_count must not be negative: %d", cfg.GpuCount)
	}
	if cfg.GpuMemory < 0 {
		return fmt.Errorf("gstore: gpu_memory must not be negative: %d", cfg.GpuMemory)
	}
	return nil
}
