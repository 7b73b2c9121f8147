package config

import (
	"fmt"

	"github.com/marmos91/sandfs/pkg/adapter"
	"github.com/marmos91/sandfs/pkg/adapter/line"
	"github.com/marmos91/sandfs/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete SandFS configuration
//   - lineMetrics: Optional line protocol metrics collector (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, lineMetrics metrics.LineMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.Line.Enabled {
		lineCfg := cfg.Adapters.Line
		lineCfg.ChunkSize = cfg.Sandbox.ChunkSize
		adapters = append(adapters, line.New(lineCfg, lineMetrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
