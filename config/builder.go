package config

import (
	"github.com/jpalmerr/serverwatch"
)

// BuildOptions converts parsed configuration into [serverwatch.Option]
// values for [serverwatch.New].
func BuildOptions(cfg *Config) ([]serverwatch.Option, error) {
	filter, err := serverwatch.ParsePlayerFilter(cfg.PlayerFilter)
	if err != nil {
		return nil, err
	}

	opts := []serverwatch.Option{
		serverwatch.WithSource(cfg.Source),
		serverwatch.WithServers(cfg.Servers...),
		serverwatch.WithPort(cfg.Port),
		serverwatch.WithPollingInterval(cfg.PollInterval.Duration()),
		serverwatch.WithPlayerFilter(filter),
	}

	if cfg.RequestTimeout != 0 {
		opts = append(opts, serverwatch.WithRequestTimeout(cfg.RequestTimeout.Duration()))
	}
	if cfg.Title != "" {
		opts = append(opts, serverwatch.WithTitle(cfg.Title))
	}
	if cfg.StaticDir != "" {
		opts = append(opts, serverwatch.WithStaticDir(cfg.StaticDir))
	}

	return opts, nil
}
