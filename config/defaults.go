package config

import "time"

// DefaultConfig returns a Config populated with sensible defaults; callers
// overlay a YAML file and then the environment on top of this.
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Database: DefaultDatabaseConfig(),
		Enrich:   DefaultEnrichConfig(),
		Log:      DefaultLogConfig(),
		Worker:   DefaultWorkerConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8080,
		MetricsPort:     9091,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func DefaultEnrichConfig() EnrichConfig {
	return EnrichConfig{
		DescriptionMaxLength: 5000,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PoolSize:          16,
		QueueSize:         64,
		ReconcileInterval: 2 * time.Minute,
		ReconcileTimeout:  10 * time.Minute,
	}
}
