package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "memoryd",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 15 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1 MB
			},
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: false,
				MaxAge:           300,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:              "./data/memory",
				SyncWrites:        false,
				ValueLogFileSize:  256 << 20, // 256 MB
				NumVersionsToKeep: 1,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
		Memory: DefaultMemoryConfig(),
	}
}

// DefaultMemoryConfig returns the default retrieval engine settings.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Enabled:          true,
		Mode:             "hybrid",
		VectorDimension:  768,
		VectorWeight:     0.7,
		BM25Weight:       0.3,
		DynamicWeighting: true,

		MinScore:          0.3,
		HardMinScore:      0.2,
		CandidatePoolSize: 20,
		MaxLimit:          20,

		RecencyHalfLifeDays:   7,
		RecencyWeight:         0.2,
		LengthNormAnchor:      600,
		TimeDecayHalfLifeDays: 90,
		SimilarityThreshold:   0.85,

		NoiseFilter: true,
		L1CacheSize: 1024,
		StoragePath: "./data/index",

		BM25: BM25Config{
			K1: 1.5,
			B:  0.75,
		},
		Rerank: RerankConfig{
			Enabled:           false,
			Provider:          "cohere",
			Model:             "rerank-v3.5",
			TopN:              10,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 10,
		},
		Embedding: EmbeddingConfig{
			Endpoint: "http://localhost:11434/v1/embeddings",
			Model:    "nomic-embed-text",
			Timeout:  10 * time.Second,
			Cache: EmbedCacheConfig{
				Backend: "memory",
				Size:    2048,
				TTL:     24 * time.Hour,
			},
		},
	}
}
