// Package config provides configuration management for the memory service.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for the memory service.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`

	// Memory is the retrieval engine configuration.
	Memory MemoryConfig `mapstructure:"memory"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host" validate:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size"`

	// NumVersionsToKeep is the number of versions to keep per key.
	NumVersionsToKeep int `mapstructure:"num_versions_to_keep"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the tracing exporter type (otlp).
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout is the export timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are extra headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`

	// Sampler selects the sampling strategy (ratio, always_on, always_off).
	Sampler string `mapstructure:"sampler"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// MemoryConfig holds the hybrid retrieval engine settings.
// The engine reads these once at construction and treats them as
// immutable for its lifetime.
type MemoryConfig struct {
	// Enabled enables the memory subsystem.
	Enabled bool `mapstructure:"enabled"`

	// Mode selects the retrieval strategy (hybrid, vector).
	Mode string `mapstructure:"mode" validate:"oneof=hybrid vector"`

	// VectorDimension is the embedding dimensionality for this deployment.
	VectorDimension int `mapstructure:"vector_dimension" validate:"min=1"`

	// VectorWeight is the static fusion multiplier for vector hits.
	VectorWeight float64 `mapstructure:"vector_weight" validate:"min=0,max=1"`

	// BM25Weight is the static fusion multiplier for lexical hits.
	BM25Weight float64 `mapstructure:"bm25_weight" validate:"min=0,max=1"`

	// DynamicWeighting derives per-query weights from the query
	// classifier instead of the static VectorWeight/BM25Weight pair.
	DynamicWeighting bool `mapstructure:"dynamic_weighting"`

	// MinScore is the minimum normalized similarity for vector hits.
	MinScore float64 `mapstructure:"min_score" validate:"min=0,max=1"`

	// HardMinScore is the terminal cutoff. Candidates scoring below it
	// after all boosts and decays are discarded.
	HardMinScore float64 `mapstructure:"hard_min_score" validate:"min=0"`

	// CandidatePoolSize caps how many hits each search signal contributes.
	CandidatePoolSize int `mapstructure:"candidate_pool_size" validate:"min=1"`

	// MaxLimit clamps the per-request result limit.
	MaxLimit int `mapstructure:"max_limit" validate:"min=1"`

	// RecencyHalfLifeDays controls the short-horizon recency boost.
	// Values <= 0 disable the boost.
	RecencyHalfLifeDays float64 `mapstructure:"recency_half_life_days"`

	// RecencyWeight scales the recency boost contribution.
	RecencyWeight float64 `mapstructure:"recency_weight" validate:"min=0"`

	// LengthNormAnchor is the content length above which the length
	// penalty starts. Values <= 0 disable normalization.
	LengthNormAnchor float64 `mapstructure:"length_norm_anchor"`

	// TimeDecayHalfLifeDays controls the long-horizon decay floor.
	// Values <= 0 disable decay.
	TimeDecayHalfLifeDays float64 `mapstructure:"time_decay_half_life_days"`

	// SimilarityThreshold is the diversity selector's pairwise ceiling.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"min=0,max=1"`

	// NoiseFilter enables the adaptive retrieval gate that skips
	// greetings, commands, and very short queries.
	NoiseFilter bool `mapstructure:"noise_filter"`

	// L1CacheSize is the in-memory entry cache capacity.
	L1CacheSize int `mapstructure:"l1_cache_size" validate:"min=1"`

	// StoragePath is the directory for index snapshots.
	StoragePath string `mapstructure:"storage_path"`

	// BM25 holds the lexical index parameters.
	BM25 BM25Config `mapstructure:"bm25"`

	// Rerank holds the cross-encoder reranking settings.
	Rerank RerankConfig `mapstructure:"rerank"`

	// Embedding holds the embedder client settings.
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// BM25Config holds BM25 scoring parameters.
type BM25Config struct {
	// K1 is the term frequency saturation parameter.
	K1 float64 `mapstructure:"k1" validate:"min=0"`

	// B is the document length normalization parameter.
	B float64 `mapstructure:"b" validate:"min=0,max=1"`
}

// RerankConfig holds cross-encoder reranking settings.
type RerankConfig struct {
	// Enabled enables best-effort reranking.
	Enabled bool `mapstructure:"enabled"`

	// Provider selects the request/response shape (cohere, azure).
	Provider string `mapstructure:"provider" validate:"omitempty,oneof=cohere azure"`

	// Endpoint is the rerank API endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Model is the cross-encoder model identifier.
	Model string `mapstructure:"model"`

	// APIKey authenticates against the provider.
	APIKey string `mapstructure:"api_key"`

	// APIVersion is the api-version header value (azure provider).
	APIVersion string `mapstructure:"api_version"`

	// TopN is the number of documents the provider should score.
	TopN int `mapstructure:"top_n" validate:"min=0"`

	// Timeout bounds the single rerank round-trip.
	Timeout time.Duration `mapstructure:"timeout"`

	// RequestsPerSecond rate-limits outbound rerank calls.
	// Zero disables the limiter.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
}

// EmbeddingConfig holds embedder client settings.
type EmbeddingConfig struct {
	// Endpoint is the embeddings API endpoint (OpenAI-compatible).
	Endpoint string `mapstructure:"endpoint"`

	// Model is the embedding model identifier.
	Model string `mapstructure:"model"`

	// APIKey authenticates against the provider.
	APIKey string `mapstructure:"api_key"`

	// Timeout bounds a single embedding call.
	Timeout time.Duration `mapstructure:"timeout"`

	// Cache configures the shared embedding cache.
	Cache EmbedCacheConfig `mapstructure:"cache"`
}

// EmbedCacheConfig holds embedding cache settings.
type EmbedCacheConfig struct {
	// Backend selects the cache implementation (memory, redis).
	Backend string `mapstructure:"backend" validate:"oneof=memory redis"`

	// Size is the in-memory cache capacity (memory backend).
	Size int `mapstructure:"size" validate:"min=1"`

	// TTL is the cache entry lifetime (redis backend).
	TTL time.Duration `mapstructure:"ttl"`

	// RedisAddress is the Redis server address.
	RedisAddress string `mapstructure:"redis_address" validate:"host"`

	// RedisPassword is the Redis password.
	RedisPassword string `mapstructure:"redis_password"`

	// RedisDB is the Redis database number.
	RedisDB int `mapstructure:"redis_db"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Mode: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Memory.Mode)
}
