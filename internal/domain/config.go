package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Scoring holds every policy value the engine consumes:
	// weights, thresholds, ceilings, timeouts, lookback windows.
	Scoring ScoringConfig `json:"scoring"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// ScoringConfig is the immutable policy configuration injected into the
// orchestrator at construction. Nothing in the engine reads ambient state.
type ScoringConfig struct {
	// SeverityWeights is the score contribution per hit severity.
	SeverityWeights map[Severity]float64 `json:"severityWeights"`

	// SeverityCaps bounds the total contribution of all hits of one
	// severity, so many low hits cannot climb into the band reserved
	// for a single critical hit.
	SeverityCaps map[Severity]float64 `json:"severityCaps"`

	// Decision thresholds over the composite score, ascending.
	FastApproveThreshold    float64 `json:"fastApproveThreshold"`
	ApproveThreshold        float64 `json:"approveThreshold"`
	InformationalThreshold  float64 `json:"informationalThreshold"`
	RecommendationThreshold float64 `json:"recommendationThreshold"` // at/above: soft_hold

	// High-dollar thresholds.
	HighDollarLineThreshold  float64 `json:"highDollarLineThreshold"`
	HighDollarClaimThreshold float64 `json:"highDollarClaimThreshold"`

	// AuthRequiredCodes lists procedure codes that require prior
	// authorization.
	AuthRequiredCodes []string `json:"authRequiredCodes"`

	// LookbackDays bounds the service-history window.
	LookbackDays int `json:"lookbackDays"`

	// Pipeline timeouts and fan-out bounds.
	ResolveTimeout   time.Duration `json:"resolveTimeout"`
	EvaluatorTimeout time.Duration `json:"evaluatorTimeout"`
	MaxWorkers       int           `json:"maxWorkers"`

	// StrictInvariants makes an out-of-range composite score panic
	// instead of clamping. Enabled in tests, off in production.
	StrictInvariants bool `json:"strictInvariants"`
}

// RequiresAuth reports whether the procedure code needs prior authorization.
func (c *ScoringConfig) RequiresAuth(code string) bool {
	for _, ac := range c.AuthRequiredCodes {
		if ac == code {
			return true
		}
	}
	return false
}

// DefaultScoringConfig returns the default policy values. Deployments
// tune these per line of business; the defaults satisfy the engine's
// band invariants (a lone critical hit lands at or above the
// recommendation threshold, low hits saturate below it).
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		SeverityWeights: map[Severity]float64{
			SeverityLow:      0.10,
			SeverityMedium:   0.25,
			SeverityHigh:     0.45,
			SeverityCritical: 0.85,
		},
		SeverityCaps: map[Severity]float64{
			SeverityLow:      0.30,
			SeverityMedium:   0.50,
			SeverityHigh:     0.70,
			SeverityCritical: 1.00,
		},
		FastApproveThreshold:     0.10,
		ApproveThreshold:         0.30,
		InformationalThreshold:   0.50,
		RecommendationThreshold:  0.75,
		HighDollarLineThreshold:  10000,
		HighDollarClaimThreshold: 25000,
		LookbackDays:             365,
		ResolveTimeout:           5 * time.Second,
		EvaluatorTimeout:         2 * time.Second,
		MaxWorkers:               16,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Scoring: DefaultScoringConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier:
// PostgreSQL + Redis + NATS, tracing on.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
