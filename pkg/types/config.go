package types

import "time"

// TargetSection pairs a report section title with the question asked of
// each candidate chunk.
type TargetSection struct {
	Title    string `json:"title" yaml:"title" mapstructure:"title"`
	Question string `json:"question" yaml:"question" mapstructure:"question"`
}

// DefaultSections are the label sections extracted when no configuration
// overrides them. Order is the processing order.
var DefaultSections = []TargetSection{
	{Title: "Indications", Question: "What diseases or conditions is this drug indicated to treat?"},
	{Title: "Dosage", Question: "What is the recommended dosage and schedule?"},
	{Title: "Contraindications", Question: "Who should NOT take this drug? List contraindications."},
	{Title: "Warnings", Question: "What are the most serious warnings or boxed warnings?"},
}

// ModelConfig holds settings for the language-model service.
type ModelConfig struct {
	// Name is the model identifier (e.g. "gemma2:2b").
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// BaseURL is the Ollama server root (default http://localhost:11434).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is an optional bearer token for hosted or proxied servers.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Seed is the fixed decoding seed sent with every request.
	Seed int `json:"seed" yaml:"seed" mapstructure:"seed"`

	// Temperature is recorded for completeness; extraction always sends 0.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// RequestTimeout bounds a single model call. Zero disables the bound.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	// RequestsPerSecond throttles model calls. Zero disables throttling.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// MaxRetries is the number of retries on HTTP 429/503 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Debug logs every request and response payload.
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`
}

// VerificationConfig holds settings for the quote verifier.
type VerificationConfig struct {
	// Threshold is the minimum fuzzy score (0-100) for a quote to be
	// accepted (default 85).
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// SegmentConfig holds settings for turning documents into page chunks.
type SegmentConfig struct {
	// Backend selects how PDFs are read: "pdftotext" runs the host binary,
	// "container" runs ContainerImage under docker or podman.
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// ContainerImage is the image whose entrypoint converts a PDF on stdin
	// to text on stdout.
	ContainerImage string `json:"container_image" yaml:"container_image" mapstructure:"container_image"`
}

// PipelineConfig groups everything the extraction pipeline needs.
type PipelineConfig struct {
	Model        ModelConfig        `json:"model" yaml:"model" mapstructure:"model"`
	Verification VerificationConfig `json:"verification" yaml:"verification" mapstructure:"verification"`
	Segment      SegmentConfig      `json:"segment" yaml:"segment" mapstructure:"segment"`

	// Sections lists the target questions in processing order.
	Sections []TargetSection `json:"sections" yaml:"sections" mapstructure:"sections"`

	// TopK is the number of candidate chunks retrieved per section (default 3).
	TopK int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// DBPath is the audit database file (default data/audit.db).
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// IndexPath is the fact index database file (default data/fact_index.db).
	IndexPath string `json:"index_path" yaml:"index_path" mapstructure:"index_path"`

	// LogFile receives diagnostic logs in addition to stderr. Empty disables it.
	LogFile string `json:"log_file" yaml:"log_file" mapstructure:"log_file"`
}

// DefaultPipelineConfig returns the configuration used when no file, flag,
// or environment variable overrides a value.
func DefaultPipelineConfig() PipelineConfig {
	sections := make([]TargetSection, len(DefaultSections))
	copy(sections, DefaultSections)
	return PipelineConfig{
		Model: ModelConfig{
			Name:           "gemma2:2b",
			BaseURL:        "http://localhost:11434",
			Seed:           42,
			Temperature:    0,
			RequestTimeout: 5 * time.Minute,
			MaxRetries:     3,
		},
		Verification: VerificationConfig{Threshold: 85},
		Segment: SegmentConfig{
			Backend:        "pdftotext",
			ContainerImage: "pdftotext:latest",
		},
		Sections:  sections,
		TopK:      3,
		DBPath:    "data/audit.db",
		IndexPath: "data/fact_index.db",
	}
}
