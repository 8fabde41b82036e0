// Package config provides configuration loading and management for Curator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/curatorhq/curator/model"
)

// Config represents the complete Curator configuration.
type Config struct {
	Temporal TemporalConfig `yaml:"temporal"`
	Postgres PostgresConfig `yaml:"postgres"`
	NATS     NATSConfig     `yaml:"nats"`
	Weaviate WeaviateConfig `yaml:"weaviate"`
	Neo4j    Neo4jConfig    `yaml:"neo4j"`
	Model    ModelConfig    `yaml:"model"`
	Workflow WorkflowConfig `yaml:"workflow"`
	API      APIConfig      `yaml:"api"`
}

// TemporalConfig configures the durable engine connection.
type TemporalConfig struct {
	// HostPort is the Temporal frontend address.
	HostPort string `yaml:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `yaml:"namespace"`
	// APIKey authenticates against Temporal Cloud (optional).
	APIKey string `yaml:"api_key"`
}

// PostgresConfig configures the relational metadata and inbox store.
type PostgresConfig struct {
	// DSN is the Postgres connection string. Empty enables the in-memory
	// store (development and tests only).
	DSN string `yaml:"dsn"`
}

// NATSConfig configures the live-signal fan-out transport.
type NATSConfig struct {
	// URL is the NATS server URL (empty disables cross-process fan-out).
	URL string `yaml:"url"`
}

// WeaviateConfig configures the vector store.
type WeaviateConfig struct {
	Host   string `yaml:"host"`
	Scheme string `yaml:"scheme"`
	APIKey string `yaml:"api_key"`
}

// Neo4jConfig configures the graph store.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ModelConfig configures LLM endpoints and tier overrides.
type ModelConfig struct {
	// Endpoints maps endpoint names to provider/model pairs.
	Endpoints map[string]model.Endpoint `yaml:"endpoints"`
	// Tiers overrides tier specs by tier name.
	Tiers map[string]model.TierSpec `yaml:"tiers"`
	// Embeddings points at an OpenAI-compatible embeddings endpoint.
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
}

// EmbeddingsConfig configures the embedding endpoint.
type EmbeddingsConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// WorkflowConfig carries workflow policy defaults, overridable per start.
type WorkflowConfig struct {
	// OwnerDecisionTimeout bounds how long a bootstrap waits for the owner.
	OwnerDecisionTimeout time.Duration `yaml:"owner_decision_timeout"`
	// ControllerDecisionTimeout bounds how long a contribution waits for review.
	ControllerDecisionTimeout time.Duration `yaml:"controller_decision_timeout"`
	// AutoApproveThreshold is the default score at or above which documents skip review.
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold"`
	// RejectThreshold is the default score below which documents are rejected.
	RejectThreshold float64 `yaml:"reject_threshold"`
}

// APIConfig configures the HTTP facade.
type APIConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
		},
		Weaviate: WeaviateConfig{
			Host:   "localhost:8080",
			Scheme: "http",
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
		},
		Model: ModelConfig{
			Embeddings: EmbeddingsConfig{
				URL:   "https://api.openai.com/v1",
				Model: "text-embedding-3-small",
			},
		},
		Workflow: WorkflowConfig{
			OwnerDecisionTimeout:      7 * 24 * time.Hour,
			ControllerDecisionTimeout: 7 * 24 * time.Hour,
			AutoApproveThreshold:      8.0,
			RejectThreshold:           7.0,
		},
		API: APIConfig{
			Addr: ":8085",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Temporal.HostPort == "" {
		return fmt.Errorf("temporal.host_port is required")
	}
	if c.Temporal.Namespace == "" {
		return fmt.Errorf("temporal.namespace is required")
	}
	if c.Workflow.OwnerDecisionTimeout <= 0 {
		return fmt.Errorf("workflow.owner_decision_timeout must be positive")
	}
	if c.Workflow.ControllerDecisionTimeout <= 0 {
		return fmt.Errorf("workflow.controller_decision_timeout must be positive")
	}
	if c.Workflow.AutoApproveThreshold < 0 || c.Workflow.AutoApproveThreshold > 10 {
		return fmt.Errorf("workflow.auto_approve_threshold must be in [0,10]")
	}
	if c.Workflow.RejectThreshold < 0 || c.Workflow.RejectThreshold > c.Workflow.AutoApproveThreshold {
		return fmt.Errorf("workflow.reject_threshold must be in [0,auto_approve_threshold]")
	}
	return nil
}

// Merge overlays non-zero fields from other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Temporal.HostPort != "" {
		c.Temporal.HostPort = other.Temporal.HostPort
	}
	if other.Temporal.Namespace != "" {
		c.Temporal.Namespace = other.Temporal.Namespace
	}
	if other.Temporal.APIKey != "" {
		c.Temporal.APIKey = other.Temporal.APIKey
	}
	if other.Postgres.DSN != "" {
		c.Postgres.DSN = other.Postgres.DSN
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.Weaviate.Host != "" {
		c.Weaviate.Host = other.Weaviate.Host
	}
	if other.Weaviate.Scheme != "" {
		c.Weaviate.Scheme = other.Weaviate.Scheme
	}
	if other.Weaviate.APIKey != "" {
		c.Weaviate.APIKey = other.Weaviate.APIKey
	}
	if other.Neo4j.URI != "" {
		c.Neo4j.URI = other.Neo4j.URI
	}
	if other.Neo4j.Username != "" {
		c.Neo4j.Username = other.Neo4j.Username
	}
	if other.Neo4j.Password != "" {
		c.Neo4j.Password = other.Neo4j.Password
	}
	if len(other.Model.Endpoints) > 0 {
		if c.Model.Endpoints == nil {
			c.Model.Endpoints = make(map[string]model.Endpoint)
		}
		for name, ep := range other.Model.Endpoints {
			c.Model.Endpoints[name] = ep
		}
	}
	if len(other.Model.Tiers) > 0 {
		if c.Model.Tiers == nil {
			c.Model.Tiers = make(map[string]model.TierSpec)
		}
		for name, spec := range other.Model.Tiers {
			c.Model.Tiers[name] = spec
		}
	}
	if other.Model.Embeddings.URL != "" {
		c.Model.Embeddings.URL = other.Model.Embeddings.URL
	}
	if other.Model.Embeddings.Model != "" {
		c.Model.Embeddings.Model = other.Model.Embeddings.Model
	}
	if other.Workflow.OwnerDecisionTimeout != 0 {
		c.Workflow.OwnerDecisionTimeout = other.Workflow.OwnerDecisionTimeout
	}
	if other.Workflow.ControllerDecisionTimeout != 0 {
		c.Workflow.ControllerDecisionTimeout = other.Workflow.ControllerDecisionTimeout
	}
	if other.Workflow.AutoApproveThreshold != 0 {
		c.Workflow.AutoApproveThreshold = other.Workflow.AutoApproveThreshold
	}
	if other.Workflow.RejectThreshold != 0 {
		c.Workflow.RejectThreshold = other.Workflow.RejectThreshold
	}
	if other.API.Addr != "" {
		c.API.Addr = other.API.Addr
	}
}

// Registry builds a model registry from the configured endpoints and tier
// overrides, starting from the defaults.
func (c *Config) Registry() *model.Registry {
	r := model.NewDefaultRegistry()
	for name, ep := range c.Model.Endpoints {
		r.SetEndpoint(name, ep)
	}
	for name, spec := range c.Model.Tiers {
		if tier := model.ParseTier(name); tier != "" {
			r.SetTier(tier, spec)
		}
	}
	return r
}

// LoadFromFile loads configuration from a YAML file layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
