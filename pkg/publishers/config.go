package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// Supported publisher types.
	TypeQueue = "queue"
	TypeHTTP  = "http"

	// Supported queue providers.
	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderAzure  = "azure"
	QueueProviderGCP    = "gcp"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

var (
	errEmptyPath      = errors.New("publishers file path is empty")
	errNoPublishers   = errors.New("publishers file contains no publishers entries")
	errUnknownFormat  = errors.New("publishers file format not recognized (expected YAML or JSON)")
	errMissingID      = errors.New("id is required")
	errNotImplemented = errors.New("queue provider not implemented")
)

type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig is one publisher entry of the publishers file.
type PublisherConfig struct {
	ID       string                `json:"id" yaml:"id"`
	Type     string                `json:"type" yaml:"type"`
	Enabled  *bool                 `json:"enabled" yaml:"enabled"`
	Outcomes []string              `json:"outcomes" yaml:"outcomes"`
	Queue    *QueuePublisherConfig `json:"queue" yaml:"queue"`
	HTTP     *HTTPPublisherConfig  `json:"http" yaml:"http"`
}

// QueuePublisherConfig selects a cloud queue provider.
type QueuePublisherConfig struct {
	Provider string                 `json:"provider" yaml:"provider"`
	AWS      *AWSSQSPublisherConfig `json:"aws" yaml:"aws"`
	SNS      *AWSSNSPublisherConfig `json:"sns" yaml:"sns"`
	Azure    *AzureQueueConfig      `json:"azure" yaml:"azure"`
	GCP      *GCPQueueConfig        `json:"gcp" yaml:"gcp"`
}

// AWSSQSPublisherConfig holds AWS SQS settings.
type AWSSQSPublisherConfig struct {
	QueueURL        string `json:"uri" yaml:"uri"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// AWSSNSPublisherConfig holds AWS SNS settings.
type AWSSNSPublisherConfig struct {
	TopicARN        string `json:"topic_arn" yaml:"topic_arn"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// AzureQueueConfig is accepted in files but has no sender yet.
type AzureQueueConfig struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
	QueueName        string `json:"queue" yaml:"queue"`
}

// GCPQueueConfig holds Pub/Sub topic settings.
type GCPQueueConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig holds webhook settings.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// EnabledValue returns the enabled flag, defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// Wants reports whether events with the given outcome should reach this publisher.
// An empty outcome list subscribes to everything.
func (cfg PublisherConfig) Wants(outcome string) bool {
	if len(cfg.Outcomes) == 0 {
		return true
	}
	for _, o := range cfg.Outcomes {
		if o == outcome {
			return true
		}
	}
	return false
}

// Config is the validated content of a publishers file.
type Config struct {
	publishers []PublisherConfig
}

// LoadConfig reads a YAML or JSON publishers file. ${VAR} references are expanded from the environment.
func LoadConfig(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errEmptyPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	file, err := decodeConfigFile([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return newConfig(file.Publishers)
}

func newConfig(entries []PublisherConfig) (*Config, error) {
	if len(entries) == 0 {
		return nil, errNoPublishers
	}

	seen := make(map[string]struct{}, len(entries))
	out := make([]PublisherConfig, 0, len(entries))
	for i, entry := range entries {
		cfg := sanitizePublisherConfig(entry)
		if err := validatePublisherConfig(cfg); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
		out = append(out, cfg)
	}
	return &Config{publishers: out}, nil
}

func decodeConfigFile(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file configFile
		if err := d.fn(data, &file); err == nil {
			return file, nil
		}
	}
	return configFile{}, errUnknownFormat
}

// ByID returns the publisher config with the given id.
func (c *Config) ByID(id string) (PublisherConfig, bool) {
	if c == nil {
		return PublisherConfig{}, false
	}
	id = strings.TrimSpace(id)
	for _, p := range c.publishers {
		if p.ID == id {
			return p, true
		}
	}
	return PublisherConfig{}, false
}

// All returns a copy of every configured publisher.
func (c *Config) All() []PublisherConfig {
	if c == nil {
		return nil
	}
	out := make([]PublisherConfig, len(c.publishers))
	copy(out, c.publishers)
	return out
}

// Enabled returns the publishers that are switched on.
func (c *Config) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, p := range c.All() {
		if p.EnabledValue() {
			out = append(out, p)
		}
	}
	return out
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.Enabled == nil {
		on := true
		cfg.Enabled = &on
	}

	outcomes := cfg.Outcomes[:0:0]
	for _, o := range cfg.Outcomes {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
			outcomes = append(outcomes, o)
		}
	}
	cfg.Outcomes = outcomes

	if cfg.Queue != nil {
		qc := *cfg.Queue
		qc.Provider = strings.ToLower(strings.TrimSpace(qc.Provider))
		if qc.AWS != nil {
			a := *qc.AWS
			trimAll(&a.QueueURL, &a.Region, &a.AccessKeyID, &a.SecretAccessKey)
			qc.AWS = &a
		}
		if qc.SNS != nil {
			s := *qc.SNS
			trimAll(&s.TopicARN, &s.Region, &s.AccessKeyID, &s.SecretAccessKey)
			qc.SNS = &s
		}
		if qc.Azure != nil {
			a := *qc.Azure
			trimAll(&a.ConnectionString, &a.QueueName)
			qc.Azure = &a
		}
		if qc.GCP != nil {
			g := *qc.GCP
			trimAll(&g.ProjectID, &g.Topic, &g.CredentialsFile)
			qc.GCP = &g
		}
		cfg.Queue = &qc
	}

	if cfg.HTTP != nil {
		h := *cfg.HTTP
		h.URL = strings.TrimSpace(h.URL)
		h.Method = strings.ToUpper(strings.TrimSpace(h.Method))
		if h.Method == "" {
			h.Method = httpDefaultMethod
		}
		h.Headers = sanitizeHeaders(h.Headers)
		if h.TimeoutSeconds <= 0 {
			h.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &h
	}
	return cfg
}

// sanitizeHeaders trims keys and values and drops empty ones.
func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key, val := strings.TrimSpace(k), strings.TrimSpace(v)
		if key != "" && val != "" {
			out[key] = val
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// required returns an error naming the first empty field.
func required(id string, fields ...[2]string) error {
	for _, f := range fields {
		if f[1] == "" {
			return fmt.Errorf("%s is required for publisher %q", f[0], id)
		}
	}
	return nil
}

func validatePublisherConfig(cfg PublisherConfig) error {
	if cfg.ID == "" {
		return errMissingID
	}

	switch cfg.Type {
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for publisher %q", cfg.ID)
		}
		return required(cfg.ID, [2]string{"http.url", cfg.HTTP.URL})
	case TypeQueue:
		return validateQueueConfig(cfg.ID, cfg.Queue)
	case "":
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	default:
		return fmt.Errorf("type %q not supported for publisher %q", cfg.Type, cfg.ID)
	}
}

func validateQueueConfig(id string, q *QueuePublisherConfig) error {
	if q == nil {
		return fmt.Errorf("queue config required for publisher %q", id)
	}

	switch q.Provider {
	case QueueProviderAWSSQS:
		if q.AWS == nil {
			return fmt.Errorf("sqs config required for publisher %q", id)
		}
		return required(id,
			[2]string{"sqs.uri", q.AWS.QueueURL},
			[2]string{"sqs.region", q.AWS.Region},
			[2]string{"sqs.access_key_id", q.AWS.AccessKeyID},
			[2]string{"sqs.secret_access_key", q.AWS.SecretAccessKey},
		)
	case QueueProviderAWSSNS:
		if q.SNS == nil {
			return fmt.Errorf("sns config required for publisher %q", id)
		}
		return required(id,
			[2]string{"sns.topic_arn", q.SNS.TopicARN},
			[2]string{"sns.region", q.SNS.Region},
			[2]string{"sns.access_key_id", q.SNS.AccessKeyID},
			[2]string{"sns.secret_access_key", q.SNS.SecretAccessKey},
		)
	case QueueProviderGCP:
		if q.GCP == nil {
			return fmt.Errorf("gcp config required for publisher %q", id)
		}
		return required(id,
			[2]string{"gcp.project_id", q.GCP.ProjectID},
			[2]string{"gcp.topic", q.GCP.Topic},
		)
	case QueueProviderAzure:
		return fmt.Errorf("%w: %q for publisher %q", errNotImplemented, q.Provider, id)
	default:
		return fmt.Errorf("queue provider %q not supported for publisher %q", q.Provider, id)
	}
}
