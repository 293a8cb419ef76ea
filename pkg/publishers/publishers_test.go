package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func sampleEvent() Event {
	published := time.Date(2026, 2, 10, 7, 30, 0, 0, time.UTC)
	return Event{
		ID:           "evt-1",
		Outcome:      "inserted",
		Fingerprint:  "abc123",
		Ticker:       "BUMI",
		Source:       "kontan",
		URL:          "https://investasi.kontan.co.id/news/bumi",
		Title:        "Saham BUMI Naik",
		PublishedAt:  &published,
		StockSymbols: []string{"BUMI"},
		OccurredAt:   published.Add(time.Minute),
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("WEBHOOK_TOKEN", "s3cret")
	path := writeFile(t, "publishers.yaml", `
publishers:
  - id: " webhook "
    type: HTTP
    outcomes: [" Inserted ", merged_ticker]
    http:
      url: https://hooks.example/news
      headers:
        Authorization: "Bearer ${WEBHOOK_TOKEN}"
        " ": dropped
  - id: sqs-main
    type: queue
    enabled: false
    queue:
      provider: AWS-SQS
      aws:
        uri: https://sqs.ap-southeast-3.amazonaws.com/1/news
        region: ap-southeast-3
        access_key_id: key
        secret_access_key: secret
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.All(), 2)

	hook, ok := cfg.ByID("webhook")
	require.True(t, ok)
	assert.Equal(t, TypeHTTP, hook.Type)
	assert.Equal(t, "POST", hook.HTTP.Method)
	assert.Equal(t, httpDefaultTimeoutSeconds, hook.HTTP.TimeoutSeconds)
	assert.Equal(t, map[string]string{"Authorization": "Bearer s3cret"}, hook.HTTP.Headers)
	assert.Equal(t, []string{"inserted", "merged_ticker"}, hook.Outcomes)
	assert.True(t, hook.Wants("inserted"))
	assert.False(t, hook.Wants("rejected_noise"))

	sqsCfg, ok := cfg.ByID("sqs-main")
	require.True(t, ok)
	assert.Equal(t, QueueProviderAWSSQS, sqsCfg.Queue.Provider)
	assert.False(t, sqsCfg.EnabledValue())

	enabled := cfg.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "webhook", enabled[0].ID)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "publishers.json", `{"publishers":[{"id":"ps","type":"queue","queue":{"provider":"gcp","gcp":{"project_id":"p","topic":"news"}}}]}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	ps, ok := cfg.ByID("ps")
	require.True(t, ok)
	assert.Equal(t, "news", ps.Queue.GCP.Topic)
	assert.True(t, ps.Wants("rejected_noise"))
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"empty list", "p.yaml", "publishers: []", "no publishers"},
		{"missing id", "p.yaml", "publishers:\n  - type: http\n    http: {url: x}", "id is required"},
		{"missing url", "p.yaml", "publishers:\n  - id: a\n    type: http\n    http: {}", "http.url is required"},
		{"unknown type", "p.yaml", "publishers:\n  - id: a\n    type: smtp", "not supported"},
		{"azure", "p.yaml", "publishers:\n  - id: a\n    type: queue\n    queue: {provider: azure}", "not implemented"},
		{"sns region", "p.yaml", "publishers:\n  - id: a\n    type: queue\n    queue:\n      provider: aws-sns\n      sns: {topic_arn: arn}", "sns.region is required"},
		{"duplicate", "p.yaml", "publishers:\n  - {id: a, type: http, http: {url: x}}\n  - {id: a, type: http, http: {url: y}}", "duplicate publisher id"},
		{"bad json", "p.json", "{", "not recognized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadConfig("  ")
	assert.ErrorIs(t, err, errEmptyPath)
}

func TestHTTPPublisher_Publish(t *testing.T) {
	var (
		mu   sync.Mutex
		got  Event
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg, err := newConfig([]PublisherConfig{{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPPublisherConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer t"}},
	}})
	require.NoError(t, err)

	pubs, err := BuildAll(context.Background(), DefaultRegistry(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, "hook", pubs[0].ID())
	assert.Equal(t, TypeHTTP, pubs[0].Type())

	evt := sampleEvent()
	require.NoError(t, pubs[0].Publish(context.Background(), evt))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer t", auth)
	assert.Equal(t, evt.Fingerprint, got.Fingerprint)
	assert.Equal(t, evt.Ticker, got.Ticker)
	assert.True(t, evt.PublishedAt.Equal(*got.PublishedAt))
}

func TestHTTPPublisher_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	pub, err := newHTTPPublisher(context.Background(), sanitizePublisherConfig(PublisherConfig{
		ID: "hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: srv.URL},
	}), nil)
	require.NoError(t, err)

	err = pub.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream down")
}

type recordingPublisher struct {
	events []Event
}

func (r *recordingPublisher) ID() string   { return "rec" }
func (r *recordingPublisher) Type() string { return "test" }
func (r *recordingPublisher) Publish(_ context.Context, evt Event) error {
	r.events = append(r.events, evt)
	return nil
}

func TestBuildAll_OutcomeFilterAndCustomBuilder(t *testing.T) {
	rec := &recordingPublisher{}
	reg := NewRegistry(nil)
	reg.Register(" TEST ", func(context.Context, PublisherConfig, Logger) (Publisher, error) { return rec, nil })
	reg.Register("", func(context.Context, PublisherConfig, Logger) (Publisher, error) { return nil, errors.New("never") })

	cfg := &Config{publishers: []PublisherConfig{{ID: "rec", Type: "test", Outcomes: []string{"inserted"}}}}
	pubs, err := BuildAll(context.Background(), reg, cfg, nil)
	require.NoError(t, err)
	require.Len(t, pubs, 1)

	ins := sampleEvent()
	noise := sampleEvent()
	noise.Outcome = "rejected_noise"
	require.NoError(t, pubs[0].Publish(context.Background(), ins))
	require.NoError(t, pubs[0].Publish(context.Background(), noise))

	require.Len(t, rec.events, 1)
	assert.Equal(t, "inserted", rec.events[0].Outcome)

	_, err = reg.PublisherFor(context.Background(), PublisherConfig{ID: "x", Type: "kafka"}, nil)
	assert.Error(t, err)
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: aws.String("m-2")}, nil
}

func TestAWSSQSSender_Send(t *testing.T) {
	client := &fakeSQS{}
	sender := &awsSQSSender{queueURL: "https://sqs/q", client: client, log: ensureLogger(nil)}

	evt := sampleEvent()
	evt.ImageURL = ""
	require.NoError(t, sender.Send(context.Background(), evt))

	require.NotNil(t, client.input)
	assert.Equal(t, "https://sqs/q", aws.ToString(client.input.QueueUrl))
	assert.Equal(t, "kontan", aws.ToString(client.input.MessageAttributes["source"].StringValue))
	assert.Equal(t, "BUMI", aws.ToString(client.input.MessageAttributes["ticker"].StringValue))
	assert.Equal(t, "inserted", aws.ToString(client.input.MessageAttributes["outcome"].StringValue))

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.MessageBody)), &decoded))
	assert.Equal(t, evt.Fingerprint, decoded.Fingerprint)

	client.err = errors.New("throttled")
	qp := &queuePublisher{id: "q", provider: QueueProviderAWSSQS, sender: sender}
	err := qp.Publish(context.Background(), evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aws-sqs")
	assert.Contains(t, err.Error(), "throttled")
}

func TestAWSSNSSender_Send(t *testing.T) {
	client := &fakeSNS{}
	sender := &awsSNSSender{topicARN: "arn:aws:sns:x", client: client, log: ensureLogger(nil)}

	evt := sampleEvent()
	evt.Ticker = ""
	require.NoError(t, sender.Send(context.Background(), evt))

	assert.Equal(t, "arn:aws:sns:x", aws.ToString(client.input.TopicArn))
	_, hasTicker := client.input.MessageAttributes["ticker"]
	assert.False(t, hasTicker)
	assert.Contains(t, aws.ToString(client.input.Message), `"hash":"abc123"`)
}

func TestQueuePublisher_AzureNotImplemented(t *testing.T) {
	_, err := newQueuePublisher(context.Background(), PublisherConfig{
		ID: "az", Type: TypeQueue, Queue: &QueuePublisherConfig{Provider: QueueProviderAzure},
	}, nil)
	assert.ErrorIs(t, err, errNotImplemented)
}

func TestQueuePublisher_UnsupportedProvider(t *testing.T) {
	_, err := newQueuePublisher(context.Background(), PublisherConfig{
		ID: "k", Type: TypeQueue, Queue: &QueuePublisherConfig{Provider: "kafka"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"kafka" is not supported`)

	_, err = newQueuePublisher(context.Background(), PublisherConfig{ID: "k", Type: TypeQueue}, nil)
	assert.Error(t, err)
}

func TestRegistry_Types(t *testing.T) {
	assert.Equal(t, []string{TypeHTTP, TypeQueue}, DefaultRegistry().Types())

	var empty *Config
	pubs, err := BuildAll(context.Background(), DefaultRegistry(), empty, nil)
	require.NoError(t, err)
	assert.Empty(t, pubs)
}
