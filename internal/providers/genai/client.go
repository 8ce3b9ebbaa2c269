package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"longvideo/internal/infra"
	"longvideo/internal/providers/video"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel          = "veo-3.1-generate-preview"
	defaultSyntheticPolls = 2
)

// Options controls how the Veo client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// SyntheticPolls is the number of polls a synthetic job needs before it
	// reports done. Only used when APIKey is empty.
	SyntheticPolls int
}

// Client talks to the Gemini API long-running video endpoints. Without an API
// key it serves deterministic synthetic jobs so the orchestration pipeline can
// run end-to-end in local and CI environments.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger

	mu             sync.Mutex
	seq            int
	synthetic      map[string]*syntheticJob
	syntheticPolls int
}

type veoVideo struct {
	URI                string `json:"uri,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Video  *veoVideo `json:"video,omitempty"`
}

type veoParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	NegativePrompt  string `json:"negativePrompt,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	SampleCount     int    `json:"sampleCount,omitempty"`
}

type predictLongRunningRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type generatedSample struct {
	Video veoVideo `json:"video"`
}

type generateVideoResponse struct {
	GeneratedSamples        []generatedSample `json:"generatedSamples"`
	RaiMediaFilteredReasons []string          `json:"raiMediaFilteredReasons,omitempty"`
}

type operationStatus struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type longRunningOperation struct {
	Name     string           `json:"name"`
	Done     bool             `json:"done"`
	Error    *operationStatus `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse generateVideoResponse `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Veo client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	polls := opts.SyntheticPolls
	if polls <= 0 {
		polls = defaultSyntheticPolls
	}

	return &Client{
		apiKey:         strings.TrimSpace(opts.APIKey),
		baseURL:        baseURL,
		model:          model,
		httpClient:     client,
		logger:         logger,
		synthetic:      make(map[string]*syntheticJob),
		syntheticPolls: polls,
	}, nil
}

// Model returns the configured Veo model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client serves synthetic jobs.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// Submit starts a generation job and returns its operation handle.
func (c *Client) Submit(ctx context.Context, job video.Job) (video.Handle, error) {
	if err := ctx.Err(); err != nil {
		return video.Handle{}, err
	}
	if c.Synthetic() {
		return c.submitSynthetic(job), nil
	}

	instance := veoInstance{Prompt: job.Prompt}
	if job.Source != nil {
		src, err := sourceVideo(job.Source)
		if err != nil {
			return video.Handle{}, err
		}
		instance.Video = src
	}
	payload := predictLongRunningRequest{
		Instances: []veoInstance{instance},
		Parameters: veoParameters{
			AspectRatio:     string(job.Config.AspectRatio),
			Resolution:      string(job.Config.Resolution),
			NegativePrompt:  job.Config.NegativePrompt,
			DurationSeconds: job.DurationSeconds,
			SampleCount:     1,
		},
	}

	var op longRunningOperation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &op); err != nil {
		return video.Handle{}, err
	}
	if op.Name == "" {
		return video.Handle{}, fmt.Errorf("veo: operation name missing in response")
	}

	c.logger.Debug().
		Str("request_id", job.RequestID).
		Str("model", c.model).
		Str("handle", op.Name).
		Bool("extension", job.Source != nil).
		Msg("genai: submitted video job")

	return video.Handle{Name: op.Name}, nil
}

// Poll reads the current state of a job. It never changes the job.
func (c *Client) Poll(ctx context.Context, handle video.Handle) (video.PollResult, error) {
	if err := ctx.Err(); err != nil {
		return video.PollResult{}, err
	}
	if c.Synthetic() {
		return c.pollSynthetic(handle)
	}

	var op longRunningOperation
	if err := c.invoke(ctx, http.MethodGet, "/"+strings.TrimLeft(handle.Name, "/"), nil, &op); err != nil {
		return video.PollResult{}, err
	}
	return pollResultFrom(op), nil
}

// Download fetches the bytes of a finished job.
func (c *Client) Download(ctx context.Context, result video.Result) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isSyntheticURI(result.URI) {
		return c.downloadSynthetic(result)
	}
	data, _, err := c.downloadFile(ctx, result.URI)
	return data, err
}

func pollResultFrom(op longRunningOperation) video.PollResult {
	if !op.Done {
		return video.PollResult{}
	}
	if op.Error != nil && op.Error.Message != "" {
		return video.PollResult{Done: true, Failure: op.Error.Message}
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		failure := "no video returned"
		if reasons := op.Response; reasons != nil && len(reasons.GenerateVideoResponse.RaiMediaFilteredReasons) > 0 {
			failure = "video filtered: " + strings.Join(reasons.GenerateVideoResponse.RaiMediaFilteredReasons, "; ")
		}
		return video.PollResult{Done: true, Failure: failure}
	}
	sample := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video
	if sample.URI == "" {
		return video.PollResult{Done: true, Failure: "video uri missing"}
	}
	return video.PollResult{
		Done:   true,
		Result: &video.Result{URI: sample.URI, MimeType: firstNonEmpty(sample.MimeType, "video/mp4")},
	}
}

// sourceVideo prefers the service-side reference of the previous clip and
// falls back to uploading the local artifact inline.
func sourceVideo(src *video.Media) (*veoVideo, error) {
	if src.URI != "" && !isSyntheticURI(src.URI) {
		return &veoVideo{URI: src.URI}, nil
	}
	if src.Path == "" {
		return nil, fmt.Errorf("veo: source media has neither uri nor path")
	}
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("read source media: %w", err)
	}
	return &veoVideo{
		BytesBase64Encoded: base64.StdEncoding.EncodeToString(data),
		MimeType:           firstNonEmpty(src.MimeType, "video/mp4"),
	}, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke veo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("veo status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		if len(data) > 0 {
			return fmt.Errorf("veo status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("veo status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode veo response: %w", err)
	}
	return nil
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	if len(blob) == 0 {
		return nil, "", fmt.Errorf("download file: empty body")
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ video.Gateway = (*Client)(nil)
