package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/ibradecode/internal/models"
	"github.com/yoockh/ibradecode/internal/utils"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 5 * time.Minute

	tagsTimeout  = 5 * time.Second
	maxErrorBody = 4 << 10
)

// Options are the sampling parameters sent with every generate request.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
}

var DefaultOptions = Options{Temperature: 0.7, TopP: 0.9, TopK: 40}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		Digest     string    `json:"digest"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// OllamaClient talks to a local Ollama server over its HTTP API.
type OllamaClient struct {
	baseURL string
	timeout time.Duration
	opts    Options
	http    *http.Client
	log     logrus.FieldLogger
}

func NewOllamaClient(baseURL string, timeout time.Duration, log logrus.FieldLogger) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.New()
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		opts:    DefaultOptions,
		http:    &http.Client{Timeout: timeout},
		log:     log.WithField("component", "ollama"),
	}
}

func (c *OllamaClient) BaseURL() string { return c.baseURL }

func (c *OllamaClient) Generate(ctx context.Context, model, prompt string) (*Generation, error) {
	const op = "OllamaClient.Generate"

	start := time.Now()
	log := c.log.WithField("model", model)
	log.Info("calling model")

	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false, Options: c.opts})
	if err != nil {
		return nil, utils.E(utils.CodeUpstreamError, op, fmt.Sprintf("failed to call model %s", model), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, utils.E(utils.CodeUpstreamError, op, fmt.Sprintf("failed to call model %s", model), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(log, start, c.transportError(op, model, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, c.fail(log, start, utils.E(utils.CodeModelNotFound, op,
			fmt.Sprintf("model %s not found, pull it first: ollama pull %s", model, model), nil))
	}
	if resp.StatusCode >= 300 {
		return nil, c.fail(log, start, utils.E(utils.CodeUpstreamError, op,
			fmt.Sprintf("failed to call model %s: status %d: %s", model, resp.StatusCode, readUpstreamError(resp.Body)), nil))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if isTimeout(err) {
			return nil, c.fail(log, start, c.transportError(op, model, err))
		}
		return nil, c.fail(log, start, utils.E(utils.CodeUpstreamMalformed, op,
			fmt.Sprintf("invalid response from model %s", model), err))
	}
	if out.Response == "" {
		return nil, c.fail(log, start, utils.E(utils.CodeUpstreamMalformed, op,
			fmt.Sprintf("invalid response from model %s", model), nil))
	}

	elapsed := time.Since(start).Milliseconds()
	log.WithField("elapsed_ms", elapsed).Info("model responded")

	return &Generation{
		Text:      out.Response,
		Model:     model,
		ElapsedMS: elapsed,
		Done:      out.Done,
	}, nil
}

func (c *OllamaClient) ListModels(ctx context.Context) ([]models.UpstreamModel, error) {
	const op = "OllamaClient.ListModels"

	ctx, cancel := context.WithTimeout(ctx, tagsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, utils.E(utils.CodeUpstreamError, op, "failed to retrieve available models", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(op, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, utils.E(utils.CodeUpstreamError, op,
			fmt.Sprintf("failed to retrieve available models: status %d: %s", resp.StatusCode, readUpstreamError(resp.Body)), nil)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, utils.E(utils.CodeUpstreamMalformed, op, "invalid model list from upstream", err)
	}

	out := make([]models.UpstreamModel, 0, len(tags.Models))
	for _, m := range tags.Models {
		out = append(out, models.UpstreamModel{
			Name:       m.Name,
			Size:       m.Size,
			Digest:     m.Digest,
			ModifiedAt: m.ModifiedAt,
		})
	}
	return out, nil
}

func (c *OllamaClient) transportError(op, model string, err error) error {
	target := "upstream"
	if model != "" {
		target = "model " + model
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return utils.E(utils.CodeUpstreamUnavailable, op,
			fmt.Sprintf("Ollama server is not running. Please start Ollama on %s", c.baseURL), err)
	case isTimeout(err):
		return utils.E(utils.CodeUpstreamTimeout, op,
			fmt.Sprintf("%s request timed out after %s", target, c.timeout), err)
	default:
		return utils.E(utils.CodeUpstreamError, op, fmt.Sprintf("failed to call %s: %v", target, err), err)
	}
}

func (c *OllamaClient) fail(log logrus.FieldLogger, start time.Time, err error) error {
	log.WithFields(logrus.Fields{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"code":       utils.CodeOf(err),
	}).WithError(err).Error("model call failed")
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func readUpstreamError(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var er errorResponse
	if json.Unmarshal(b, &er) == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(b))
}
