package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// CloudProvider speaks an OpenAI-compatible transcription endpoint
// (spec §4.2/§6: one configurable cloud STT endpoint), generalizing the
// teacher's CustomSTTProvider.
type CloudProvider struct {
	MaxAttempts int
	Timeout     time.Duration
	Client      *http.Client
}

// NewCloudProvider returns a CloudProvider with the given retry budget
// and per-attempt timeout (spec §5: "soft timeout 10 s connect / 60 s
// read" — modeled here as a single attempt deadline).
func NewCloudProvider(maxAttempts int, timeout time.Duration) *CloudProvider {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &CloudProvider{MaxAttempts: maxAttempts, Timeout: timeout, Client: &http.Client{}}
}

func buildRetryPolicy(maxAttempts int) failsafe.Policy[string] {
	return retrypolicy.Builder[string]().
		HandleIf(func(_ string, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		AbortOnErrors(context.Canceled).
		WithMaxAttempts(maxAttempts).
		ReturnLastFailure().
		WithBackoffFactor(500*time.Millisecond, 5*time.Second, 2.0).
		Build()
}

// Transcribe posts the wav file to the cloud endpoint as multipart form
// data with model/language/response_format fields (spec §4.2 expansion),
// retrying transport-level failures within this single call via
// failsafe-go.
func (p *CloudProvider) Transcribe(ctx context.Context, wavPath string, cfg Config) (string, error) {
	policy := buildRetryPolicy(p.MaxAttempts)

	return failsafe.Get(func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		file, err := os.Open(wavPath)
		if err != nil {
			return "", fmt.Errorf("open audio segment: %w", err)
		}
		defer file.Close()

		pr, pw := io.Pipe()
		writer := multipart.NewWriter(pw)

		go func() {
			defer pw.Close()
			if cfg.CloudModel != "" {
				_ = writer.WriteField("model", cfg.CloudModel)
			}
			_ = writer.WriteField("language", "zh")
			_ = writer.WriteField("response_format", "json")

			part, err := writer.CreateFormFile("file", filepath.Base(wavPath))
			if err != nil {
				pw.CloseWithError(fmt.Errorf("create form file: %w", err))
				return
			}
			if _, err := io.Copy(part, file); err != nil {
				pw.CloseWithError(fmt.Errorf("copy audio data: %w", err))
				return
			}
			if err := writer.Close(); err != nil {
				pw.CloseWithError(fmt.Errorf("close multipart writer: %w", err))
			}
		}()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, cfg.CloudURL, pr)
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		if cfg.CloudKey != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.CloudKey)
		}

		resp, err := p.Client.Do(req)
		if err != nil {
			return "", fmt.Errorf("cloud STT request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			return "", fmt.Errorf("cloud STT error (status %d): %s", resp.StatusCode, string(body))
		}

		var result struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", fmt.Errorf("decode cloud STT response: %w", err)
		}
		return result.Text, nil
	}, policy)
}
