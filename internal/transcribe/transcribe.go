// Package transcribe implements the Transcriber (spec §4.2, C2): a
// two-tier speech-to-text facade over a configurable cloud HTTP endpoint
// (primary) and a local containerized model (fallback).
package transcribe

import (
	"context"
	"errors"
)

// Provider names returned alongside a transcript. Failures are returned
// as the provider's own error (or ErrNoProvider) without a failure class;
// the Detection Engine wraps them as retryable `cloud_exhausted` or
// `transcribe_failed`.
const (
	ProviderCloud = "cloud"
	ProviderLocal = "local"
)

// ErrNoProvider means neither a cloud endpoint nor a local model is
// configured/enabled. The Detection Engine treats it like any other
// transcription failure; no separate `no_provider_available` class exists.
var ErrNoProvider = errors.New("no transcription provider configured")

// Config is the subset of resolved settings the Transcriber needs.
type Config struct {
	CloudURL     string
	CloudKey     string
	CloudModel   string
	LocalEnabled bool
}

// Transcriber is the facade the Detection Engine calls per audio segment.
// It deliberately does not implement the retry-budget gating between
// cloud and local (spec §4.3 step 6b) — that decision belongs to the
// caller, which knows the task's retry_count; Transcribe only decides
// whether to fall back at all via useLocal.
type Transcriber struct {
	cloud *CloudProvider
	local *LocalProvider
}

// New builds a Transcriber bound to a cloud endpoint and, optionally, a
// local containerized model.
func New(cloud *CloudProvider, local *LocalProvider) *Transcriber {
	return &Transcriber{cloud: cloud, local: local}
}

// Transcribe converts a wav segment to text, trying the cloud provider
// first and falling back to the local provider only when useLocal is
// set and a local provider is configured and enabled.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath string, cfg Config, useLocal bool) (text string, provider string, err error) {
	haveCloud := t.cloud != nil && cfg.CloudURL != ""
	haveLocal := useLocal && t.local != nil && cfg.LocalEnabled

	if !haveCloud && !haveLocal {
		return "", "", ErrNoProvider
	}

	if haveCloud {
		text, cloudErr := t.cloud.Transcribe(ctx, wavPath, cfg)
		if cloudErr == nil {
			return Normalize(text), ProviderCloud, nil
		}
		if !haveLocal {
			return "", "", cloudErr
		}
	}

	text, err = t.local.Transcribe(ctx, wavPath)
	if err != nil {
		return "", "", err
	}
	return Normalize(text), ProviderLocal, nil
}
