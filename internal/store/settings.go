package store

import (
	"context"
	"strconv"
)

// Settings is the resolved, effective configuration for one task: operator
// defaults overlaid with the persisted Config table, overlaid with that
// task's own overrides (spec §4.6: "defaults ← persisted_config ←
// task.overrides").
type Settings struct {
	CheckAudio         bool
	CheckSubtitles     bool
	SanitizeMetadata   bool
	EnableLocalModel   bool
	DetailedMode       bool
	NotifyUploadSuccess bool
	NotifyErrors       bool

	AudioThresholdMulti int
	AudioThresholdLong  int
	AudioLenHead        int
	AudioLenMid         int
	AudioLenTail        int
	AudioLenTailLong    int
	ConcurrencyDetect   int
	ConcurrencyUpload   int

	CloudSTTURL   string
	CloudSTTKey   string
	CloudSTTModel string
	RcloneRemote  string
	NotifyWebhook string
}

// Defaults mirrors the spec §6 defaults table.
func Defaults() Settings {
	return Settings{
		CheckAudio:       true,
		CheckSubtitles:   true,
		SanitizeMetadata: true,

		AudioThresholdMulti: 600,
		AudioThresholdLong:  3600,
		AudioLenHead:        240,
		AudioLenMid:         240,
		AudioLenTail:        300,
		AudioLenTailLong:    600,
		ConcurrencyDetect:   2,
		ConcurrencyUpload:   9,
	}
}

var boolKeys = []string{"check_audio", "check_subtitles", "sanitize_metadata", "enable_local_model", "detailed_mode", "notify_upload_success", "notify_errors"}
var intKeys = []string{"audio_threshold_multi", "audio_threshold_long", "audio_len_head", "audio_len_mid", "audio_len_tail", "audio_len_tail_long", "concurrency_detect", "concurrency_upload"}
var stringKeys = []string{"cloud_stt_url", "cloud_stt_key", "cloud_stt_model", "rclone_remote", "notify_webhook"}

// GetConfig loads every persisted Config row into a string map.
func (s *Store) GetConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetConfig upserts a single Config key/value pair as raw text; type
// coercion happens at read time in Resolve, per spec §4.6.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value)
	return err
}

// Resolve computes the effective Settings for one task: Defaults()
// overlaid with the persisted Config table, overlaid with the task's own
// overrides.Settings (spec §4.6).
func Resolve(persisted map[string]string, overrides map[string]string) Settings {
	s := Defaults()
	merged := map[string]string{}
	for k, v := range persisted {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	get := func(key string) (string, bool) {
		v, ok := merged[key]
		return v, ok
	}
	if v, ok := get("check_audio"); ok {
		s.CheckAudio = coerceBool(v, s.CheckAudio)
	}
	if v, ok := get("check_subtitles"); ok {
		s.CheckSubtitles = coerceBool(v, s.CheckSubtitles)
	}
	if v, ok := get("sanitize_metadata"); ok {
		s.SanitizeMetadata = coerceBool(v, s.SanitizeMetadata)
	}
	if v, ok := get("enable_local_model"); ok {
		s.EnableLocalModel = coerceBool(v, s.EnableLocalModel)
	}
	if v, ok := get("detailed_mode"); ok {
		s.DetailedMode = coerceBool(v, s.DetailedMode)
	}
	if v, ok := get("notify_upload_success"); ok {
		s.NotifyUploadSuccess = coerceBool(v, s.NotifyUploadSuccess)
	}
	if v, ok := get("notify_errors"); ok {
		s.NotifyErrors = coerceBool(v, s.NotifyErrors)
	}

	if v, ok := get("audio_threshold_multi"); ok {
		s.AudioThresholdMulti = coerceInt(v, s.AudioThresholdMulti)
	}
	if v, ok := get("audio_threshold_long"); ok {
		s.AudioThresholdLong = coerceInt(v, s.AudioThresholdLong)
	}
	if v, ok := get("audio_len_head"); ok {
		s.AudioLenHead = coerceInt(v, s.AudioLenHead)
	}
	if v, ok := get("audio_len_mid"); ok {
		s.AudioLenMid = coerceInt(v, s.AudioLenMid)
	}
	if v, ok := get("audio_len_tail"); ok {
		s.AudioLenTail = coerceInt(v, s.AudioLenTail)
	}
	if v, ok := get("audio_len_tail_long"); ok {
		s.AudioLenTailLong = coerceInt(v, s.AudioLenTailLong)
	}
	if v, ok := get("concurrency_detect"); ok {
		s.ConcurrencyDetect = max1(coerceInt(v, s.ConcurrencyDetect))
	}
	if v, ok := get("concurrency_upload"); ok {
		s.ConcurrencyUpload = max1(coerceInt(v, s.ConcurrencyUpload))
	}

	if v, ok := get("cloud_stt_url"); ok {
		s.CloudSTTURL = v
	}
	if v, ok := get("cloud_stt_key"); ok {
		s.CloudSTTKey = v
	}
	if v, ok := get("cloud_stt_model"); ok {
		s.CloudSTTModel = v
	}
	if v, ok := get("rclone_remote"); ok {
		s.RcloneRemote = v
	}
	if v, ok := get("notify_webhook"); ok {
		s.NotifyWebhook = v
	}
	return s
}

func coerceBool(v string, fallback bool) bool {
	switch v {
	case "true":
		return true
	case "false":
		return false
	default:
		return fallback
	}
}

func coerceInt(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
