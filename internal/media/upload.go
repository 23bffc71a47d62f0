package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// UploadProgress is one parsed line of rclone's JSON transfer log, reported
// to the caller so it can persist Task.Progress/UploadSpeed/UploadETA
// (spec §4.1, "Upload"). Speed/ETA are kept numeric so the store persists
// raw values; HumanBytesPerSec/HumanSeconds format them at display time.
type UploadProgress struct {
	Percent int
	Speed   float64
	ETA     int
}

type rcloneStatsMsg struct {
	Stats struct {
		Bytes      int64   `json:"bytes"`
		TotalBytes int64   `json:"totalBytes"`
		Speed      float64 `json:"speed"`
		ETA        int64   `json:"eta"`
	} `json:"stats"`
}

// Upload moves localPath to the configured remote destination using
// rclone's moveto mode, streaming progress callbacks the way the
// teacher's local transcriber streams a Docker exec progress log. The
// source file is deleted by rclone itself on success.
func (m *Toolkit) Upload(ctx context.Context, localPath, remoteDest string, onProgress func(UploadProgress)) error {
	args := []string{
		"moveto", localPath, remoteDest,
		"--use-json-log",
		"--stats", "1s",
		"--stats-one-line",
		"-v",
	}
	cmd := newCommand(ctx, m.rclone, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("upload: stderr pipe: %w", err)
	}

	m.cmd.mu.Lock()
	m.cmd.cmd = cmd
	m.cmd.mu.Unlock()

	if err := cmd.Start(); err != nil {
		m.cmd.mu.Lock()
		m.cmd.cmd = nil
		m.cmd.mu.Unlock()
		return fmt.Errorf("upload: start rclone: %w", err)
	}

	scanUploadLog(stderr, onProgress)

	waitErr := cmd.Wait()

	m.cmd.mu.Lock()
	m.cmd.cmd = nil
	m.cmd.mu.Unlock()

	if waitErr != nil {
		return fmt.Errorf("upload: rclone moveto: %w", waitErr)
	}
	return nil
}

func scanUploadLog(r io.Reader, onProgress func(UploadProgress)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		var msg rcloneStatsMsg
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Stats.TotalBytes == 0 {
			continue
		}
		pct := int(float64(msg.Stats.Bytes) / float64(msg.Stats.TotalBytes) * 100)
		if onProgress != nil {
			onProgress(UploadProgress{
				Percent: pct,
				Speed:   msg.Stats.Speed,
				ETA:     int(msg.Stats.ETA),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("upload progress stream ended")
	}
}

// HumanBytesPerSec renders a raw bytes/sec speed for display (status CLI,
// spec §4.6 "upload speed/ETA/byte counts on the status CLI command").
func HumanBytesPerSec(bytesPerSec float64) string {
	return humanize.Bytes(uint64(bytesPerSec)) + "/s"
}

// HumanSeconds renders a raw ETA in seconds for display, "-" when unknown.
func HumanSeconds(s int) string {
	if s <= 0 {
		return "-"
	}
	return (time.Duration(s) * time.Second).String()
}
