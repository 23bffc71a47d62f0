package media

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// FFprobePath is a package-level default name for the external probe
// tool binary. Nothing assigns it at startup; a Toolkit probes with the
// ffprobe path passed to New.
var FFprobePath = "ffprobe"

// AudioStream is one audio stream reported by the probe tool, indexed in
// the order ffprobe lists audio streams (0-based, the "a" stream
// specifier index — not the global stream index).
type AudioStream struct {
	Index int
	Codec string
}

type probeFormat struct {
	Duration string            `json:"duration"`
	Tags     map[string]string `json:"tags"`
}

type probeStream struct {
	Index     int               `json:"index"`
	CodecType string            `json:"codec_type"`
	CodecName string            `json:"codec_name"`
	Tags      map[string]string `json:"tags"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

func (m *Toolkit) probe(ctx context.Context, path string) (probeOutput, error) {
	out, _, err := m.cmd.run(ctx, m.ffprobe, "-v", "error", "-print_format", "json",
		"-show_format", "-show_streams", path)
	if err != nil {
		return probeOutput{}, err
	}
	var p probeOutput
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return probeOutput{}, err
	}
	return p, nil
}

// ProbeDuration reads the container format duration in seconds; 0 means
// unknown / treat as non-video (spec §4.1).
func (m *Toolkit) ProbeDuration(ctx context.Context, path string) float64 {
	p, err := m.probe(ctx, path)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return d
}

// ProbeAudioStreams returns the ordered list of audio streams (spec
// §4.1), reindexed as ffmpeg's "0:a:N" stream-specifier index.
func (m *Toolkit) ProbeAudioStreams(ctx context.Context, path string) ([]AudioStream, error) {
	p, err := m.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []AudioStream
	n := 0
	for _, s := range p.Streams {
		if s.CodecType != "audio" {
			continue
		}
		out = append(out, AudioStream{Index: n, Codec: s.CodecName})
		n++
	}
	return out, nil
}

// ProbeSubtitleIndices returns the "0:s:N" stream-specifier indices of
// every subtitle track (spec §4.1).
func (m *Toolkit) ProbeSubtitleIndices(ctx context.Context, path string) ([]int, error) {
	p, err := m.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []int
	n := 0
	for _, s := range p.Streams {
		if s.CodecType != "subtitle" {
			continue
		}
		out = append(out, n)
		n++
	}
	return out, nil
}

// ProbeFormatTags returns every format-level (container) tag followed by
// every per-stream tag, concatenated for the metadata-scrub keyword scan
// (spec §4.3 step 3).
func (m *Toolkit) ProbeFormatTags(ctx context.Context, path string) (string, error) {
	p, err := m.probe(ctx, path)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for k, v := range p.Format.Tags {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	for _, s := range p.Streams {
		for k, v := range s.Tags {
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(v)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// SmartAudioMap implements the "smart audio map" rule (spec §4.1/GLOSSARY):
// skip a leading FLAC stream when an alternate exists, because the
// external transcoder rejects the FLAC profile encountered in practice.
func SmartAudioMap(streams []AudioStream) int {
	if len(streams) == 0 {
		return 0
	}
	if strings.EqualFold(streams[0].Codec, "flac") && len(streams) > 1 {
		return streams[1].Index
	}
	return streams[0].Index
}
