package media

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"github.com/storyreel/storyreel/pkg/log"
)

// Prober measures the true duration of a generated clip. Providers round
// clip lengths, so the requested duration is never trusted for accounting.
type Prober struct {
	ffprobeCmd string
}

func NewProber() *Prober {
	return &Prober{ffprobeCmd: "ffprobe"}
}

// ProbeDuration returns the measured duration of the clip at videoURL in
// seconds. Probing is best-effort: any failure falls back to the nominal
// duration instead of propagating an error.
func (p *Prober) ProbeDuration(ctx context.Context, videoURL string, nominalSeconds float64) float64 {
	cmdPath, err := exec.LookPath(p.ffprobeCmd)
	if err != nil {
		log.Warn("ffprobe not available, assuming nominal duration %.1fs: %v", nominalSeconds, err)
		return nominalSeconds
	}

	cmd := exec.CommandContext(ctx, cmdPath, probeArgs(videoURL)...)
	output, err := cmd.Output()
	if err != nil {
		log.Warn("Failed to probe %s, assuming nominal duration %.1fs: %v", videoURL, nominalSeconds, err)
		return nominalSeconds
	}

	seconds, err := parseProbeDuration(output)
	if err != nil {
		log.Warn("Failed to parse ffprobe output for %s: %v", videoURL, err)
		return nominalSeconds
	}
	return seconds
}

func probeArgs(target string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		target,
	}
}

func parseProbeDuration(output []byte) (float64, error) {
	var probeResult struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probeResult); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(probeResult.Format.Duration, 64)
}
