package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storyreel/storyreel/pkg/log"
)

// Merger concatenates ordered clip URLs into one continuous video file.
type Merger struct {
	ffmpegCmd  string
	outputDir  string
	httpClient *http.Client
}

func NewMerger(outputDir string) *Merger {
	return &Merger{
		ffmpegCmd: "ffmpeg",
		outputDir: outputDir,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// MergeResult describes the produced artifact. Degraded is set when
// concatenation was skipped and the first clip stands in for the whole
// video.
type MergeResult struct {
	ArtifactRef       string
	UniqueURLs        []string
	DuplicatesDropped int
	Degraded          bool
}

// DedupURLs removes repeated URLs keeping first-seen order. A provider
// returning the same URL for two continuation requests means the
// continuation chain did not advance, so repeats are dropped, not merged.
func DedupURLs(urls []string) (unique []string, dropped int) {
	seen := make(map[string]struct{}, len(urls))
	unique = make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			dropped++
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}
	return unique, dropped
}

// Merge concatenates the ordered clip URLs into a single file under the
// output directory. Clip order is preserved exactly; streams are joined
// without re-encoding. Merge never fails the job outright: when the
// concatenation tool is unavailable or errors, the first clip is returned
// as a degraded artifact.
func (m *Merger) Merge(ctx context.Context, orderedURLs []string) (MergeResult, error) {
	unique, dropped := DedupURLs(orderedURLs)
	if dropped > 0 {
		log.Warn("Dropped %d duplicate clip URL(s) before merge; continuation likely did not advance", dropped)
	}
	if len(unique) == 0 {
		return MergeResult{}, fmt.Errorf("no clip urls to merge")
	}

	result := MergeResult{UniqueURLs: unique, DuplicatesDropped: dropped}

	if len(unique) == 1 {
		result.ArtifactRef = unique[0]
		return result, nil
	}

	cmdPath, err := exec.LookPath(m.ffmpegCmd)
	if err != nil {
		log.Warn("ffmpeg not available, falling back to first clip: %v", err)
		result.ArtifactRef = unique[0]
		result.Degraded = true
		return result, nil
	}

	artifact, err := m.concat(ctx, cmdPath, unique)
	if err != nil {
		log.Error("Clip concatenation failed, falling back to first clip: %v", err)
		result.ArtifactRef = unique[0]
		result.Degraded = true
		return result, nil
	}

	result.ArtifactRef = artifact
	return result, nil
}

func (m *Merger) concat(ctx context.Context, ffmpegPath string, urls []string) (string, error) {
	tempDir, err := os.MkdirTemp("", "storyreel-merge-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	// Intermediates are removed on success and failure alike.
	defer os.RemoveAll(tempDir)

	localFiles := make([]string, 0, len(urls))
	for i, u := range urls {
		local := filepath.Join(tempDir, fmt.Sprintf("clip_%03d.mp4", i+1))
		if err := m.download(ctx, u, local); err != nil {
			return "", fmt.Errorf("download clip %d: %w", i+1, err)
		}
		localFiles = append(localFiles, local)
	}

	listFile := filepath.Join(tempDir, "concat.txt")
	var lines []string
	for _, f := range localFiles {
		lines = append(lines, fmt.Sprintf("file '%s'", f))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}

	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outFile := filepath.Join(m.outputDir, fmt.Sprintf("story_%s.mp4", uuid.NewString()[:8]))

	cmd := exec.CommandContext(ctx, ffmpegPath, "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outFile,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg concat: %w: %s", err, string(out))
	}
	return outFile, nil
}

func (m *Merger) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
