package tagging

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aether/internal/shared"
)

const defaultID3Version = "3"

// ffmpegError wraps FFmpeg command errors with additional context
type ffmpegError struct {
	cmd     string
	output  string
	wrapped error
}

func (e *ffmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %s\nCommand: %s\nOutput: %s", e.wrapped, e.cmd, e.output)
}

func (e *ffmpegError) Unwrap() error {
	return e.wrapped
}

func newFFmpegError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	out := string(output)
	if len(out) > 1000 {
		out = out[len(out)-1000:]
	}
	return &ffmpegError{cmd: cmdStr, output: out, wrapped: err}
}

// FFmpegTagger remuxes a file with new metadata using the ffmpeg binary.
type FFmpegTagger struct {
	binary string
	gpu    bool
	logger *log.Logger
}

// NewFFmpegTagger creates an ffmpeg tagger. With gpu set, the first pass requests CUDA decoding and a failure is
// retried once without it.
func NewFFmpegTagger(binary string, gpu bool, logger *log.Logger) *FFmpegTagger {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &FFmpegTagger{binary: binary, gpu: gpu, logger: logger}
}

// Args builds the ffmpeg argument list that copies src to dst with meta applied. coverPath may be empty.
func Args(src, dst, coverPath string, meta Metadata, gpu bool) []string {
	args := []string{"-y"}
	if gpu {
		args = append(args, "-hwaccel", "cuda")
	}
	args = append(args, "-i", src)

	if coverPath != "" {
		args = append(args,
			"-i", coverPath,
			"-map", "0:a",
			"-map", "1:v",
			"-disposition:v:0", "attached_pic",
			"-metadata:s:v", "title=Album cover",
			"-metadata:s:v", "comment=Cover (front)",
		)
	}

	for _, kv := range [][2]string{
		{"artist", meta.Artist},
		{"title", meta.Title},
		{"album", meta.Album},
		{"comment", meta.Comment},
	} {
		if kv[1] != "" {
			args = append(args, "-metadata", kv[0]+"="+kv[1])
		}
	}

	return append(args,
		"-codec", "copy",
		"-id3v2_version", defaultID3Version,
		dst,
	)
}

// Write rewrites path with meta by remuxing into a sibling file and renaming it over the original.
func (f *FFmpegTagger) Write(ctx context.Context, path string, meta Metadata) error {
	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + ".tagged" + ext
	defer os.Remove(tmp)

	var coverPath string
	if len(meta.Cover) > 0 {
		cover, err := os.CreateTemp(filepath.Dir(path), ".cover_*"+coverExt(meta.CoverMIME))
		if err != nil {
			return fmt.Errorf("failed to create cover file: %w", err)
		}
		coverPath = cover.Name()
		defer os.Remove(coverPath)

		_, err = cover.Write(meta.Cover)
		cover.Close()
		if err != nil {
			return fmt.Errorf("failed to write cover file: %w", err)
		}
	}

	err := f.run(ctx, Args(path, tmp, coverPath, meta, f.gpu))
	if err != nil && f.gpu && ctx.Err() == nil {
		f.logger.Warn("gpu tagging failed, retrying on cpu", "path", path, "err", err)
		err = f.run(ctx, Args(path, tmp, coverPath, meta, false))
	}
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (f *FFmpegTagger) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newFFmpegError(cmd, output, err)
	}
	return nil
}

func coverExt(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
