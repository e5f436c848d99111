package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/AbhiramVSA/Luma/internal/audio"
)

// Runner executes an ffmpeg invocation and returns captured stderr. ffmpeg
// writes its diagnostics there, so the stderr text is all callers need for
// error reporting. Tests replace the runner to avoid spawning processes.
type Runner func(ctx context.Context, path string, args []string) (string, error)

// Transcoder drives an external ffmpeg binary for every container-level audio
// operation: concatenation, silence generation, loudness normalization and raw
// PCM conversion.
type Transcoder struct {
	path string
	run  Runner
}

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithPath sets the ffmpeg binary path.
func WithPath(p string) Option {
	return func(t *Transcoder) {
		if p != "" {
			t.path = p
		}
	}
}

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(t *Transcoder) {
		if r != nil {
			t.run = r
		}
	}
}

func New(opts ...Option) *Transcoder {
	t := &Transcoder{path: "ffmpeg", run: execRunner}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func execRunner(ctx context.Context, path string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return stderr.String(), fmt.Errorf("ffmpeg %s: %w: %s", args[len(args)-1], err, strings.TrimSpace(stderr.String()))
	}
	return stderr.String(), nil
}

func (t *Transcoder) exec(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}, args...)
	_, err := t.run(ctx, t.path, full)
	return err
}

// codecArgs maps an output container format to encoder arguments.
func codecArgs(format string) []string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "mp3":
		return []string{"-codec:a", "libmp3lame", "-q:a", "2"}
	case "wav":
		return []string{"-codec:a", "pcm_s16le"}
	case "flac":
		return []string{"-codec:a", "flac"}
	case "aac", "m4a":
		return []string{"-codec:a", "aac", "-b:a", "256k"}
	default:
		return []string{"-codec:a", "libmp3lame", "-q:a", "2"}
	}
}

func formatOf(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// Concat joins the input files into out in order. With a positive crossfade
// the inputs are folded pairwise through an acrossfade filter; otherwise a
// concat demuxer list keeps segment boundaries exact.
func (t *Transcoder) Concat(ctx context.Context, inputs []string, out string, crossfadeSeconds float64) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no inputs")
	}
	if len(inputs) == 1 {
		return t.exec(ctx, "-i", inputs[0], "-codec", "copy", out)
	}
	if crossfadeSeconds > 0 {
		return t.concatCrossfade(ctx, inputs, out, crossfadeSeconds)
	}

	list, err := writeConcatList(inputs)
	if err != nil {
		return err
	}
	defer os.Remove(list)

	args := append([]string{"-f", "concat", "-safe", "0", "-i", list}, codecArgs(formatOf(out))...)
	return t.exec(ctx, append(args, out)...)
}

func (t *Transcoder) concatCrossfade(ctx context.Context, inputs []string, out string, seconds float64) error {
	filter := fmt.Sprintf("acrossfade=d=%g:curve1=tri:curve2=tri", seconds)
	acc := inputs[0]
	var temps []string
	defer func() {
		for _, p := range temps {
			os.Remove(p)
		}
	}()

	for i := 1; i < len(inputs); i++ {
		target := out
		if i < len(inputs)-1 {
			f, err := os.CreateTemp("", "xfade-*."+formatOf(out))
			if err != nil {
				return err
			}
			f.Close()
			target = f.Name()
			temps = append(temps, target)
		}
		args := append([]string{"-i", acc, "-i", inputs[i], "-filter_complex", filter}, codecArgs(formatOf(out))...)
		if err := t.exec(ctx, append(args, target)...); err != nil {
			return err
		}
		acc = target
	}
	return nil
}

func writeConcatList(inputs []string) (string, error) {
	f, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return "", err
	}
	defer f.Close()
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			abs = in
		}
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		if _, err := fmt.Fprintf(f, "file '%s'\n", escaped); err != nil {
			os.Remove(f.Name())
			return "", err
		}
	}
	return f.Name(), nil
}

// GenerateSilence writes a silent clip of the given duration to out.
func (t *Transcoder) GenerateSilence(ctx context.Context, seconds float64, out string) error {
	if seconds <= 0 {
		return fmt.Errorf("silence: duration must be positive, got %g", seconds)
	}
	args := append(
		[]string{"-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo", "-t", fmt.Sprintf("%g", seconds)},
		codecArgs(formatOf(out))...,
	)
	return t.exec(ctx, append(args, out)...)
}

// Normalize applies two-pass style loudnorm in place, writing through a
// sibling temp file so a failed run never clobbers the original.
func (t *Transcoder) Normalize(ctx context.Context, path string) error {
	tmp := normTempPath(path)
	args := append([]string{"-i", path, "-af", "loudnorm"}, codecArgs(formatOf(path))...)
	if err := t.exec(ctx, append(args, tmp)...); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func normTempPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "__norm" + ext
}

// DecodePCM decodes any input file into mono 16-bit samples at sampleRate.
func (t *Transcoder) DecodePCM(ctx context.Context, path string, sampleRate int) ([]int16, error) {
	raw, err := os.CreateTemp("", "pcm-*.raw")
	if err != nil {
		return nil, err
	}
	raw.Close()
	defer os.Remove(raw.Name())

	err = t.exec(ctx, "-i", path,
		"-f", "s16le", "-acodec", "pcm_s16le", "-ac", "1", "-ar", fmt.Sprintf("%d", sampleRate),
		raw.Name())
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(raw.Name())
	if err != nil {
		return nil, err
	}
	return audio.SamplesFromPCM16LE(data), nil
}

// DecodePCMBytes decodes an in-memory clip, identified by its container
// format, into mono 16-bit samples at sampleRate.
func (t *Transcoder) DecodePCMBytes(ctx context.Context, data []byte, format string, sampleRate int) ([]int16, error) {
	in, err := writeTemp(data, "clip-*."+strings.TrimPrefix(format, "."))
	if err != nil {
		return nil, err
	}
	defer os.Remove(in)
	return t.DecodePCM(ctx, in, sampleRate)
}

// EncodePCMBytes encodes mono 16-bit samples into the given container format.
func (t *Transcoder) EncodePCMBytes(ctx context.Context, samples []int16, sampleRate int, format string) ([]byte, error) {
	in, err := writeTemp(audio.PCM16LEFromSamples(samples), "pcm-*.raw")
	if err != nil {
		return nil, err
	}
	defer os.Remove(in)

	out, err := os.CreateTemp("", "enc-*."+strings.TrimPrefix(format, "."))
	if err != nil {
		return nil, err
	}
	out.Close()
	defer os.Remove(out.Name())

	args := append(
		[]string{"-f", "s16le", "-ar", fmt.Sprintf("%d", sampleRate), "-ac", "1", "-i", in},
		codecArgs(format)...,
	)
	if err := t.exec(ctx, append(args, out.Name())...); err != nil {
		return nil, err
	}
	return os.ReadFile(out.Name())
}

func writeTemp(data []byte, pattern string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
