package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func hasArgPair(args []string, a, b string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == a && args[i+1] == b {
			return true
		}
	}
	return false
}

func TestConcatSingleInputCopiesStream(t *testing.T) {
	var got []string
	tr := New(WithRunner(func(ctx context.Context, path string, args []string) (string, error) {
		got = args
		return "", nil
	}))

	if err := tr.Concat(context.Background(), []string{"a.mp3"}, "out.mp3", 0); err != nil {
		t.Fatalf("Concat() error = %v", err)
	}
	if !hasArgPair(got, "-codec", "copy") {
		t.Fatalf("single-input concat did not copy streams: %v", got)
	}
}

func TestConcatWritesDemuxerList(t *testing.T) {
	var got []string
	var listContent string
	tr := New(WithRunner(func(ctx context.Context, path string, args []string) (string, error) {
		got = args
		for i, a := range args {
			if a == "-i" && i+1 < len(args) {
				data, err := os.ReadFile(args[i+1])
				if err != nil {
					t.Fatalf("reading concat list: %v", err)
				}
				listContent = string(data)
			}
		}
		return "", nil
	}))

	if err := tr.Concat(context.Background(), []string{"a.mp3", "b.mp3", "c.mp3"}, "out.mp3", 0); err != nil {
		t.Fatalf("Concat() error = %v", err)
	}
	if !hasArgPair(got, "-f", "concat") {
		t.Fatalf("multi-input concat did not use the concat demuxer: %v", got)
	}
	if strings.Count(listContent, "file '") != 3 {
		t.Fatalf("concat list entries = %d, want 3:\n%s", strings.Count(listContent, "file '"), listContent)
	}
}

func TestConcatCrossfadeFoldsPairwise(t *testing.T) {
	var calls [][]string
	tr := New(WithRunner(func(ctx context.Context, path string, args []string) (string, error) {
		calls = append(calls, args)
		return "", nil
	}))

	if err := tr.Concat(context.Background(), []string{"a.mp3", "b.mp3", "c.mp3"}, "out.mp3", 0.25); err != nil {
		t.Fatalf("Concat() error = %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("crossfade invocations = %d, want 2", len(calls))
	}
	for _, args := range calls {
		if !hasArgPair(args, "-filter_complex", "acrossfade=d=0.25:curve1=tri:curve2=tri") {
			t.Fatalf("missing acrossfade filter: %v", args)
		}
	}
	last := calls[1]
	if last[len(last)-1] != "out.mp3" {
		t.Fatalf("final fold target = %q, want out.mp3", last[len(last)-1])
	}
}

func TestGenerateSilence(t *testing.T) {
	var got []string
	tr := New(WithRunner(func(ctx context.Context, path string, args []string) (string, error) {
		got = args
		return "", nil
	}))

	if err := tr.GenerateSilence(context.Background(), 2.5, "gap.mp3"); err != nil {
		t.Fatalf("GenerateSilence() error = %v", err)
	}
	if !hasArgPair(got, "-i", "anullsrc=r=44100:cl=stereo") {
		t.Fatalf("silence source missing: %v", got)
	}
	if !hasArgPair(got, "-t", "2.5") {
		t.Fatalf("silence duration missing: %v", got)
	}

	if err := tr.GenerateSilence(context.Background(), 0, "gap.mp3"); err == nil {
		t.Fatalf("GenerateSilence(0) did not fail")
	}
}

func TestNormalizeWritesThroughTempFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "scene.mp3")
	if err := os.WriteFile(target, []byte("original"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	tr := New(WithRunner(func(ctx context.Context, path string, args []string) (string, error) {
		out := args[len(args)-1]
		if !strings.Contains(out, "__norm") {
			t.Fatalf("normalize target %q is not a temp sibling", out)
		}
		if !hasArgPair(args, "-af", "loudnorm") {
			t.Fatalf("loudnorm filter missing: %v", args)
		}
		if err := os.WriteFile(out, []byte("normalized"), 0o644); err != nil {
			t.Fatalf("write temp: %v", err)
		}
		return "", nil
	}))

	if err := tr.Normalize(context.Background(), target); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(data) != "normalized" {
		t.Fatalf("target content = %q, want %q", data, "normalized")
	}
	if _, err := os.Stat(normTempPath(target)); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestDecodePCMBytesReturnsSamples(t *testing.T) {
	tr := New(WithRunner(func(ctx context.Context, path string, args []string) (string, error) {
		out := args[len(args)-1]
		// 3 samples: 1, -1, 256 as little-endian int16.
		return "", os.WriteFile(out, []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}, 0o644)
	}))

	samples, err := tr.DecodePCMBytes(context.Background(), []byte("fake-mp3"), "mp3", 16000)
	if err != nil {
		t.Fatalf("DecodePCMBytes() error = %v", err)
	}
	want := []int16{1, -1, 256}
	if len(samples) != len(want) {
		t.Fatalf("samples = %d, want %d", len(samples), len(want))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Fatalf("samples[%d] = %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestEncodePCMBytesRoundTripsRunnerOutput(t *testing.T) {
	var sawRaw bool
	tr := New(WithRunner(func(ctx context.Context, path string, args []string) (string, error) {
		if hasArgPair(args, "-f", "s16le") {
			sawRaw = true
		}
		out := args[len(args)-1]
		return "", os.WriteFile(out, []byte("encoded-mp3"), 0o644)
	}))

	data, err := tr.EncodePCMBytes(context.Background(), []int16{1, 2, 3}, 16000, "mp3")
	if err != nil {
		t.Fatalf("EncodePCMBytes() error = %v", err)
	}
	if !sawRaw {
		t.Fatalf("raw input format flag missing")
	}
	if string(data) != "encoded-mp3" {
		t.Fatalf("encoded = %q, want %q", data, "encoded-mp3")
	}
}

func TestCodecArgs(t *testing.T) {
	cases := []struct {
		format string
		want   string
	}{
		{"mp3", "libmp3lame"},
		{"wav", "pcm_s16le"},
		{"flac", "flac"},
		{"aac", "aac"},
		{"m4a", "aac"},
		{"unknown", "libmp3lame"},
	}
	for _, tc := range cases {
		args := codecArgs(tc.format)
		if args[1] != tc.want {
			t.Fatalf("codecArgs(%q)[1] = %q, want %q", tc.format, args[1], tc.want)
		}
	}
}
