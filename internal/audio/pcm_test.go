package audio

import (
	"math"
	"testing"
)

func TestSamplesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	got := SamplesFromPCM16LE(PCM16LEFromSamples(in))
	if len(got) != len(in) {
		t.Fatalf("round trip length = %d, want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], in[i])
		}
	}
}

func TestSamplesFromPCM16LEDropsOddByte(t *testing.T) {
	if got := SamplesFromPCM16LE([]byte{0x01, 0x00, 0xff}); len(got) != 1 {
		t.Fatalf("samples = %d, want 1", len(got))
	}
}

func TestDBFSSilenceIsNegativeInfinity(t *testing.T) {
	if got := DBFS(nil); !math.IsInf(got, -1) {
		t.Fatalf("DBFS(nil) = %v, want -Inf", got)
	}
	if got := DBFS(make([]int16, 100)); !math.IsInf(got, -1) {
		t.Fatalf("DBFS(zeros) = %v, want -Inf", got)
	}
}

func TestDBFSFullScale(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = 32767
	}
	got := DBFS(samples)
	if math.Abs(got) > 0.001 {
		t.Fatalf("DBFS(full scale) = %v, want ~0", got)
	}
}

func TestDBFSHalfScaleIsQuieter(t *testing.T) {
	loud := make([]int16, 100)
	quiet := make([]int16, 100)
	for i := range loud {
		loud[i] = 20000
		quiet[i] = 10000
	}
	diff := DBFS(loud) - DBFS(quiet)
	if math.Abs(diff-6.02) > 0.1 {
		t.Fatalf("half scale difference = %v dB, want ~6.02", diff)
	}
}

func TestDurationSeconds(t *testing.T) {
	if got := DurationSeconds(make([]int16, 16000), 16000); got != 1.0 {
		t.Fatalf("DurationSeconds = %v, want 1.0", got)
	}
	if got := DurationSeconds(make([]int16, 16000), 0); got != 0 {
		t.Fatalf("DurationSeconds(rate 0) = %v, want 0", got)
	}
}
