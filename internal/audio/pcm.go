package audio

import (
	"encoding/binary"
	"math"
)

// SamplesFromPCM16LE converts raw little-endian 16-bit PCM bytes into samples.
// A trailing odd byte is dropped.
func SamplesFromPCM16LE(pcm []byte) []int16 {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}

// PCM16LEFromSamples converts samples back into raw little-endian bytes.
func PCM16LEFromSamples(samples []int16) []byte {
	pcm := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
	}
	return pcm
}

// DBFS computes the RMS level of samples relative to full scale. Empty or
// all-zero input reports negative infinity.
func DBFS(samples []int16) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/32768.0)
}

// DurationSeconds reports the play time of a mono sample buffer.
func DurationSeconds(samples []int16, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(samples)) / float64(sampleRate)
}
