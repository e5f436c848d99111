package longform

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AbhiramVSA/Luma/internal/agents"
	"github.com/AbhiramVSA/Luma/internal/assemble"
	"github.com/AbhiramVSA/Luma/internal/audio"
	"github.com/AbhiramVSA/Luma/internal/ffmpeg"
	"github.com/AbhiramVSA/Luma/internal/synth"
)

// fakeTranscoder returns a transcoder whose runner writes fixture output
// instead of spawning ffmpeg: raw PCM decodes yield a steady tone so nothing
// reads as trailing silence, every other invocation writes stub bytes.
func fakeTranscoder() *ffmpeg.Transcoder {
	tone := make([]int16, 8000)
	for i := range tone {
		tone[i] = 8000
	}
	pcm := audio.PCM16LEFromSamples(tone)

	runner := func(_ context.Context, _ string, args []string) (string, error) {
		out := args[len(args)-1]
		if strings.HasSuffix(out, ".raw") {
			return "", os.WriteFile(out, pcm, 0o644)
		}
		return "", os.WriteFile(out, []byte("OUT"), 0o644)
	}
	return ffmpeg.New(ffmpeg.WithRunner(runner))
}

func fakeSynthServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Write([]byte("FAKEAUDIO"))
	}))
}

func testPipeline(t *testing.T, outputDir string, calls *int) *Pipeline {
	t.Helper()
	srv := fakeSynthServer(t, calls)
	t.Cleanup(srv.Close)

	ff := fakeTranscoder()
	return New(Deps{
		Synth:             synth.NewClient("test-key", synth.WithBaseURL(srv.URL)),
		Agents:            agents.New(agents.Config{}),
		Assembler:         assemble.New(ff),
		Transcoder:        ff,
		OutputDir:         outputDir,
		DefaultVoiceID:    "voice-1",
		ClauseParallelism: 2,
	})
}

func TestSynthesizeLongformSceneMode(t *testing.T) {
	outputDir := t.TempDir()
	calls := 0
	p := testPipeline(t, outputDir, &calls)

	result, err := p.SynthesizeLongform(context.Background(), "", LongFormAudioRequest{
		Scenes: []SceneDefinition{
			{SceneID: "intro", Title: "Intro", Text: "Hello there, friend. Rest now.", PauseAfterSeconds: 1},
		},
		FilenamePrefix: "test run",
	})
	if err != nil {
		t.Fatalf("SynthesizeLongform() error = %v", err)
	}

	if result.Status != "success" {
		t.Fatalf("Status = %q, want success", result.Status)
	}
	if result.InputMode != "scene_collection" {
		t.Fatalf("InputMode = %q", result.InputMode)
	}
	if result.VoiceID != "voice-1" {
		t.Fatalf("VoiceID = %q, want voice-1", result.VoiceID)
	}
	if len(result.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(result.Segments))
	}

	seg := result.Segments[0]
	if !strings.HasPrefix(seg.FileName, "test_run_intro__") {
		t.Fatalf("FileName = %q, want test_run_intro__ prefix", seg.FileName)
	}
	if seg.SceneTitle != "Intro" {
		t.Fatalf("SceneTitle = %q, want Intro", seg.SceneTitle)
	}
	if !strings.HasPrefix(seg.AudioFile, "/generated_audio/") {
		t.Fatalf("AudioFile = %q", seg.AudioFile)
	}
	if _, err := os.Stat(filepath.Join(outputDir, seg.FileName)); err != nil {
		t.Fatalf("segment file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputDir, result.Combined.FileName)); err != nil {
		t.Fatalf("combined file missing: %v", err)
	}

	// Three clauses: "Hello there," / "friend." / "Rest now."
	if calls != 3 {
		t.Fatalf("synthesis calls = %d, want 3", calls)
	}

	manifestName := strings.TrimPrefix(result.ManifestFile, "/generated_audio/")
	body, err := os.ReadFile(filepath.Join(outputDir, manifestName))
	if err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	var manifest struct {
		VoiceID       string           `json:"voice_id"`
		TotalSegments int              `json:"total_segments"`
		InputMode     string           `json:"input_mode"`
		Segments      []map[string]any `json:"segments"`
	}
	if err := json.Unmarshal(body, &manifest); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if manifest.VoiceID != "voice-1" || manifest.TotalSegments != 1 || manifest.InputMode != "scene_collection" {
		t.Fatalf("manifest = %+v", manifest)
	}
	if manifest.Segments[0]["scene_title"] != "Intro" {
		t.Fatalf("manifest segment = %v", manifest.Segments[0])
	}
}

func TestSynthesizeLongformVoiceOverrideWins(t *testing.T) {
	calls := 0
	p := testPipeline(t, t.TempDir(), &calls)

	result, err := p.SynthesizeLongform(context.Background(), "", LongFormAudioRequest{
		Scenes:  []SceneDefinition{{Text: "A quiet morning begins."}},
		VoiceID: "override-voice",
	})
	if err != nil {
		t.Fatalf("SynthesizeLongform() error = %v", err)
	}
	if result.VoiceID != "override-voice" {
		t.Fatalf("VoiceID = %q, want override-voice", result.VoiceID)
	}
}

func TestSynthesizeLongformRequiresProvider(t *testing.T) {
	ff := fakeTranscoder()
	p := New(Deps{
		Synth:      synth.NewClient(""),
		Agents:     agents.New(agents.Config{}),
		Assembler:  assemble.New(ff),
		Transcoder: ff,
		OutputDir:  t.TempDir(),
	})

	_, err := p.SynthesizeLongform(context.Background(), "", LongFormAudioRequest{
		Scenes: []SceneDefinition{{Text: "Hello."}},
	})
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if se.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", se.Code)
	}
}

func TestProcessScriptSceneFlow(t *testing.T) {
	calls := 0
	p := testPipeline(t, t.TempDir(), &calls)

	script := "Morning Calm\nBreathe in. Breathe out (2 seconds).\n"
	result, finalAudio, err := p.ProcessScript(context.Background(), "", script)
	if err != nil {
		t.Fatalf("ProcessScript() error = %v", err)
	}

	if len(result.Scenes) != 1 {
		t.Fatalf("scenes = %d, want 1", len(result.Scenes))
	}
	scene := result.Scenes[0]
	if scene.SceneName != "Morning Calm" {
		t.Fatalf("SceneName = %q", scene.SceneName)
	}
	if len(scene.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(scene.Segments))
	}
	if scene.Segments[0].PauseAfterSeconds != 1.5 {
		t.Fatalf("first pause = %v, want 1.5", scene.Segments[0].PauseAfterSeconds)
	}
	if scene.Segments[1].PauseAfterSeconds != 2.0 {
		t.Fatalf("second pause = %v, want 2.0", scene.Segments[1].PauseAfterSeconds)
	}
	if !strings.HasPrefix(scene.ProcessedAudioPath, "data:audio/mpeg;base64,") {
		t.Fatalf("ProcessedAudioPath = %q", scene.ProcessedAudioPath)
	}
	if !strings.HasPrefix(result.FinalAudioPath, "data:audio/mpeg;base64,") {
		t.Fatalf("FinalAudioPath = %q", result.FinalAudioPath)
	}
	if len(finalAudio) == 0 {
		t.Fatalf("final audio is empty")
	}
	if calls != 1 {
		t.Fatalf("synthesis calls = %d, want 1 (whole scene render)", calls)
	}
}

func TestProcessScriptRejectsEmptyScript(t *testing.T) {
	calls := 0
	p := testPipeline(t, t.TempDir(), &calls)

	_, _, err := p.ProcessScript(context.Background(), "", "\n\n")
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if se.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", se.Code)
	}
}

func TestProcessScriptRejectsSceneWithoutSentences(t *testing.T) {
	calls := 0
	p := testPipeline(t, t.TempDir(), &calls)

	// The first scene's body is a pause annotation with no narratable text;
	// the whole request must fail rather than drop the scene.
	script := "Intro\n(3 seconds)\nOutro\nReal narration here.\n"
	_, _, err := p.ProcessScript(context.Background(), "", script)
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if se.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", se.Code)
	}
	if !strings.Contains(se.Message, "Intro") {
		t.Fatalf("message = %q, want scene name", se.Message)
	}
	if calls != 0 {
		t.Fatalf("synthesis calls = %d, want 0 (abort before rendering)", calls)
	}
}

func TestWriteMultipartFraming(t *testing.T) {
	var buf bytes.Buffer
	meta := &ScenesResult{FinalAudioPath: "data:audio/mpeg;base64,AA=="}
	if err := WriteMultipart(&buf, meta, []byte("AUDIOBYTES")); err != nil {
		t.Fatalf("WriteMultipart() error = %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "--"+MultipartBoundary+"\r\n") {
		t.Fatalf("missing opening boundary: %q", out[:40])
	}
	if !strings.HasSuffix(out, "--"+MultipartBoundary+"--\r\n") {
		t.Fatalf("missing closing boundary")
	}
	if !strings.Contains(out, "Content-Type: application/json\r\n\r\n") {
		t.Fatalf("missing JSON part header")
	}
	if !strings.Contains(out, "Content-Disposition: attachment; filename=longform.mp3\r\n\r\nAUDIOBYTES\r\n") {
		t.Fatalf("missing audio part")
	}
	if MultipartMediaType() != "multipart/mixed; boundary=longform-scenes-boundary" {
		t.Fatalf("MultipartMediaType() = %q", MultipartMediaType())
	}
}
