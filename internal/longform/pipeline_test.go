package longform

import (
	"net/http"
	"testing"
)

func TestSanitizeComponent(t *testing.T) {
	cases := []struct {
		in, fallback, want string
	}{
		{"Scene 1: Dawn", "segment", "Scene_1__Dawn"},
		{"  ", "segment", "segment"},
		{"---", "segment", "segment"},
		{"calm-waves_02", "segment", "calm-waves_02"},
	}
	for _, tc := range cases {
		if got := sanitizeComponent(tc.in, tc.fallback); got != tc.want {
			t.Fatalf("sanitizeComponent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeSceneText(t *testing.T) {
	in := "Breathe in.\nMETA: fade music here\nBreathe out.\n  meta note\n"
	got := sanitizeSceneText(in)
	want := "Breathe in.\nBreathe out."
	if got != want {
		t.Fatalf("sanitizeSceneText() = %q, want %q", got, want)
	}

	if got := sanitizeSceneText("META: only directives"); got != "" {
		t.Fatalf("sanitizeSceneText(meta only) = %q, want empty", got)
	}
}

func TestNormalizeSceneDefinitions(t *testing.T) {
	enforceOff := false
	defs, titles, err := normalizeSceneDefinitions([]SceneDefinition{
		{Text: "First scene narration."},
		{SceneID: "ocean", Title: "Ocean", Text: "Waves roll in.", PauseAfterSeconds: 2, EnforceCommaPause: &enforceOff},
	})
	if err != nil {
		t.Fatalf("normalizeSceneDefinitions() error = %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("definitions len = %d, want 2", len(defs))
	}
	if defs[0].SceneID != "scene_1" {
		t.Fatalf("synthetic scene id = %q, want scene_1", defs[0].SceneID)
	}
	if !defs[0].EnforceCommaPause {
		t.Fatalf("enforce_comma_pause should default to true")
	}
	if defs[1].EnforceCommaPause {
		t.Fatalf("explicit enforce_comma_pause=false was not honored")
	}
	if titles["ocean"] != "Ocean" {
		t.Fatalf("titles = %v, want ocean -> Ocean", titles)
	}
}

func TestNormalizeSceneDefinitionsRejectsMetaOnly(t *testing.T) {
	_, _, err := normalizeSceneDefinitions([]SceneDefinition{
		{SceneID: "intro", Text: "META: production note only"},
	})
	se, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("error type = %T, want *StatusError", err)
	}
	if se.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", se.Code)
	}
}

func TestLocalPlanFromDefinitions(t *testing.T) {
	defs := []normalizedDefinition{
		{SceneID: "a", Text: "Hello there, friend.", PauseAfterSeconds: 1, EnforceCommaPause: true},
		{SceneID: "b", Text: "Rest now."},
	}

	built := localPlanFromDefinitions(defs, "", "fallback-voice")
	if built.VoiceID != "fallback-voice" {
		t.Fatalf("VoiceID = %q, want fallback-voice", built.VoiceID)
	}
	if built.TotalSegments != 2 {
		t.Fatalf("TotalSegments = %d, want 2", built.TotalSegments)
	}
	if built.Segments[0].CharacterCount != len([]rune(defs[0].Text)) {
		t.Fatalf("CharacterCount = %d", built.Segments[0].CharacterCount)
	}
	// An explicit segment pause must force crossfade off.
	if built.StitchingInstructions.CrossfadeMS != 0 {
		t.Fatalf("CrossfadeMS = %d, want 0", built.StitchingInstructions.CrossfadeMS)
	}

	overridden := localPlanFromDefinitions(defs, "chosen-voice", "fallback-voice")
	if overridden.VoiceID != "chosen-voice" {
		t.Fatalf("VoiceID = %q, want chosen-voice", overridden.VoiceID)
	}
}

func TestStatusErrorUnwrap(t *testing.T) {
	inner := statusErrorf(http.StatusBadGateway, "upstream broke")
	wrapped := wrapStatus(http.StatusInternalServerError, "pipeline failed", inner)
	if wrapped.Unwrap() != inner {
		t.Fatalf("Unwrap() = %v, want inner error", wrapped.Unwrap())
	}
	if wrapped.Error() != "pipeline failed: upstream broke" {
		t.Fatalf("Error() = %q", wrapped.Error())
	}
}
