package plan

import "testing"

func TestNormalizeRepairsTotalsAndFormat(t *testing.T) {
	p := LongFormAudioPlan{
		VoiceID:       " voice-1 ",
		TotalSegments: 99,
		Segments: []Segment{
			{SegmentID: "a", Text: "Hello."},
			{SegmentID: "b", Text: "World."},
		},
		StitchingInstructions: StitchingInstructions{CrossfadeMS: -10},
	}
	p.Normalize()

	if p.VoiceID != "voice-1" {
		t.Fatalf("VoiceID = %q, want trimmed voice-1", p.VoiceID)
	}
	if p.TotalSegments != 2 {
		t.Fatalf("TotalSegments = %d, want 2", p.TotalSegments)
	}
	if p.StitchingInstructions.CrossfadeMS != 0 {
		t.Fatalf("CrossfadeMS = %d, want 0", p.StitchingInstructions.CrossfadeMS)
	}
	if p.StitchingInstructions.OutputFormat != "mp3" {
		t.Fatalf("OutputFormat = %q, want mp3", p.StitchingInstructions.OutputFormat)
	}
}

func TestNormalizeDisablesCrossfadeForExplicitPauses(t *testing.T) {
	p := LongFormAudioPlan{
		VoiceID: "voice-1",
		Segments: []Segment{
			{SegmentID: "a", Text: "Hello.", PauseAfterSeconds: 1.5},
		},
		StitchingInstructions: StitchingInstructions{CrossfadeMS: 250, OutputFormat: ".WAV"},
	}
	p.Normalize()

	if p.StitchingInstructions.CrossfadeMS != 0 {
		t.Fatalf("CrossfadeMS = %d, want 0 when pauses present", p.StitchingInstructions.CrossfadeMS)
	}
	if p.StitchingInstructions.OutputFormat != "wav" {
		t.Fatalf("OutputFormat = %q, want wav", p.StitchingInstructions.OutputFormat)
	}
}

func TestValidate(t *testing.T) {
	good := LongFormAudioPlan{
		VoiceID:  "voice-1",
		Segments: []Segment{{SegmentID: "a", Text: "Hello."}},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	noVoice := LongFormAudioPlan{Segments: []Segment{{Text: "Hello."}}}
	if err := noVoice.Validate(); err == nil {
		t.Fatalf("Validate() accepted missing voice id")
	}

	empty := LongFormAudioPlan{VoiceID: "voice-1"}
	if err := empty.Validate(); err == nil {
		t.Fatalf("Validate() accepted empty plan")
	}

	blankText := LongFormAudioPlan{VoiceID: "voice-1", Segments: []Segment{{SegmentID: "a", Text: "   "}}}
	if err := blankText.Validate(); err == nil {
		t.Fatalf("Validate() accepted blank segment text")
	}

	negative := LongFormAudioPlan{VoiceID: "voice-1", Segments: []Segment{{SegmentID: "a", Text: "Hi.", PauseAfterSeconds: -1}}}
	if err := negative.Validate(); err == nil {
		t.Fatalf("Validate() accepted negative pause")
	}
}
