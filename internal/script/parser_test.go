package script

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseSplitsScenesOnHeaders(t *testing.T) {
	input := "Opening\nBreathe in deeply.\nHold for a moment.\nClosing\nLet it go now."

	scenes, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("Parse() scenes = %d, want 2", len(scenes))
	}
	if scenes[0].Name != "Opening" {
		t.Fatalf("scenes[0].Name = %q, want %q", scenes[0].Name, "Opening")
	}
	if got := scenes[0].RawText(); got != "Breathe in deeply. Hold for a moment." {
		t.Fatalf("scenes[0].RawText() = %q", got)
	}
	if scenes[1].Name != "Closing" {
		t.Fatalf("scenes[1].Name = %q, want %q", scenes[1].Name, "Closing")
	}
}

func TestParseAssignsSyntheticHeader(t *testing.T) {
	scenes, err := Parse("Relax your shoulders.\nSoften your jaw.")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("Parse() scenes = %d, want 1", len(scenes))
	}
	if scenes[0].Name != "Scene 1" {
		t.Fatalf("scenes[0].Name = %q, want %q", scenes[0].Name, "Scene 1")
	}
}

func TestParseLineWithPauseAnnotationIsNotAHeader(t *testing.T) {
	scenes, err := Parse("Intro\nRest here (3 seconds)\nAnd continue.")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("Parse() scenes = %d, want 1", len(scenes))
	}
	if len(scenes[0].Lines) != 2 {
		t.Fatalf("scenes[0].Lines = %d, want 2", len(scenes[0].Lines))
	}
}

func TestParseEmptyScriptFails(t *testing.T) {
	if _, err := Parse("   \n\n  "); !errors.Is(err, ErrNoScenes) {
		t.Fatalf("Parse(blank) error = %v, want ErrNoScenes", err)
	}
}

func TestParseHeaderWithoutBodyIsDropped(t *testing.T) {
	if _, err := Parse("Just A Header"); !errors.Is(err, ErrNoScenes) {
		t.Fatalf("Parse(header only) error = %v, want ErrNoScenes", err)
	}
}

func TestParseIsIdempotent(t *testing.T) {
	input := "Scene One\nFirst line.\nSecond line.\nScene Two\nThird line."
	first, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	second, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() second error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Parse() not idempotent: %#v vs %#v", first, second)
	}
}
