package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AbhiramVSA/Luma/internal/segment"
)

// ErrNoScenes indicates the script contained no usable scene content.
var ErrNoScenes = errors.New("unable to identify any scenes in the script")

// SceneBlock is one named scene together with its raw narration lines, in
// script order. Blocks are immutable once parsed.
type SceneBlock struct {
	Name  string
	Lines []string
}

// RawText joins the scene's trimmed lines with single spaces.
func (b SceneBlock) RawText() string {
	parts := make([]string, 0, len(b.Lines))
	for _, line := range b.Lines {
		if t := strings.TrimSpace(line); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// isSceneHeader treats a non-empty line as a header when it carries no pause
// annotation and does not end in a sentence terminator. A long declarative
// line without terminal punctuation is misclassified as a header; that is a
// known limitation of the heuristic, not something callers should correct for.
func isSceneHeader(line string) bool {
	if segment.HasPauseAnnotation(line) {
		return false
	}
	return !segment.EndsWithTerminator(line)
}

// Parse splits a raw multi-line script into ordered scene blocks. Content
// appearing before the first header is grouped under a synthetic
// "Scene {n}" header. Parsing the same script twice yields identical blocks.
func Parse(script string) ([]SceneBlock, error) {
	var scenes []SceneBlock
	var currentName string
	var currentLines []string
	fallbackIndex := 1

	flush := func() {
		if currentName != "" && len(currentLines) > 0 {
			scenes = append(scenes, SceneBlock{Name: currentName, Lines: currentLines})
		}
	}

	for _, rawLine := range strings.Split(script, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		if isSceneHeader(line) {
			flush()
			currentName = line
			currentLines = nil
			continue
		}

		if currentName == "" {
			currentName = fmt.Sprintf("Scene %d", fallbackIndex)
			fallbackIndex++
		}
		currentLines = append(currentLines, line)
	}
	flush()

	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}
	return scenes, nil
}
