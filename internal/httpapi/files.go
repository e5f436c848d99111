package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".aac":  true,
	".m4a":  true,
	".ogg":  true,
}

const manifestGlob = "longform_manifest_*.json"

type audioFileInfo struct {
	FileName     string `json:"file_name"`
	RelativePath string `json:"relative_path"`
	SizeBytes    int64  `json:"size_bytes"`
	SizeReadable string `json:"size_readable"`
	ModifiedAt   string `json:"modified_at"`
	DownloadURL  string `json:"download_url"`
}

// handleListAudioFiles enumerates generated audio outputs, newest first,
// together with the long-form manifests present on disk.
func (s *Server) handleListAudioFiles(w http.ResponseWriter, _ *http.Request) {
	files, err := s.generatedAudioFiles()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "listing_failed", err.Error())
		return
	}

	dirName := filepath.Base(s.cfg.OutputDir)
	infos := make([]audioFileInfo, 0, len(files))
	for _, path := range files {
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		name := filepath.Base(path)
		infos = append(infos, audioFileInfo{
			FileName:     name,
			RelativePath: dirName + "/" + name,
			SizeBytes:    stat.Size(),
			SizeReadable: formatFileSize(stat.Size()),
			ModifiedAt:   stat.ModTime().UTC().Format(time.RFC3339),
			DownloadURL:  "/generated_audio/" + name,
		})
	}

	manifests := s.manifestNames()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":                   len(infos),
		"files":                   infos,
		"longform_manifest_count": len(manifests),
		"longform_manifests":      manifests,
	})
}

// handleClearAudioFiles deletes generated audio outputs and manifests.
func (s *Server) handleClearAudioFiles(w http.ResponseWriter, _ *http.Request) {
	files, err := s.generatedAudioFiles()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cleanup_failed", err.Error())
		return
	}

	var deleted []string
	var removedMetadata []string
	var errs []string

	for _, path := range files {
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Sprintf("failed to delete %s: %v", filepath.Base(path), err))
			continue
		}
		deleted = append(deleted, filepath.Base(path))
	}
	for _, name := range s.manifestNames() {
		if err := os.Remove(filepath.Join(s.cfg.OutputDir, name)); err != nil {
			errs = append(errs, fmt.Sprintf("failed to delete %s: %v", name, err))
			continue
		}
		removedMetadata = append(removedMetadata, name)
	}

	if len(errs) > 0 {
		respondError(w, http.StatusInternalServerError, "cleanup_failed", strings.Join(errs, "; "))
		return
	}
	if deleted == nil {
		deleted = []string{}
	}
	if removedMetadata == nil {
		removedMetadata = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"deleted":          len(deleted),
		"deleted_files":    deleted,
		"removed_metadata": removedMetadata,
	})
}

// generatedAudioFiles returns the audio outputs in the output directory,
// newest first. A missing directory is an empty listing, not an error.
func (s *Server) generatedAudioFiles() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type fileAge struct {
		path    string
		modTime time.Time
	}
	var files []fileAge
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileAge{
			path:    filepath.Join(s.cfg.OutputDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.path)
	}
	return paths, nil
}

func (s *Server) manifestNames() []string {
	matches, err := filepath.Glob(filepath.Join(s.cfg.OutputDir, manifestGlob))
	if err != nil {
		return []string{}
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names
}

func formatFileSize(numBytes int64) string {
	if numBytes < 1024 {
		return fmt.Sprintf("%d B", numBytes)
	}
	size := float64(numBytes)
	for _, unit := range []string{"KB", "MB", "GB", "TB"} {
		size /= 1024.0
		if size < 1024.0 || unit == "TB" {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
	}
	return fmt.Sprintf("%d B", numBytes)
}
