// Package scope expands and filters a task's scope entries (files,
// directories, and glob patterns) down to the concrete file list an
// analyzer profile should run against.
package scope

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Profile selects which extension/filename allow-list governs filtering.
type Profile string

const (
	ProfileSecurity          Profile = "security"
	ProfileQuality           Profile = "quality"
	ProfileQualitySyntaxExt  Profile = "quality-syntax-extended"
	ProfileQualityYAMLStrict Profile = "quality-yaml-strict"
)

// skipDirs are never descended into during recursive expansion, matching
// the standalone walker's non-source directory exclusions.
var skipDirs = map[string]struct{}{
	".git":          {},
	"node_modules":  {},
	"__pycache__":   {},
	".pytest_cache": {},
	"dist":          {},
	"build":         {},
}

var securityExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {}, ".java": {},
	".go": {}, ".rs": {}, ".c": {}, ".cpp": {}, ".h": {}, ".hpp": {},
	".php": {}, ".rb": {}, ".swift": {}, ".kt": {},
}

var securityFilenames = map[string]struct{}{
	"package.json": {}, "package-lock.json": {}, "yarn.lock": {},
	"requirements.txt": {}, "poetry.lock": {}, "pipfile.lock": {},
	"dockerfile": {}, "docker-compose.yml": {}, "docker-compose.yaml": {},
	".env": {}, ".env.example": {}, "config": {}, "secrets": {},
	"webpack.config.js": {}, "tsconfig.json": {}, "babel.config.js": {},
}

var qualityExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".jsx": {}, ".tsx": {}, ".mjs": {}, ".cjs": {},
}

var qualityYAMLExtensions = map[string]struct{}{
	".yml": {}, ".yaml": {},
}

// qualitySyntaxExtendedExtensions is qualityExtensions unioned with
// qualityYAMLExtensions: syntax_extended's scope is the standard quality
// file set plus YAML files.
var qualitySyntaxExtendedExtensions = unionExtensions(qualityExtensions, qualityYAMLExtensions)

func unionExtensions(sets ...map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, set := range sets {
		for ext := range set {
			out[ext] = struct{}{}
		}
	}
	return out
}

// DefaultMaxFileSize is the per-file size ceiling (bytes) above which a
// file is excluded from analysis regardless of extension match.
const DefaultMaxFileSize = 5 * 1024 * 1024

// Filter expands scope entries under repoRoot into a deduplicated,
// sorted-by-discovery list of file paths matching profile (absolute when
// repoRoot or the entry is absolute, otherwise relative to the working
// directory).
// Entries may be plain paths (file or directory, recursively expanded) or
// glob patterns (matched against repoRoot-relative paths).
func Filter(repoRoot string, entries []string, profile Profile, maxFileSize int64) []string {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		if !relevant(path, profile) {
			return
		}
		if info, err := os.Stat(path); err != nil || info.Size() > maxFileSize {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, entry := range entries {
		abs := entry
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(repoRoot, entry)
		}

		if info, err := os.Stat(abs); err == nil {
			if info.IsDir() {
				walkDir(abs, add)
			} else {
				add(abs)
			}
			continue
		}

		// Not a literal path: treat the original entry as a glob pattern
		// relative to repoRoot.
		expandGlob(repoRoot, entry, add)
	}

	return out
}

func walkDir(root string, add func(string)) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		add(path)
		return nil
	})
}

func expandGlob(repoRoot, pattern string, add func(string)) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return
	}
	_ = filepath.WalkDir(repoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && path != repoRoot {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(repoRoot, path)
		if err != nil {
			return nil
		}
		if g.Match(rel) {
			add(path)
		}
		return nil
	})
}

func relevant(path string, profile Profile) bool {
	ext := strings.ToLower(filepath.Ext(path))
	name := strings.ToLower(filepath.Base(path))

	switch profile {
	case ProfileSecurity:
		if _, ok := securityExtensions[ext]; ok {
			return true
		}
		_, ok := securityFilenames[name]
		return ok
	case ProfileQualitySyntaxExt:
		_, ok := qualitySyntaxExtendedExtensions[ext]
		return ok
	case ProfileQualityYAMLStrict:
		_, ok := qualityYAMLExtensions[ext]
		return ok
	case ProfileQuality:
		fallthrough
	default:
		_, ok := qualityExtensions[ext]
		return ok
	}
}
