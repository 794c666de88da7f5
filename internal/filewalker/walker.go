package filewalker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// Walker finds input files by extension.
type Walker struct {
	exts map[string]bool
}

// NewWalker accepts files whose extension is one of exts. Matching ignores
// case and the leading dot is optional. No extensions accepts every file.
func NewWalker(exts ...string) *Walker {
	w := &Walker{exts: make(map[string]bool, len(exts))}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		w.exts[e] = true
	}
	return w
}

// FileEntry is a discovered input file.
type FileEntry struct {
	Path string
	Ext  string
}

func (w *Walker) accepts(ext string) bool {
	return len(w.exts) == 0 || w.exts[ext]
}

// Walk discovers supported files under each root. A root naming a file is
// taken as is, whatever its extension. Results are sorted by path.
func (w *Walker) Walk(roots ...string) ([]FileEntry, error) {
	var entries []FileEntry
	for _, root := range roots {
		root, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root path: %w", err)
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat root: %w", err)
		}
		if !info.IsDir() {
			entries = append(entries, FileEntry{Path: root, Ext: strings.ToLower(filepath.Ext(root))})
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Error walking path")
				return nil
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if w.accepts(ext) {
				entries = append(entries, FileEntry{Path: path, Ext: ext})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk directory: %w", err)
		}
	}

	slices.SortFunc(entries, func(a, b FileEntry) int { return strings.Compare(a.Path, b.Path) })
	entries = slices.CompactFunc(entries, func(a, b FileEntry) bool { return a.Path == b.Path })
	log.Info().Int("count", len(entries)).Strs("roots", roots).Msg("Discovered files")
	return entries, nil
}
