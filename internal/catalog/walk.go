package catalog

import (
	"io/fs"
	"path/filepath"
)

// filepathWalkDir walks root depth-first, invoking fn for every entry
// (files and directories). Unreadable subtrees are skipped rather than
// aborting the whole search.
func filepathWalkDir(root string, fn func(path string, isDir bool) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		return fn(path, d.IsDir())
	})
}
