// Package locate finds built executables under a build output tree.
package locate

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/deixis/apptest/internal/caseerr"
)

// Locate returns the absolute path of the executable called name.
//
// The conventional build output locations are probed first, in order of
// precedence. When none of them holds the binary, buildRoot/subpath is
// walked and exactly one match is required: none is BinaryNotFound, more
// than one is AmbiguousBinary.
func Locate(buildRoot, subpath, name string) (string, error) {
	root, err := filepath.Abs(buildRoot)
	if err != nil {
		return "", caseerr.Wrap(caseerr.BinaryNotFound, err, "resolving build root %s", buildRoot)
	}
	file := executableName(name)

	for _, candidate := range candidates(root, subpath, file) {
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	searchRoot := filepath.Join(root, subpath)
	var matches []string
	walkErr := filepath.WalkDir(searchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() && path != searchRoot {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != searchRoot && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == file && isExecutable(path) {
			matches = append(matches, path)
		}
		return nil
	})
	if walkErr != nil {
		return "", caseerr.Wrap(caseerr.BinaryNotFound, walkErr, "searching %s for %s", searchRoot, name)
	}

	switch len(matches) {
	case 0:
		return "", caseerr.New(caseerr.BinaryNotFound, "no executable %q under %s", name, searchRoot)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", caseerr.New(caseerr.AmbiguousBinary, "%d executables named %q under %s: %s",
			len(matches), name, searchRoot, strings.Join(matches, ", "))
	}
}

func candidates(root, subpath, file string) []string {
	return []string{
		filepath.Join(root, "bin", file),
		filepath.Join(root, subpath, file),
		filepath.Join(root, "bin", "Release", file),
		filepath.Join(root, "bin", "Debug", file),
		filepath.Join(root, "Release", file),
		filepath.Join(root, "Debug", file),
	}
}

func executableName(name string) string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return name + ".exe"
	}
	return name
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
