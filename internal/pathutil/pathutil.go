package pathutil

import (
	"path/filepath"
	"strings"
)

// Canonical converts a path to the canonical form used as the key in every
// cache: absolute, symlink-resolved when the path exists, forward slashes.
func Canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.ToSlash(abs), nil
}

// Normalize converts all path separators to forward slashes without
// touching the filesystem. Go's os.Open/os.Stat accept forward slashes on
// all platforms. Backslashes are replaced unconditionally so paths
// reported by Windows clients canonicalize on any server OS.
func Normalize(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// IsSubPath reports whether child is located under parent.
func IsSubPath(child, parent string) bool {
	rel, err := filepath.Rel(filepath.FromSlash(parent), filepath.FromSlash(child))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel) && rel != "."
}

// LibraryRelative strips the library root prefix from a canonical path.
// Returns the path unchanged when it is not under root. Keeping the root
// out of the relative form prevents mount points like /mnt/Tor/ from
// leaking into series-title candidates.
func LibraryRelative(root, p string) string {
	if root == "" {
		return p
	}
	root = strings.TrimSuffix(Normalize(root), "/")
	norm := Normalize(p)
	if norm == root {
		return ""
	}
	if strings.HasPrefix(norm, root+"/") {
		return strings.TrimPrefix(norm, root+"/")
	}
	return p
}

// ParentSegments returns the directory segments between the library root
// and the file, innermost first. Used to pick series-title candidates from
// folder names.
func ParentSegments(root, p string) []string {
	rel := LibraryRelative(root, p)
	dir := filepath.ToSlash(filepath.Dir(filepath.FromSlash(rel)))
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}
	parts := strings.Split(dir, "/")
	out := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			out = append(out, parts[i])
		}
	}
	return out
}
