package utils

import (
	"strings"
)

// JoinPath joins repository path parts using forward slashes regardless of host OS.
// It strips leading/trailing slashes from each component, then prefixes the result with "/".
// Pattern:
//   - Root path = "/"
//   - Child of root = "/{child}"
//   - Children of that = "/{child}/{grandchild}" etc.
func JoinPath(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		part = strings.Trim(part, "/")
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}

	if len(cleaned) == 0 {
		return "/"
	}

	return "/" + strings.Join(cleaned, "/")
}

// SplitPath returns the parent path and the final segment of a repository path.
// The root splits into ("/", "").
func SplitPath(path string) (string, string) {
	clean := JoinPath(path)
	if clean == "/" {
		return "/", ""
	}
	idx := strings.LastIndex(clean, "/")
	if idx == 0 {
		return "/", clean[1:]
	}
	return clean[:idx], clean[idx+1:]
}

// IsWithin reports whether path equals root or sits somewhere beneath it
func IsWithin(path, root string) bool {
	path, root = JoinPath(path), JoinPath(root)
	if root == "/" || path == root {
		return true
	}
	return strings.HasPrefix(path, root+"/")
}

// ValidName reports whether name can stand as a single path segment
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

// HasDotSegment reports whether any segment of path is "." or ".."
func HasDotSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
