package spec

import (
	"regexp"
	"strings"
)

var invalidRefChars = regexp.MustCompile(`[^a-z0-9_.-]`)

// ImageTag returns the canonical image tag for a spec name. There is exactly
// one tag per name; rebuilding supersedes the previous image.
func ImageTag(prefix, name string) string {
	ref := invalidRefChars.ReplaceAllString(strings.ToLower(prefix+"-"+name), "-")
	return ref + ":latest"
}

// ContainerName returns the canonical container name for an image tag.
func ContainerName(tag string) string {
	name := strings.TrimSuffix(tag, ":latest")
	return invalidRefChars.ReplaceAllString(name, "-")
}
