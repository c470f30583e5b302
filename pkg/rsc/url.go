package rsc

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

const funcPrefix = "F/"

// PathEncoder turns a logical path into the URL segment placed after the base path.
type PathEncoder func(path string) (string, error)

// BasePath joins the configured base path and RSC segment: "{basePath}{rscBase}/".
func BasePath(basePath, rscBase string) string {
	if basePath == "" {
		basePath = domain.DefaultBasePath
	}
	if rscBase == "" {
		rscBase = domain.DefaultRSCBase
	}
	return basePath + rscBase + "/"
}

// EncodeRSCPath encodes an element path: the empty path becomes "_", a leading
// or trailing "/" is padded with "_" and ".txt" is appended. Paths may not
// start or end with "_" themselves.
func EncodeRSCPath(path string) (string, error) {
	if strings.HasPrefix(path, "_") {
		return "", fmt.Errorf("rsc path must not start with `_`: %s", path)
	}
	if strings.HasSuffix(path, "_") {
		return "", fmt.Errorf("rsc path must not end with `_`: %s", path)
	}
	if path == "" {
		path = "_"
	}
	if strings.HasPrefix(path, "/") {
		path = "_" + path
	}
	if strings.HasSuffix(path, "/") {
		path += "_"
	}
	return path + ".txt", nil
}

// DecodeRSCPath reverses EncodeRSCPath.
func DecodeRSCPath(encoded string) (string, error) {
	if !strings.HasSuffix(encoded, ".txt") {
		return "", fmt.Errorf("invalid encoded rsc path: %s", encoded)
	}
	path := strings.TrimSuffix(encoded, ".txt")
	if path == "_" {
		return "", nil
	}
	if strings.HasPrefix(path, "_") {
		path = path[1:]
	}
	if strings.HasSuffix(path, "_") {
		path = path[:len(path)-1]
	}
	return path, nil
}

// EncodeFuncID turns "file#name" into "F/file/name".
func EncodeFuncID(funcID string) (string, error) {
	file, name, ok := strings.Cut(funcID, "#")
	if !ok {
		return "", fmt.Errorf("function id must be of the form file#name: %s", funcID)
	}
	if strings.Contains(name, "/") {
		return "", fmt.Errorf("function name must not include `/`: %s", name)
	}
	return funcPrefix + file + "/" + name, nil
}

// DecodeFuncID reverses EncodeFuncID. ok is false for element paths.
func DecodeFuncID(encoded string) (funcID string, ok bool) {
	if !strings.HasPrefix(encoded, funcPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(encoded, funcPrefix)
	i := strings.LastIndex(rest, "/")
	if i < 0 {
		return "", false
	}
	return rest[:i] + "#" + rest[i+1:], true
}
