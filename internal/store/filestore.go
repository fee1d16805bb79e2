package store

import (
	"context"
	"strings"
)

// Line terminators accepted by SaveContents and AppendContents.
const (
	EOLUnix    = "\n"
	EOLWindows = "\r\n"
)

// RemoteContents is a full read of a todo file.
type RemoteContents struct {
	// RemoteID is the backend's version token for the contents, or "" when
	// the backend cannot tell.
	RemoteID string
	Lines    []string
}

// FileEntry is one item of a directory listing.
type FileEntry struct {
	Name     string `json:"name"`
	IsFolder bool   `json:"is_folder"`
}

// FileStore is the durable storage backend of a todo file.
type FileStore interface {
	// IsAuthenticated reports whether the backend has usable credentials.
	IsAuthenticated() bool

	// IsOnline reports whether the backend is currently reachable.
	IsOnline() bool

	// LoadContents reads the whole file. A missing file fails with ErrNotFound.
	LoadContents(ctx context.Context, path string) (*RemoteContents, error)

	// SaveContents overwrites the file and returns the new version token.
	SaveContents(ctx context.Context, path string, lines []string, eol string) (string, error)

	// AppendContents adds lines to the end of the file, creating it if needed.
	AppendContents(ctx context.Context, path string, lines []string, eol string) error

	// RemoteVersion is a metadata-only read of the current version token.
	// "" means unknown and must be treated as changed.
	RemoteVersion(ctx context.Context, path string) (string, error)

	// DefaultPath is the todo file used when none is configured.
	DefaultPath() string

	// ListFiles lists a directory. With txtOnly, only folders and .txt
	// files are returned.
	ListFiles(ctx context.Context, path string, txtOnly bool) ([]FileEntry, error)
}

// SplitLines splits file contents into lines, accepting both terminators.
// A trailing terminator does not produce an empty last line.
func SplitLines(contents string) []string {
	if contents == "" {
		return nil
	}
	contents = strings.TrimSuffix(contents, "\n")
	lines := strings.Split(contents, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// JoinLines joins lines with eol and terminates the last line. An empty
// eol defaults to EOLUnix.
func JoinLines(lines []string, eol string) string {
	if len(lines) == 0 {
		return ""
	}
	if eol == "" {
		eol = EOLUnix
	}
	return strings.Join(lines, eol) + eol
}

// IsTextFile reports whether name looks like a todo.txt style file.
func IsTextFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".txt")
}
