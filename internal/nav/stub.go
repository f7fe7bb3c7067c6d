//go:build !cgo

package nav

import "context"

// Available reports whether tree-sitter extraction is compiled in.
// Without CGO the grammar is unavailable and scans index nothing.
func Available() bool {
	return false
}

func extractSource(ctx context.Context, path string, source []byte) ([]Declaration, error) {
	return nil, nil
}
