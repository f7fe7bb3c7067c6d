// Package nav provides tree-sitter based definition navigation for Go
// source. Resolution is heuristic: declarations are matched by name with
// same-file, then same-package, then workspace-wide preference.
package nav

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	aideerrors "github.com/XC0R/aide/internal/errors"
)

// Declaration is one extracted Go declaration.
type Declaration struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // "func", "method", "type", "struct", "interface", "const", "var"
	Path      string `json:"path"` // workspace-relative file path
	Line      int    `json:"line"` // 1-indexed
	EndLine   int    `json:"endLine"`
	Receiver  string `json:"receiver,omitempty"` // for methods, receiver type without pointer
	Signature string `json:"signature,omitempty"`
}

// Options controls workspace scanning.
type Options struct {
	// IncludeTests extracts declarations from _test.go files as well.
	IncludeTests bool
	// Ignore lists directory names skipped during the walk.
	Ignore []string
}

// Index maps declaration names to their locations across a workspace.
type Index struct {
	root  string
	opts  Options
	decls map[string][]Declaration
	files int
}

// NewIndex creates an empty index rooted at the workspace directory.
func NewIndex(root string, opts Options) *Index {
	return &Index{
		root:  root,
		opts:  opts,
		decls: make(map[string][]Declaration),
	}
}

// Scan walks the workspace and extracts declarations from every Go file.
// Files that fail to parse are skipped; the walk itself failing is an error.
func (ix *Index) Scan(ctx context.Context) error {
	skip := map[string]bool{}
	for _, name := range ix.opts.Ignore {
		skip[name] = true
	}

	return filepath.Walk(ix.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if path != ix.root && (strings.HasPrefix(name, ".") || skip[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		if !ix.opts.IncludeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			rel = path
		}
		if err := ix.AddFile(ctx, rel); err != nil {
			// Unparseable files are left out of the index.
			return nil
		}
		return nil
	})
}

// AddFile extracts declarations from one workspace-relative file and adds
// them to the index.
func (ix *Index) AddFile(ctx context.Context, rel string) error {
	source, err := os.ReadFile(filepath.Join(ix.root, rel))
	if err != nil {
		return err
	}

	decls, err := extractSource(ctx, rel, source)
	if err != nil {
		return err
	}
	for _, d := range decls {
		ix.decls[d.Name] = append(ix.decls[d.Name], d)
	}
	ix.files++
	return nil
}

// ExtractFile extracts declarations from a single file without touching an
// index. It is stateless and safe for concurrent use.
func ExtractFile(ctx context.Context, path string) ([]Declaration, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return extractSource(ctx, path, source)
}

// Files reports how many files contributed declarations.
func (ix *Index) Files() int {
	return ix.files
}

// Lookup returns all declarations with the given base name, in stable
// path order.
func (ix *Index) Lookup(name string) []Declaration {
	found := append([]Declaration(nil), ix.decls[name]...)
	sort.Slice(found, func(i, j int) bool {
		if found[i].Path != found[j].Path {
			return found[i].Path < found[j].Path
		}
		return found[i].Line < found[j].Line
	})
	return found
}

// Symbols returns the declarations of one workspace-relative file in
// line order.
func (ix *Index) Symbols(rel string) []Declaration {
	var found []Declaration
	for _, decls := range ix.decls {
		for _, d := range decls {
			if d.Path == rel {
				found = append(found, d)
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Line < found[j].Line })
	return found
}

// Definition resolves a name to its most plausible declaration. The name
// may be qualified ("store.Open"); the qualifier then prefers declarations
// whose directory matches it. fromPath, when non-empty, prefers the same
// file and then the same directory.
func (ix *Index) Definition(name, fromPath string) (*Declaration, error) {
	base := name
	qualifier := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		qualifier = name[:i]
		base = name[i+1:]
	}

	candidates := ix.Lookup(base)
	if len(candidates) == 0 {
		return nil, aideerrors.New(aideerrors.SymbolNotFound,
			fmt.Sprintf("no declaration named %q in workspace", base), nil).
			WithRemediation("run aide symbols <file> to inspect extracted declarations")
	}

	best := candidates[0]
	bestScore := -1
	for _, c := range candidates {
		score := 0
		if fromPath != "" {
			if c.Path == fromPath {
				score += 100
			} else if filepath.Dir(c.Path) == filepath.Dir(fromPath) {
				score += 50
			}
		}
		if qualifier != "" {
			dir := filepath.Dir(c.Path)
			if filepath.Base(dir) == qualifier {
				score += 75
			}
			// Method calls qualified by a value: prefer matching receivers.
			if c.Receiver == qualifier {
				score += 25
			}
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}

	return &best, nil
}
