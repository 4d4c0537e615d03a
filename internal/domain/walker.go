package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"patchwatch.dev/pkg/patchwatch/internal/adapter"
	m "patchwatch.dev/pkg/patchwatch/internal/model"
)

// ClassRule assigns a class to every file whose root-relative slash path
// matches Pattern (doublestar syntax).
type ClassRule struct {
	Pattern string
	Class   m.FileClass
}

// FilePolicy decides which files are scanned and how they are classified.
// Rules are evaluated in order and the first match wins; files matching no
// rule are policy-relevant.
type FilePolicy struct {
	Exclude     []string
	Rules       []ClassRule
	Extensions  []string
	SourceRoots []string
}

// DefaultExcludes prunes virtual environments, build output and vendored code.
var DefaultExcludes = []string{
	"**/.venv/**",
	"**/venv/**",
	"**/.tox/**",
	"**/node_modules/**",
	"**/build/**",
	"**/dist/**",
	"**/.git/**",
	"**/__pycache__/**",
	"**/site-packages/**",
	"**/vendor/**",
	"**/*.egg-info/**",
}

// DefaultClassRules classifies conventional test locations as test code.
var DefaultClassRules = []ClassRule{
	{Pattern: "**/tests/**", Class: m.ClassTest},
	{Pattern: "tests/**", Class: m.ClassTest},
	{Pattern: "**/test/**", Class: m.ClassTest},
	{Pattern: "test/**", Class: m.ClassTest},
	{Pattern: "**/test_*.py", Class: m.ClassTest},
	{Pattern: "**/*_test.py", Class: m.ClassTest},
	{Pattern: "**/conftest.py", Class: m.ClassTest},
}

// DefaultFilePolicy returns the built-in walking policy.
func DefaultFilePolicy() FilePolicy {
	return FilePolicy{
		Exclude:    append([]string(nil), DefaultExcludes...),
		Rules:      append([]ClassRule(nil), DefaultClassRules...),
		Extensions: []string{".py"},
	}
}

// ParseClassRule parses "pattern=class", e.g. "scripts/fixtures/**=test".
func ParseClassRule(raw string) (ClassRule, error) {
	idx := strings.LastIndex(raw, "=")
	if idx <= 0 {
		return ClassRule{}, fmt.Errorf("invalid class rule %q: want pattern=class", raw)
	}

	pattern := strings.TrimSpace(raw[:idx])
	class := m.FileClass(strings.TrimSpace(raw[idx+1:]))

	if class != m.ClassTest && class != m.ClassPolicy {
		return ClassRule{}, fmt.Errorf("invalid class %q in rule %q: want test or policy", class, raw)
	}

	if !doublestar.ValidatePattern(pattern) {
		return ClassRule{}, fmt.Errorf("invalid pattern %q in rule %q", pattern, raw)
	}

	return ClassRule{Pattern: pattern, Class: class}, nil
}

// Classify applies the ordered rules to a root-relative slash path.
func (p FilePolicy) Classify(rel string) m.FileClass {
	for _, rule := range p.Rules {
		if matched, err := doublestar.Match(rule.Pattern, rel); err == nil && matched {
			return rule.Class
		}
	}

	return m.ClassPolicy
}

// Excluded reports whether a file, or every file below a directory, is
// excluded.
func (p FilePolicy) Excluded(rel string, isDir bool) bool {
	for _, pattern := range p.Exclude {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}

		if isDir {
			// A directory is pruned when any child would be excluded by name alone.
			if matched, err := doublestar.Match(pattern, rel+"/_"); err == nil && matched {
				return true
			}
		}
	}

	return false
}

func (p FilePolicy) wantsExtension(name string) bool {
	exts := p.Extensions
	if len(exts) == 0 {
		exts = []string{".py"}
	}

	ext := filepath.Ext(name)
	for _, want := range exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}

	return false
}

// ModuleName derives the dotted module name from a root-relative path.
func (p FilePolicy) ModuleName(rel string) string {
	for _, root := range p.SourceRoots {
		prefix := strings.Trim(filepath.ToSlash(root), "/") + "/"
		if prefix != "/" && strings.HasPrefix(rel, prefix) {
			rel = strings.TrimPrefix(rel, prefix)
			break
		}
	}

	rel = strings.TrimSuffix(rel, path.Ext(rel))

	parts := strings.Split(rel, "/")
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}

	return strings.Join(parts, ".")
}

// Candidate is either a file to scan or a warning met while enumerating.
type Candidate struct {
	File    m.SourceFile
	Warning *m.Warning
}

// Walker enumerates and loads source files below a root.
type Walker interface {
	// Stream lists candidate files without reading them. The error channel
	// carries at most one fatal error (the root could not be enumerated).
	Stream(ctx context.Context, root m.Path, policy FilePolicy) (<-chan Candidate, <-chan error)
	// Load reads a candidate's content within timeout.
	Load(ctx context.Context, file m.SourceFile, timeout time.Duration) (m.SourceFile, error)
}

type walker struct {
	adapter.SourceFSAdapter
}

// NewWalker creates a Walker over the given filesystem adapter.
func NewWalker(fsAdapter adapter.SourceFSAdapter) Walker {
	return &walker{SourceFSAdapter: fsAdapter}
}

func (w *walker) Stream(ctx context.Context, root m.Path, policy FilePolicy) (<-chan Candidate, <-chan error) {
	out := make(chan Candidate)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		info, err := w.FileInfo(ctx, root)
		if err != nil {
			slog.Error("Failed to stat scan root", "root", root, "error", err)
			errCh <- fmt.Errorf("%w: %s: %w", m.ErrRootUnreadable, root, err)

			return
		}

		if !info.IsDir() {
			errCh <- fmt.Errorf("%w: %s is not a directory", m.ErrRootUnreadable, root)
			return
		}

		err = w.Walk(ctx, root, func(p string, info os.FileInfo, walkErr error) error {
			return w.visit(ctx, root, policy, p, info, walkErr, out)
		})
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("Failed to walk scan root", "root", root, "error", err)
				errCh <- fmt.Errorf("%w: %s: %w", m.ErrRootUnreadable, root, err)

				return
			}

			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}

func (w *walker) visit(ctx context.Context, root m.Path, policy FilePolicy, p string, info os.FileInfo, walkErr error, out chan<- Candidate) error {
	if p == string(root) {
		return walkErr
	}

	relPath, err := w.RelPath(ctx, root, m.Path(p))
	if err != nil {
		return err
	}

	rel := filepath.ToSlash(string(relPath))

	if walkErr != nil {
		slog.Warn("Skipping unreadable path", "path", rel, "error", walkErr)

		if info != nil && info.IsDir() {
			return send(ctx, out, Candidate{Warning: &m.Warning{Kind: m.WarnIO, Path: m.Path(rel), Message: walkErr.Error()}}, adapter.SkipDir)
		}

		return send(ctx, out, Candidate{Warning: &m.Warning{Kind: m.WarnIO, Path: m.Path(rel), Message: walkErr.Error()}}, nil)
	}

	if info.IsDir() {
		if policy.Excluded(rel, true) {
			slog.Debug("Pruning excluded directory", "path", rel)
			return adapter.SkipDir
		}

		return nil
	}

	if !info.Mode().IsRegular() || !policy.wantsExtension(rel) || policy.Excluded(rel, false) {
		return nil
	}

	module := policy.ModuleName(rel)
	file := m.SourceFile{
		Path:       m.Path(p),
		RelPath:    rel,
		Class:      policy.Classify(rel),
		ModuleName: module,
		TopLevel:   strings.SplitN(module, ".", 2)[0],
	}

	return send(ctx, out, Candidate{File: file}, nil)
}

func send(ctx context.Context, out chan<- Candidate, c Candidate, ret error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- c:
		return ret
	}
}

func (w *walker) Load(ctx context.Context, file m.SourceFile, timeout time.Duration) (m.SourceFile, error) {
	readCtx := ctx

	if timeout > 0 {
		var cancel context.CancelFunc

		readCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	content, err := w.ReadFile(readCtx, file.Path)
	if err != nil {
		return file, fmt.Errorf("load %s: %w", file.RelPath, err)
	}

	file.Content = content

	return file, nil
}
