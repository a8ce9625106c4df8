package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cxcontext "github.com/codebuddy/buddy/internal/context"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/app.py", false},
		{"README.md", false},
		{".git/config", true},
		{"pkg/__pycache__/x.pyc", true},
		{"web/node_modules/lib/index.js", true},
		{".env", true},
		{"module.pyc", true},
		{".buddy/sessions/sessions.db", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Excluded(tt.path))
		})
	}
}

func TestIsText(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "text.txt", []byte("hello\n"))
	writeFile(t, root, "empty.txt", nil)
	writeFile(t, root, "nul.bin", []byte("abc\x00def"))
	writeFile(t, root, "latin1.txt", []byte{0x63, 0x61, 0x66, 0xe9, 0x20, 0x6f, 0x6b})

	// A multi-byte rune cut at the sniff boundary is still text
	straddle := append([]byte(strings.Repeat("a", sniffLen-1)), []byte("é")...)
	writeFile(t, root, "straddle.txt", straddle)

	assert.True(t, IsText(filepath.Join(root, "text.txt")))
	assert.True(t, IsText(filepath.Join(root, "empty.txt")))
	assert.True(t, IsText(filepath.Join(root, "straddle.txt")))
	assert.False(t, IsText(filepath.Join(root, "nul.bin")))
	assert.False(t, IsText(filepath.Join(root, "latin1.txt")))
	assert.False(t, IsText(filepath.Join(root, "missing.txt")))
}

func TestGenerator(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", []byte("print('hi')"))
	writeFile(t, root, "src/auth.py", []byte("def login():\n    pass\n"))
	writeFile(t, root, "image.png", []byte("\x89PNG\x00\x00"))
	writeFile(t, root, ".env", []byte("SECRET=1\n"))

	lister := cxcontext.StaticLister{"src/auth.py", "app.py", "image.png", ".env", "gone.py"}
	g := NewGenerator(root, lister, nil)
	g.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local) }

	out, err := g.String(context.Background())
	require.NoError(t, err)

	abs, _ := filepath.Abs(root)
	assert.True(t, strings.HasPrefix(out,
		"=== PROJECT: "+filepath.Base(abs)+" ===\n=== Generated: 2025-01-02 03:04:05 ===\n=== Root: "+abs+" ===\n\n"))

	// Sorted, framed, newline-terminated
	assert.Contains(t, out, "--- START FILE: app.py ---\nprint('hi')\n--- END FILE: app.py ---\n\n")
	assert.Contains(t, out, "--- START FILE: src/auth.py ---\ndef login():\n    pass\n--- END FILE: src/auth.py ---\n\n")
	assert.Less(t, strings.Index(out, "app.py"), strings.Index(out, "src/auth.py"))

	assert.NotContains(t, out, "image.png")
	assert.NotContains(t, out, "SECRET")
	assert.NotContains(t, out, "gone.py")
}

func TestWriteFileSkipsItself(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", []byte("package main\n"))
	writeFile(t, root, "blob.txt", []byte("stale blob\n"))

	g := NewGenerator(root, cxcontext.WalkLister{Root: root}, nil)
	stats, err := g.WriteFile(context.Background(), filepath.Join(root, "blob.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, int64(len("package main\n")), stats.Bytes)

	data, err := os.ReadFile(filepath.Join(root, "blob.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "--- START FILE: main.go ---")
	assert.NotContains(t, string(data), "stale blob")
}

func TestGeneratorCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("a\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator(root, cxcontext.StaticLister{"a.txt"}, nil).String(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
