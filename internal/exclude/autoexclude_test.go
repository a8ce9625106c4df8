package exclude

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func mkdir(t *testing.T, root, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0755))
}

func TestDetectAutoExcludes_Empty(t *testing.T) {
	result := DetectAutoExcludes(t.TempDir())
	assert.Empty(t, result.Directories)
}

func TestDetectAutoExcludes_Markers(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
		want  []string
	}{
		{
			name: "rust target",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, "Cargo.toml", "[package]\nname = \"demo\"")
				mkdir(t, root, "target")
			},
			want: []string{"target"},
		},
		{
			name: "rust without target",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, "Cargo.toml", "[package]")
			},
			want: []string{},
		},
		{
			name: "node modules",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, "package.json", "{}")
				mkdir(t, root, "node_modules")
			},
			want: []string{"node_modules"},
		},
		{
			name: "go vendor needs modules.txt",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, "go.mod", "module demo")
				mkdir(t, root, "vendor")
			},
			want: []string{},
		},
		{
			name: "go vendor",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, "go.mod", "module demo")
				writeFile(t, root, "vendor/modules.txt", "# github.com/x/y v1.0.0")
			},
			want: []string{"vendor"},
		},
		{
			name: "php vendor",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, "composer.json", "{}")
				writeFile(t, root, "vendor/autoload.php", "<?php")
			},
			want: []string{"vendor"},
		},
		{
			name: "custom virtualenv",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, "pyenv/pyvenv.cfg", "home = /usr/bin")
			},
			want: []string{"pyenv"},
		},
		{
			name: "nested project",
			setup: func(t *testing.T, root string) {
				writeFile(t, root, "tools/gen/Cargo.toml", "[package]")
				mkdir(t, root, "tools/gen/target")
			},
			want: []string{"tools/gen/target"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(t, root)

			result := DetectAutoExcludes(root)
			assert.ElementsMatch(t, tt.want, result.Directories)
			for _, dir := range result.Directories {
				assert.NotEmpty(t, result.Reasons[dir], "missing reason for %s", dir)
			}
		})
	}
}

func TestMatcher_Walk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hi')")
	writeFile(t, root, "pkg/auth.py", "def authenticate(): pass")
	writeFile(t, root, ".env", "SECRET=1")
	writeFile(t, root, "pkg/.hidden", "x")
	writeFile(t, root, ".git/config", "[core]")
	writeFile(t, root, "__pycache__/main.cpython.pyc", "x")
	writeFile(t, root, "venv/lib/site.py", "x")
	writeFile(t, root, "package.json", "{}")
	writeFile(t, root, "node_modules/left-pad/index.js", "x")
	writeFile(t, root, "rust/Cargo.toml", "[package]")
	writeFile(t, root, "rust/target/debug/out", "x")
	writeFile(t, root, ".pytest_cache/v/cache/lastfailed", "{}")
	writeFile(t, root, "pkg/.mypy_cache/3.11/auth.data.json", "{}")
	writeFile(t, root, ".idea/workspace.xml", "<project/>")

	m := NewMatcher(root)

	var got []string
	err := m.Walk(root, func(rel string, d fs.DirEntry) error {
		got = append(got, rel)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"main.py", "package.json", "pkg/auth.py", "rust/Cargo.toml"}, got)
	assert.Contains(t, m.AutoExcluded().Directories, "rust/target")
}

func TestMatcher_Skip(t *testing.T) {
	m := &Matcher{auto: &AutoExcludeResult{Directories: []string{"build/out"}, Reasons: map[string]string{}}}

	assert.True(t, m.SkipDir(".git"))
	assert.True(t, m.SkipDir("src/__pycache__"))
	assert.True(t, m.SkipDir("build/out"))
	assert.True(t, m.SkipDir("build/out/nested"))
	assert.False(t, m.SkipDir("build"))
	assert.False(t, m.SkipDir("build/output"))
	assert.True(t, m.SkipDir(".pytest_cache"))
	assert.True(t, m.SkipDir("src/.mypy_cache"))
	assert.True(t, m.SkipDir(".idea"))

	assert.True(t, m.SkipFile(".env"))
	assert.True(t, m.SkipFile("src/.gitignore"))
	assert.False(t, m.SkipFile("src/main.go"))
}
