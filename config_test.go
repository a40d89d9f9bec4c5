package schemadrift_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/rlch/schemadrift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadConfig_WalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".schemadrift.yaml"), dedent.Dedent(`
		schema: types/database.types.ts
		root: src
		strict: true
		format: markdown
		fail_on: high
		output: reports/drift.md
		ignore:
		  - type == "property_possibly_not_found"
	`))

	nested := filepath.Join(root, "src", "features", "booking")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := schemadrift.LoadConfig(nested)
	require.NoError(t, err)

	assert.True(t, cfg.Strict)
	assert.Equal(t, "markdown", cfg.Format)
	assert.Equal(t, "high", cfg.FailOn)
	assert.Len(t, cfg.Ignore, 1)

	// Paths resolve against the config directory, not the start directory.
	assert.Equal(t, filepath.Join(cfg.Dir(), "types", "database.types.ts"), cfg.SchemaPath())
	assert.Equal(t, filepath.Join(cfg.Dir(), "src"), cfg.RootPath())
	assert.Equal(t, filepath.Join(cfg.Dir(), "reports", "drift.md"), cfg.OutputPath())
}

func TestLoadConfig_NotFound(t *testing.T) {
	t.Parallel()

	_, err := schemadrift.LoadConfig(t.TempDir())
	// A config further up the real filesystem would be a test environment quirk.
	if err != nil {
		assert.ErrorIs(t, err, schemadrift.ErrConfigNotFound)
	}
}

func TestLoadConfigOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := schemadrift.LoadConfigOrDefault(dir)
	require.NoError(t, err)

	if cfg.Schema == "" {
		assert.Equal(t, filepath.Join(cfg.Dir(), schemadrift.DefaultSchemaPath), cfg.SchemaPath())
	}
}

func TestLoadConfigFile_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "valid", content: "format: json\nworkers: 4\n"},
		{name: "unknown format", content: "format: xml\n", wantErr: true},
		{name: "unknown fail_on", content: "fail_on: sometimes\n", wantErr: true},
		{name: "negative workers", content: "workers: -1\n", wantErr: true},
		{name: "dotted extension", content: "extensions: [\".ts\"]\n", wantErr: true},
		{name: "empty ignore entry", content: "ignore: [\"\"]\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "schemadrift.yaml")
			writeFile(t, path, tt.content)

			_, err := schemadrift.LoadConfigFile(path)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, schemadrift.ErrInvalidConfig)

				return
			}

			require.NoError(t, err)
		})
	}
}
