package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rlch/schemadrift"
	"github.com/rlch/schemadrift/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

func TestScan_Tree(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"app/page.tsx":               "supabase.from('salons').select('id')\n",
		"lib/api.ts":                 "supabase.rpc('refresh_stats')\n",
		"lib/util.js":                "supabase.from('ignored')\n",
		"node_modules/pkg/index.ts":  "supabase.from('vendored')\n",
		"dist/out.ts":                "supabase.from('built')\n",
		"coverage/lcov-report/x.ts":  "supabase.from('coverage')\n",
		"components/empty/Button.ts": "export const x = 1\n",
	})

	result, err := scanner.New().Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"app/page.tsx", "components/empty/Button.ts", "lib/api.ts"}, result.Files)
	assert.Empty(t, result.Skipped)

	var names []string
	for _, ev := range result.Events {
		names = append(names, ev.File+":"+string(ev.Kind)+":"+ev.Name)
	}

	assert.Equal(t, []string{
		"app/page.tsx:table_reference:salons",
		"app/page.tsx:column_select:salons",
		"lib/api.ts:rpc_call:refresh_stats",
	}, names)

	counts := result.Counts()
	assert.Equal(t, 1, counts[scanner.KindTableReference])
	assert.Equal(t, 1, counts[scanner.KindRPCCall])
	assert.Zero(t, counts[scanner.KindPropertyAccess])
}

func TestScan_Extensions(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.ts":  "supabase.from('a')\n",
		"b.vue": "supabase.from('b')\n",
	})

	result, err := scanner.New(scanner.WithExtensions("vue")).Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"b.vue"}, result.Files)
}

func TestScan_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := scanner.New().Scan(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, schemadrift.ErrNotFound)
}

func TestScan_UnreadableFileSkipped(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	root := writeTree(t, map[string]string{
		"ok.ts":     "supabase.from('ok')\n",
		"locked.ts": "supabase.from('locked')\n",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "locked.ts"), 0o000))

	result, err := scanner.New().Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"locked.ts"}, result.Skipped)
	assert.Equal(t, []string{"ok.ts"}, result.Files)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "ok", result.Events[0].Name)
}

func TestScan_Deterministic(t *testing.T) {
	t.Parallel()

	files := make(map[string]string)
	for _, dir := range []string{"a", "b", "c", "d"} {
		for _, name := range []string{"one", "two", "three"} {
			files[dir+"/"+name+".ts"] = "supabase.from('" + name + "').select('id, " + dir + "')\nconst x = row." + name + "\n"
		}
	}

	root := writeTree(t, files)

	first, err := scanner.New(scanner.WithWorkers(8)).Scan(context.Background(), root)
	require.NoError(t, err)

	second, err := scanner.New(scanner.WithWorkers(1)).Scan(context.Background(), root)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("scan not deterministic (-first +second):\n%s", diff)
	}

	assert.Len(t, first.Events, 36)
}

func TestScan_Cancelled(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"a.ts": "supabase.from('a')\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scanner.New().Scan(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}
