package schema_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rlch/schemadrift/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	model := loadFixture(t)

	var buf bytes.Buffer
	require.NoError(t, schema.WriteSnapshot(&buf, model))

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	loaded, err := schema.Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(model, loaded); diff != "" {
		t.Errorf("snapshot round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteSnapshot_Stable(t *testing.T) {
	t.Parallel()

	model := loadFixture(t)

	var first, second bytes.Buffer
	require.NoError(t, schema.WriteSnapshot(&first, model))
	require.NoError(t, schema.WriteSnapshot(&second, model))

	assert.Equal(t, first.String(), second.String())
	assert.Contains(t, first.String(), "appointments_view:")
}

func TestRenderTree(t *testing.T) {
	t.Parallel()

	model := loadFixture(t)

	var buf bytes.Buffer
	require.NoError(t, schema.RenderTree(&buf, model))

	out := buf.String()
	assert.Contains(t, out, "schemas (2 tables, 2 views, 3 functions)")
	assert.Contains(t, out, "catalog")
	assert.Contains(t, out, "salon_id: string")
	assert.Contains(t, out, "get_available_slots(p_salon_id, p_date)")
	assert.Contains(t, out, "refresh_stats() -> undefined")
}
