package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"didlab/migrations"
)

func TestUpFiles(t *testing.T) {
	source := fstest.MapFS{
		"000002_b.up.sql":   {Data: []byte("SELECT 2")},
		"000001_a.up.sql":   {Data: []byte("SELECT 1")},
		"000001_a.down.sql": {Data: []byte("SELECT 0")},
		"README.md":         {Data: []byte("docs")},
	}

	files, err := UpFiles(source)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql"}, files)
}

func TestUpFiles_Embedded(t *testing.T) {
	files, err := UpFiles(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_credential_records.up.sql",
		"000002_audit_events.up.sql",
	}, files)
}
