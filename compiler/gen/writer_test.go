package gen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userSnapshot() *Snapshot {
	return &Snapshot{
		Repository: "UserRepo",
		Dialect:    "lite",
		Methods: []MethodSnapshot{
			{Method: "Get", Kind: "Get", SQL: []string{"select id, name from users where id = @id"}},
			{Method: "Create", Kind: "Create", SQL: []string{
				"insert into users (name) values (@name)",
				"select last_insert_rowid()",
			}},
		},
	}
}

func TestWriteStatements(t *testing.T) {
	var buf bytes.Buffer
	cfg := MustNewConfig(WithPackage("repos"))
	require.NoError(t, WriteStatements(&buf, cfg, userSnapshot()))

	out := buf.String()
	assert.Contains(t, out, DefaultHeader)
	assert.Contains(t, out, "package repos")
	assert.Contains(t, out, "// Statements of UserRepo for the lite dialect.")
	assert.Regexp(t, `UserRepoGet\s+= "select id, name from users where id = @id"`, out)
	assert.Regexp(t, `UserRepoCreate1\s+= "insert into users \(name\) values \(@name\)"`, out)
	assert.Regexp(t, `UserRepoCreate2\s+= "select last_insert_rowid\(\)"`, out)
	assert.Contains(t, out, "// Create (Create)")
}

func TestWriteStatementsSorted(t *testing.T) {
	var buf bytes.Buffer
	a := &Snapshot{Repository: "ARepo", Dialect: "full", Methods: []MethodSnapshot{{Method: "DropTable", Kind: "DropTable", SQL: []string{"drop table a"}}}}
	b := &Snapshot{Repository: "BRepo", Dialect: "full", Methods: []MethodSnapshot{{Method: "DropTable", Kind: "DropTable", SQL: []string{"drop table b"}}}}
	require.NoError(t, WriteStatements(&buf, MustNewConfig(), b, a))

	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("ARepoDropTable")), bytes.Index(buf.Bytes(), []byte("BRepoDropTable")))
	assert.Contains(t, out, "package statements")
}

func TestStatementWriter(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStatementWriter(&Config{})
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	w, err := NewStatementWriter(MustNewConfig(WithTarget(dir), WithPackage("repos"), WithWorkers(2)))
	require.NoError(t, err)

	other := &Snapshot{Repository: "OrderRepo", Dialect: "full", Methods: []MethodSnapshot{
		{Method: "TableExists", Kind: "TableExists", SQL: []string{"select count(*) from information_schema.tables where table_name = @tableName"}},
	}}
	require.NoError(t, w.WriteAll(context.Background(), userSnapshot(), other))

	data, err := os.ReadFile(filepath.Join(dir, "user_repo_lite.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "UserRepoGet")
	_, err = os.Stat(filepath.Join(dir, "order_repo_full.go"))
	require.NoError(t, err)

	m := w.Metrics()
	assert.Equal(t, 2, m.FilesGenerated)
	assert.Positive(t, m.TotalBytes)
}

func TestStatementWriterCanceled(t *testing.T) {
	w, err := NewStatementWriter(MustNewConfig(WithTarget(t.TempDir())))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.WriteAll(ctx, userSnapshot())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, w.Metrics().FilesGenerated)
}
