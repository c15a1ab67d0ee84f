package docstore

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "class/c1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "class/c1", `{"name":"Math"}`))
	require.NoError(t, s.Update(ctx, map[string]string{
		"class/c1/students/dates":  "2024-09-02,2024-09-03",
		"class/c1/students/ada":    "O,",
		"class/c1/students/50%_x":  ",",
		"class/c10/students/dates": "2024-09-02",
		"user/u1/classes/c1":       "true",
	}))

	v, err := s.Get(ctx, "class/c1")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Math"}`, v)

	kids, err := s.Children(ctx, "class/c1/students")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"dates": "2024-09-02,2024-09-03",
		"ada":   "O,",
		"50%_x": ",",
	}, kids)

	classes, err := s.Children(ctx, "class")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c1": `{"name":"Math"}`}, classes)

	require.NoError(t, s.Set(ctx, "class/c1/students/ada", "O,L"))
	v, err = s.Get(ctx, "class/c1/students/ada")
	require.NoError(t, err)
	assert.Equal(t, "O,L", v)

	require.NoError(t, s.Delete(ctx, "class/c1"))
	_, err = s.Get(ctx, "class/c1/students/ada")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "class/c1")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = s.Get(ctx, "class/c10/students/dates")
	require.NoError(t, err, "sibling with a shared prefix must survive")
	assert.Equal(t, "2024-09-02", v)

	require.NoError(t, s.Delete(ctx, "class/missing"))

	require.NoError(t, s.Update(ctx, map[string]string{
		"class/c2":             `{"name":"Art"}`,
		"class/c2/enrolled/u1": "Ada",
		"user/u1/classes/c2":   "Art",
		"user/u1/classes/c20":  "Sculpture",
	}))
	assert.ErrorIs(t, s.DeleteAll(ctx, "user/u1/classes/c2", "class//c2"), ErrInvalidPath)
	_, err = s.Get(ctx, "user/u1/classes/c2")
	require.NoError(t, err, "rejected delete must not remove anything")

	require.NoError(t, s.DeleteAll(ctx, "user/u1/classes/c2", "class/c2"))
	for _, gone := range []string{"class/c2", "class/c2/enrolled/u1", "user/u1/classes/c2"} {
		_, err = s.Get(ctx, gone)
		assert.ErrorIs(t, err, ErrNotFound, gone)
	}
	v, err = s.Get(ctx, "user/u1/classes/c20")
	require.NoError(t, err)
	assert.Equal(t, "Sculpture", v)
	require.NoError(t, s.DeleteAll(ctx))

	assert.ErrorIs(t, s.Set(ctx, "class//x", "v"), ErrInvalidPath)
	assert.ErrorIs(t, s.Update(ctx, map[string]string{"ok/path": "v", "": "v"}), ErrInvalidPath)
	_, err = s.Get(ctx, "ok/path")
	assert.ErrorIs(t, err, ErrNotFound, "rejected update must not write anything")
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	p := NewPostgres(db)
	require.NoError(t, p.Migrate(ctx))
	_, err = db.ExecContext(ctx, `DELETE FROM documents WHERE path LIKE 'class%' OR path LIKE 'user%' OR path LIKE 'ok%'`)
	require.NoError(t, err)

	testStore(t, p)
}

func TestPath(t *testing.T) {
	p, err := Path("class", "c1", "students", "ada")
	require.NoError(t, err)
	assert.Equal(t, "class/c1/students/ada", p)

	for _, segs := range [][]string{nil, {"class", ""}, {"class", "a/b"}} {
		_, err := Path(segs...)
		assert.ErrorIs(t, err, ErrInvalidPath)
	}
	assert.Panics(t, func() { MustPath("a", "") })

	assert.Equal(t, "class/c1", parentOf("class/c1/students"))
	assert.Equal(t, "", parentOf("class"))
}
