package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/errs"
)

func openMemory(t *testing.T) *Driver {
	t.Helper()
	d, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func createPersonPet(t *testing.T, d *Driver) {
	t.Helper()
	ctx := context.Background()
	tx, err := d.Begin(ctx)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS "pet" ("id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT UNIQUE, "name" TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS "person" ("id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT UNIQUE, "name" TEXT)`,
		`CREATE TABLE IF NOT EXISTS "person_pet" ("person_id" INTEGER NOT NULL, "pet_id" INTEGER NOT NULL, ` +
			`PRIMARY KEY ("person_id", "pet_id"), ` +
			`FOREIGN KEY ("person_id") REFERENCES "person" ("id") ON DELETE CASCADE, ` +
			`FOREIGN KEY ("pet_id") REFERENCES "pet" ("id") ON DELETE CASCADE)`,
	} {
		_, err := tx.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit(ctx))
}

func TestDriver_InsertAndQuery(t *testing.T) {
	d := openMemory(t)
	createPersonPet(t, d)
	ctx := context.Background()

	assert.Equal(t, database.DialectSQLite, d.Dialect())

	q, args, err := database.Insert("pet", database.DialectSQLite).Set("name", "Rex").Build()
	require.NoError(t, err)
	id, err := d.Insert(ctx, q, args...)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	q, args, err = database.Select("pet", database.DialectSQLite).Where("id", "=", id).Build()
	require.NoError(t, err)
	rows, err := d.Query(ctx, q, args...)
	require.NoError(t, err)
	records, err := database.ScanRows(rows)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Rex", records[0]["name"])
	assert.Equal(t, int64(1), records[0]["id"])
}

func TestDriver_InsertOrIgnoreIsIdempotent(t *testing.T) {
	d := openMemory(t)
	createPersonPet(t, d)
	ctx := context.Background()

	_, err := d.Exec(ctx, `INSERT INTO "person" ("name") VALUES ('Ada')`)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `INSERT INTO "pet" ("name") VALUES ('Rex')`)
	require.NoError(t, err)

	q, args, err := database.Insert("person_pet", database.DialectSQLite).
		Set("person_id", 1).
		Set("pet_id", 1).
		IgnoreConflicts().
		Build()
	require.NoError(t, err)

	n, err := d.Exec(ctx, q, args...)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = d.Exec(ctx, q, args...)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestDriver_ForeignKeysEnforced(t *testing.T) {
	d := openMemory(t)
	createPersonPet(t, d)

	_, err := d.Exec(context.Background(), `INSERT INTO "person_pet" ("person_id", "pet_id") VALUES (?, ?)`, 9, 9)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
	assert.Contains(t, errs.StatementOf(err), "person_pet")
}

func TestDriver_DeleteCascades(t *testing.T) {
	d := openMemory(t)
	createPersonPet(t, d)
	ctx := context.Background()

	_, err := d.Exec(ctx, `INSERT INTO "person" ("name") VALUES ('Ada')`)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `INSERT INTO "pet" ("name") VALUES ('Rex')`)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `INSERT INTO "person_pet" VALUES (1, 1)`)
	require.NoError(t, err)

	_, err = d.Exec(ctx, `DELETE FROM "person" WHERE "id" = ?`, 1)
	require.NoError(t, err)

	row, err := d.QueryRow(ctx, `SELECT COUNT(*) FROM "person_pet"`)
	require.NoError(t, err)
	var count int
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 0, count)
}

func TestDriver_QueryRowNotFound(t *testing.T) {
	d := openMemory(t)
	createPersonPet(t, d)

	row, err := d.QueryRow(context.Background(), `SELECT "id" FROM "pet" WHERE "id" = ?`, 42)
	require.NoError(t, err)
	var id int64
	err = row.Scan(&id)
	assert.True(t, errs.IsNotFound(err))
}

func TestDriver_RollbackDiscardsDDL(t *testing.T) {
	d := openMemory(t)
	ctx := context.Background()

	tx, err := d.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `CREATE TABLE "draft" ("id" INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	ok, err := d.TableExists(ctx, "draft")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDriver_Introspection(t *testing.T) {
	d := openMemory(t)
	createPersonPet(t, d)
	ctx := context.Background()

	tables, err := d.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "person_pet", "pet"}, tables)

	info, err := d.InspectTable(ctx, "person_pet")
	require.NoError(t, err)
	assert.Equal(t, []string{"person_id", "pet_id"}, info.PrimaryKey)
	require.Len(t, info.ForeignKeys, 2)
	refs := []string{info.ForeignKeys[0].RefTable, info.ForeignKeys[1].RefTable}
	assert.ElementsMatch(t, []string{"person", "pet"}, refs)

	pet, err := d.InspectTable(ctx, "pet")
	require.NoError(t, err)
	require.NotNil(t, pet.Column("name"))
	assert.False(t, pet.Column("name").Nullable)
	assert.Equal(t, "TEXT", pet.Column("name").DataType)

	_, err = d.InspectTable(ctx, "ghost")
	assert.True(t, errs.IsNotFound(err))

	all, err := database.InspectTables(ctx, d)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDriver_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.db")
	ctx := context.Background()

	d, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = d.Exec(ctx, `CREATE TABLE "note" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "body" TEXT)`)
	require.NoError(t, err)
	d.Close()

	d, err = Open(ctx, path)
	require.NoError(t, err)
	defer d.Close()
	ok, err := d.TableExists(ctx, "note")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithForeignKeys(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=foreign_keys(1)", withForeignKeys(""))
	assert.Equal(t, "file:x.db?cache=shared&_pragma=foreign_keys(1)", withForeignKeys("file:x.db?cache=shared"))
	assert.Equal(t, "x.db?_pragma=foreign_keys(0)", withForeignKeys("x.db?_pragma=foreign_keys(0)"))
}
