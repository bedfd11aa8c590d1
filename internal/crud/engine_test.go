package crud

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemasql/internal/compiler"
	"github.com/koustreak/schemasql/internal/database"
	"github.com/koustreak/schemasql/internal/database/sqlite"
	"github.com/koustreak/schemasql/internal/errs"
	"github.com/koustreak/schemasql/internal/schema"
)

const (
	personSchema = `{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"age": {"type": "integer"},
			"score": {"type": "number"},
			"active": {"type": "boolean"},
			"tags": {"type": "array"},
			"pet": {"$ref": "pet.json"}
		},
		"required": ["name"]
	}`
	petSchema = `{
		"type": "object",
		"properties": {
			"species": {"type": "string"},
			"kind": {"enum": ["cat", "dog"]}
		}
	}`
)

type fixture struct {
	db      *sqlite.Driver
	engines map[string]*Engine
}

func (f *fixture) engine(name string) *Engine { return f.engines[name] }

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	row, err := f.db.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+database.DialectSQLite.QuoteIdent(table))
	require.NoError(t, err)
	var n int64
	require.NoError(t, row.Scan(&n))
	return n
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	for name, body := range map[string]string{"person.json": personSchema, "pet.json": petSchema} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	l := schema.NewLoader(dir)
	c := compiler.New(db, l)
	_, err = c.CompileFile(ctx, "person")
	require.NoError(t, err)

	f := &fixture{db: db, engines: make(map[string]*Engine)}
	lookup := func(name string) (*Engine, error) {
		e, ok := f.engines[name]
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "no table %q", name)
		}
		return e, nil
	}
	for _, def := range c.Definitions() {
		f.engines[def.Name] = New(db, def, WithLookup(lookup))
	}
	return f
}

func TestEngine_CreateRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	people := f.engine("person")

	row, err := people.Create(ctx, map[string]any{
		"name":   "Ada",
		"age":    36,
		"score":  9.5,
		"active": true,
		"tags":   []any{"a", "b"},
		"pet":    map[string]any{"species": "cat", "kind": "cat"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "Ada", row["name"])
	assert.Equal(t, int64(36), row["age"])
	assert.Equal(t, 9.5, row["score"])
	assert.Equal(t, true, row["active"])
	assert.Equal(t, `["a","b"]`, row["tags"])
	assert.NotNil(t, row["date"])
	assert.NotContains(t, row, "pet")

	pets, err := people.Related(ctx, 1, "pet")
	require.NoError(t, err)
	require.Len(t, pets, 1)
	assert.Equal(t, "cat", pets[0]["species"])
	assert.Equal(t, int64(1), pets[0]["id"])

	found, err := people.Find(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, row["name"], found["name"])
}

func TestEngine_CreateWithReferenceArray(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	existing, err := f.engine("pet").Create(ctx, map[string]any{"species": "fish"})
	require.NoError(t, err)
	existingID := existing["id"].(int64)

	_, err = f.engine("person").Create(ctx, map[string]any{
		"name": "Ada",
		"pet": []any{
			map[string]any{"species": "cat"},
			map[string]any{"id": existingID},
		},
	})
	require.NoError(t, err)

	pets, err := f.engine("person").Related(ctx, 1, "pet")
	require.NoError(t, err)
	require.Len(t, pets, 2)
	assert.Equal(t, "fish", pets[0]["species"])
	assert.Equal(t, "cat", pets[1]["species"])
	assert.Equal(t, int64(2), f.count(t, "pet"), "an id-only reference links without creating")
}

func TestEngine_NestedUpdateThroughReference(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	pet, err := f.engine("pet").Create(ctx, map[string]any{"species": "cat"})
	require.NoError(t, err)

	_, err = f.engine("person").Create(ctx, map[string]any{
		"name": "Ada",
		"pet":  map[string]any{"id": pet["id"], "species": "lynx"},
	})
	require.NoError(t, err)

	updated, err := f.engine("pet").Find(ctx, pet["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, "lynx", updated["species"])
	assert.Equal(t, int64(1), f.count(t, "pet"))
}

func TestEngine_ValidationFailsBeforeWriting(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.engine("person").Create(ctx, map[string]any{"age": "old", "bogus": 1})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "person", verr.Table)
	fields := make([]string, len(verr.Violations))
	for i, v := range verr.Violations {
		fields[i] = v.Field
	}
	assert.Equal(t, []string{"bogus", "name", "age"}, fields)
	assert.Equal(t, "is required", verr.Violations[1].Message)

	assert.Equal(t, int64(0), f.count(t, "person"))
}

func TestEngine_InvalidNestedItemWritesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	people := f.engine("person")

	_, err := people.Create(ctx, map[string]any{"name": "Ada", "pet": map[string]any{"kind": "bird"}})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "person", verr.Table)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "pet[0].kind", verr.Violations[0].Field)
	assert.Equal(t, int64(0), f.count(t, "person"))
	assert.Equal(t, int64(0), f.count(t, "pet"))

	_, err = people.Create(ctx, map[string]any{"name": "Ada", "pet": map[string]any{"id": "rex", "kind": "cat"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pet[0].id", verr.Violations[0].Field)

	_, err = people.Create(ctx, map[string]any{"name": "Ada", "pet": map[string]any{"id": 42}})
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, int64(0), f.count(t, "person"))

	bob, err := people.Create(ctx, map[string]any{"name": "Bob"})
	require.NoError(t, err)
	id := bob["id"].(int64)

	_, err = people.Update(ctx, id, map[string]any{
		"name": "Robert",
		"pet":  []any{map[string]any{"kind": "cat"}, map[string]any{"kind": "fish"}},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pet[1].kind", verr.Violations[0].Field)

	row, err := people.Find(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bob", row["name"])
	assert.Equal(t, int64(0), f.count(t, "pet"))
	assert.Equal(t, int64(0), f.count(t, "person_pet"))
}

func TestEngine_DateIsNotNullable(t *testing.T) {
	f := setup(t)
	people := f.engine("person")

	_, err := people.Validate(map[string]any{"name": "Ada", "date": nil})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "date", verr.Violations[0].Field)

	_, err = people.Create(context.Background(), map[string]any{"name": "Ada", "date": nil})
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, int64(0), f.count(t, "person"))

	_, err = people.Validate(map[string]any{"name": "Ada"})
	assert.NoError(t, err)
}

func TestEngine_ValidateEnumAndReferenceShape(t *testing.T) {
	f := setup(t)

	_, err := f.engine("pet").Validate(map[string]any{"kind": "fish"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "kind", verr.Violations[0].Field)

	p, err := f.engine("pet").Validate(map[string]any{"kind": "dog", "species": nil})
	require.NoError(t, err)
	assert.Equal(t, database.Record{"kind": "dog", "species": nil}, p.Columns)

	_, err = f.engine("person").Validate(map[string]any{"name": "Ada", "pet": "rex"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pet", verr.Violations[0].Field)

	_, err = f.engine("person").Validate(map[string]any{"name": nil})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Violations[0].Field)
}

func TestEngine_ValidateSplitsReferences(t *testing.T) {
	f := setup(t)

	p, err := f.engine("person").Validate(map[string]any{
		"name": "Ada",
		"age":  float64(36),
		"tags": map[string]any{"k": "v"},
		"pet":  map[string]any{"species": "cat"},
	})
	require.NoError(t, err)
	assert.Equal(t, database.Record{"name": "Ada", "age": int64(36), "tags": `{"k":"v"}`}, p.Columns)
	require.Len(t, p.References, 1)
	assert.Equal(t, "person_pet", p.References[0].Relation.Name)
	assert.Equal(t, []map[string]any{{"species": "cat"}}, p.References[0].Items)
}

func TestEngine_Read(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	people := f.engine("person")

	for i := 1; i <= 30; i++ {
		_, err := people.Create(ctx, map[string]any{"name": "p", "age": i % 3})
		require.NoError(t, err)
	}

	ids := func(rows []database.Record) []int64 {
		out := make([]int64, len(rows))
		for i, r := range rows {
			out[i] = r["id"].(int64)
		}
		return out
	}

	rows, err := people.Read(ctx, nil, Clauses{})
	require.NoError(t, err)
	assert.Len(t, rows, DefaultLimit)

	rows, err = people.Read(ctx, nil, Clauses{OrderBy: "id", Order: "asc", Limit: 10, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{21, 22, 23, 24, 25, 26, 27, 28, 29, 30}, ids(rows))

	offset := 5
	rows, err = people.Read(ctx, nil, Clauses{OrderBy: "id", Order: "ASC", Limit: 3, Offset: &offset, Page: 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 7, 8}, ids(rows))

	rows, err = people.Read(ctx, nil, Clauses{OrderBy: "id", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 29}, ids(rows))

	rows, err = people.Read(ctx, map[string]any{"age": "0"}, Clauses{OrderBy: "id", Order: "a", Limit: 100})
	require.NoError(t, err)
	assert.Len(t, rows, 10)
	assert.Equal(t, int64(3), rows[0]["id"])
}

func TestEngine_ReadRejectsUnknownColumns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	people := f.engine("person")

	_, err := people.Read(ctx, map[string]any{"nope": 1}, Clauses{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = people.Read(ctx, nil, Clauses{OrderBy: "name; DROP TABLE person"})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = people.Read(ctx, map[string]any{"name": []any{"a"}}, Clauses{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = people.Read(ctx, nil, Clauses{Limit: -1})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestEngine_LinkIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	person, err := f.engine("person").Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	pet, err := f.engine("pet").Create(ctx, map[string]any{"species": "cat"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.engine("person").Link(ctx, "pet", person["id"].(int64), pet["id"].(int64)))
	}
	assert.Equal(t, int64(1), f.count(t, "person_pet"))

	err = f.engine("person").Link(ctx, "pet", person["id"].(int64), 99)
	assert.True(t, errs.IsConflict(err))

	err = f.engine("person").Link(ctx, "name", 1, 1)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestEngine_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	people := f.engine("person")

	_, err := people.Create(ctx, map[string]any{"name": "Ada", "age": 36})
	require.NoError(t, err)

	row, err := people.Update(ctx, 1, map[string]any{"name": "Grace", "age": 40, "id": 1})
	require.NoError(t, err)
	assert.Equal(t, "Grace", row["name"])
	assert.Equal(t, int64(40), row["age"])

	_, err = people.Update(ctx, 1, map[string]any{"name": "Grace", "id": 2})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = people.Update(ctx, 99, map[string]any{"name": "Nobody"})
	assert.True(t, errs.IsNotFound(err))

	_, err = people.Update(ctx, 1, map[string]any{"age": 1})
	assert.True(t, errs.IsValidation(err))
}

func TestEngine_DeleteCascadesToRelations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	people := f.engine("person")

	_, err := people.Create(ctx, map[string]any{"name": "Ada", "pet": map[string]any{"species": "cat"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.count(t, "person_pet"))

	ok, err := people.Delete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), f.count(t, "person_pet"))
	assert.Equal(t, int64(1), f.count(t, "pet"))

	ok, err = people.Delete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = people.Find(ctx, 1)
	assert.True(t, errs.IsNotFound(err))
}

func TestEngine_ReferencesNeedLookup(t *testing.T) {
	f := setup(t)
	people := New(f.db, f.engine("person").Table())

	_, err := people.Create(context.Background(), map[string]any{"name": "Ada", "pet": map[string]any{"species": "cat"}})
	assert.True(t, errs.IsInvalidInput(err))
	assert.Equal(t, int64(0), f.count(t, "person"))
}
