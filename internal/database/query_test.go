package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemasql/internal/errs"
)

func TestSelectBuilder(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *SelectBuilder
		sql     string
		args    []any
		wantErr bool
	}{
		{
			name:  "bare postgres",
			build: func() *SelectBuilder { return Select("person", DialectPostgres) },
			sql:   `SELECT * FROM "person"`,
		},
		{
			name: "filters, order and page on postgres",
			build: func() *SelectBuilder {
				return Select("person", DialectPostgres).
					Where("name", "=", "Ada").
					Where("age", ">=", 30).
					OrderBy("date", Desc).
					Limit(10).
					Offset(20)
			},
			sql:  `SELECT * FROM "person" WHERE "name" = $1 AND "age" >= $2 ORDER BY "date" DESC LIMIT $3 OFFSET $4`,
			args: []any{"Ada", 30, 10, 20},
		},
		{
			name: "mysql uses backticks and question marks",
			build: func() *SelectBuilder {
				return Select("pet", DialectMySQL).Columns("id", "name").Where("name", "like", "R%").OrderBy("id", Asc)
			},
			sql:  "SELECT `id`, `name` FROM `pet` WHERE `name` LIKE ? ORDER BY `id` ASC",
			args: []any{"R%"},
		},
		{
			name: "join on sqlite",
			build: func() *SelectBuilder {
				return Select("pet", DialectSQLite).
					Columns("pet.*").
					Join("person_pet", "person_pet.pet_id", "pet.id").
					Where("person_pet.person_id", "=", int64(1))
			},
			sql:  `SELECT "pet".* FROM "pet" JOIN "person_pet" ON "person_pet"."pet_id" = "pet"."id" WHERE "person_pet"."person_id" = ?`,
			args: []any{int64(1)},
		},
		{
			name:    "rejects operator outside allowlist",
			build:   func() *SelectBuilder { return Select("pet", DialectSQLite).Where("id", "; DROP", 1) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.build().Build()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestInsertBuilder(t *testing.T) {
	tests := []struct {
		name  string
		build func() *InsertBuilder
		sql   string
		args  []any
	}{
		{
			name:  "postgres returning id",
			build: func() *InsertBuilder { return Insert("person", DialectPostgres).Set("name", "Ada").Set("age", 36).Returning("id") },
			sql:   `INSERT INTO "person" ("name", "age") VALUES ($1, $2) RETURNING "id"`,
			args:  []any{"Ada", 36},
		},
		{
			name:  "mysql ignores returning",
			build: func() *InsertBuilder { return Insert("person", DialectMySQL).Set("name", "Ada").Returning("id") },
			sql:   "INSERT INTO `person` (`name`) VALUES (?)",
			args:  []any{"Ada"},
		},
		{
			name:  "empty insert on sqlite",
			build: func() *InsertBuilder { return Insert("person", DialectSQLite) },
			sql:   `INSERT INTO "person" DEFAULT VALUES`,
		},
		{
			name:  "empty insert on mysql",
			build: func() *InsertBuilder { return Insert("person", DialectMySQL) },
			sql:   "INSERT INTO `person` () VALUES ()",
		},
		{
			name:  "empty insert on postgres",
			build: func() *InsertBuilder { return Insert("person", DialectPostgres).Returning("id") },
			sql:   `INSERT INTO "person" DEFAULT VALUES RETURNING "id"`,
		},
		{
			name: "ignore conflicts mysql",
			build: func() *InsertBuilder {
				return Insert("person_pet", DialectMySQL).Set("person_id", 1).Set("pet_id", 2).IgnoreConflicts()
			},
			sql:  "INSERT IGNORE INTO `person_pet` (`person_id`, `pet_id`) VALUES (?, ?)",
			args: []any{1, 2},
		},
		{
			name: "ignore conflicts sqlite",
			build: func() *InsertBuilder {
				return Insert("person_pet", DialectSQLite).Set("person_id", 1).Set("pet_id", 2).IgnoreConflicts()
			},
			sql:  `INSERT OR IGNORE INTO "person_pet" ("person_id", "pet_id") VALUES (?, ?)`,
			args: []any{1, 2},
		},
		{
			name: "ignore conflicts postgres",
			build: func() *InsertBuilder {
				return Insert("person_pet", DialectPostgres).Set("person_id", 1).Set("pet_id", 2).IgnoreConflicts()
			},
			sql:  `INSERT INTO "person_pet" ("person_id", "pet_id") VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			args: []any{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.build().Build()
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestUpdateBuilder(t *testing.T) {
	sql, args, err := Update("person", DialectPostgres).
		Set("name", "Grace").
		Set("age", 85).
		Where("id", "=", int64(4)).
		Build()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "person" SET "name" = $1, "age" = $2 WHERE "id" = $3`, sql)
	assert.Equal(t, []any{"Grace", 85, int64(4)}, args)

	_, _, err = Update("person", DialectMySQL).Where("id", "=", 1).Build()
	assert.True(t, errs.IsInvalidInput(err))

	_, _, err = Update("person", DialectMySQL).Set("name", "x").Build()
	assert.True(t, errs.IsInvalidInput(err))
}

func TestDeleteBuilder(t *testing.T) {
	sql, args, err := Delete("pet", DialectMySQL).Where("id", "=", int64(9)).Build()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `pet` WHERE `id` = ?", sql)
	assert.Equal(t, []any{int64(9)}, args)

	_, _, err = Delete("pet", DialectSQLite).Build()
	assert.True(t, errs.IsInvalidInput(err))
}
