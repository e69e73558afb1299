package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestBuildFindSQL(t *testing.T) {
	query, args := buildFindSQL(`"s"."tickets"`, Query{
		Collection: Tickets,
		Filters: []Filter{
			{Field: "phone_number", Value: "+1"},
			{Field: "status", Value: "open"},
		},
		SortField: "created_at",
		SortDesc:  true,
		Limit:     10,
	})

	assert.Equal(t,
		`SELECT id, doc, revision FROM "s"."tickets" WHERE TRUE AND doc #>> $1 = $2 AND doc #>> $3 = $4 ORDER BY doc #>> $5 DESC LIMIT $6`,
		query)
	assert.Equal(t, []any{
		[]string{"phone_number"}, "+1",
		[]string{"status"}, "open",
		[]string{"created_at"},
		10,
	}, args)
}

func TestBuildFindSQLNestedPathNoSort(t *testing.T) {
	query, args := buildFindSQL(`"s"."c"`, Query{
		Filters: []Filter{{Field: "personal_info.phone_number", Value: "+1"}},
	})
	assert.Equal(t, `SELECT id, doc, revision FROM "s"."c" WHERE TRUE AND doc #>> $1 = $2`, query)
	assert.Equal(t, []string{"personal_info", "phone_number"}, args[0])
}

func TestClassifyPostgres(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{pgx.ErrNoRows, KindNotFound},
		{&pgconn.PgError{Code: "23505"}, KindConflict},
		{&pgconn.PgError{Code: "28P01"}, KindAuth},
		{&pgconn.PgError{Code: "08006"}, KindConnection},
		{&pgconn.PgError{Code: "57014"}, KindTimeout},
		{&pgconn.PgError{Code: "42P01"}, KindQuery},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindTimeout},
		{errors.New("other"), KindQuery},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(classifyPostgres("op", tc.err, KindQuery)), tc.err.Error())
	}
	assert.Equal(t, KindConnection, KindOf(classifyPostgres("connect", errors.New("refused"), KindConnection)))
}
