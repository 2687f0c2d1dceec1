package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"studieplan/backend/internal/store"
)

func TestMapTimeblockWriteError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "exclusion violation is conflict",
			err:  &pgconn.PgError{Code: "23P01", ConstraintName: "timeblocks_no_overlap"},
			want: store.ErrConflict,
		},
		{
			name: "unique violation is conflict",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "timeblocks_teacher_start_key"},
			want: store.ErrConflict,
		},
		{
			name: "foreign key violation passes through",
			err:  &pgconn.PgError{Code: "23503"},
			want: nil,
		},
		{
			name: "plain error passes through",
			err:  errors.New("connection reset"),
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapTimeblockWriteError(tc.err)
			if tc.want != nil {
				if !errors.Is(got, tc.want) {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
				return
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("got %v, want original %v", got, tc.err)
			}
		})
	}
}
