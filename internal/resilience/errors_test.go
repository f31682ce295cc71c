package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("busy")), true},
		{"wrapped explicit", fmt.Errorf("graph: write: %w", NewTransientError(errors.New("busy"))), true},
		{"eris wrapped explicit", eris.Wrap(NewTransientError(errors.New("busy")), "graph: write"), true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"connection class", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"conn reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"message heuristic", errors.New("read: connection reset by peer"), true},
		{"plain", errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(&pgconn.PgError{Code: "40P01"}); got != "transient" {
		t.Errorf("expected transient, got %s", got)
	}
	if got := Classify(errors.New("bad row")); got != "permanent" {
		t.Errorf("expected permanent, got %s", got)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner)
	if !errors.Is(te, inner) {
		t.Error("expected Unwrap to expose inner error")
	}
	if te.Error() != "inner" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
