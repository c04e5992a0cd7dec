package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsFlowIntoOutput(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "ledger-test", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithAccountID(context.Background(), "acc-1")
	ctx = logg.WithReservationID(ctx, "res-9")
	logg.Info(ctx, "escrow locked")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if entry["account_id"] != "acc-1" {
		t.Fatalf("missing account_id field: %v", entry)
	}
	if entry["reservation_id"] != "res-9" {
		t.Fatalf("missing reservation_id field: %v", entry)
	}
	if entry["service"] != "ledger-test" {
		t.Fatalf("missing service field: %v", entry)
	}
	if entry["message"] != "escrow locked" {
		t.Fatalf("unexpected message: %v", entry)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if ParseLevel("not-a-level") != zerolog.InfoLevel {
		t.Fatal("expected info fallback")
	}
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatal("expected debug")
	}
	if ParseLevel("  WARN ") != zerolog.WarnLevel {
		t.Fatal("expected warn with trimming")
	}
}

func TestNilContextUsesBaseLogger(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "svc", Output: &buf})

	logg.Info(nil, "no context") //nolint:staticcheck

	if buf.Len() == 0 {
		t.Fatal("expected output from base logger")
	}
}
