package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFileMissingIsNoop(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestLoadEnvFileLoadsAndPreservesExisting(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "amqp://from-env")
	t.Setenv("REDIS_ADDR", "")
	file := filepath.Join(t.TempDir(), "worker.env")
	content := "# broker\nRABBITMQ_URL=amqp://from-file\nREDIS_ADDR=localhost:6380\nOPS_PORT=\"8091\"\nNOT_AN_ASSIGNMENT\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	if err := LoadEnvFile(file); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("RABBITMQ_URL"); got != "amqp://from-env" {
		t.Fatalf("existing var must win, got %q", got)
	}
	if got := os.Getenv("REDIS_ADDR"); got != "localhost:6380" {
		t.Fatalf("unexpected REDIS_ADDR=%q", got)
	}
	if got := os.Getenv("OPS_PORT"); got != "8091" {
		t.Fatalf("quotes must be stripped, got %q", got)
	}
}

func TestLoadEnvFileOpenError(t *testing.T) {
	if err := LoadEnvFile(t.TempDir()); err == nil {
		t.Fatal("expected error when path is a directory")
	}
}
