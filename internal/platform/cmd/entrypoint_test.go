package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfgRef.Address)
	}
	if cfgRef.Mode != "env-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected parse config to reject nil target")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(nil, "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(nil, ServiceGame, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryRunsLoopWhenTracingDisabled(t *testing.T) {
	t.Setenv("DELVING_SPACE_OTEL_ENDPOINT", "")

	called := false
	err := RunWithTelemetry(context.Background(), ServiceGame, func(ctx context.Context) error {
		called = ctx != nil
		return nil
	})
	if err != nil {
		t.Fatalf("run with telemetry: %v", err)
	}
	if !called {
		t.Fatal("expected run function to be called with a context")
	}
}

func TestRunWithTelemetryReturnsLoopError(t *testing.T) {
	t.Setenv("DELVING_SPACE_OTEL_ENDPOINT", "")

	want := errors.New("loop failed")
	err := RunWithTelemetry(context.Background(), ServiceContentCheck, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("run with telemetry = %v, want %v", err, want)
	}
}

func TestRunWithTelemetryRejectsBadTelemetrySettings(t *testing.T) {
	t.Setenv("DELVING_SPACE_OTEL_ENABLED", "maybe")

	called := false
	err := RunWithTelemetry(context.Background(), ServiceGame, func(context.Context) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("run with telemetry = %v, called = %v; want error before the loop", err, called)
	}
}
