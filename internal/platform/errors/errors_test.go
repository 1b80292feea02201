package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNoActiveRun, "no run for character"))
	if !stderrors.Is(err, New(CodeNoActiveRun, "")) {
		t.Fatal("expected code match through wrap")
	}
	if stderrors.Is(err, New(CodeNotFound, "")) {
		t.Fatal("unexpected match for different code")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: stderrors.New("boom"), want: CodeUnknown},
		{name: "domain", err: New(CodePoolInvalid, "empty"), want: CodePoolInvalid},
		{name: "wrapped", err: fmt.Errorf("x: %w", New(CodeSpamDetected, "slow down")), want: CodeSpamDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Fatalf("CodeOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransientKeepsDomainErrors(t *testing.T) {
	domainErr := New(CodeRunAlreadyActive, "active")
	if got := Transient("commit", domainErr); got != domainErr {
		t.Fatalf("Transient = %v, want original domain error", got)
	}
	if Transient("commit", nil) != nil {
		t.Fatal("expected nil for nil cause")
	}

	backendErr := stderrors.New("database is locked")
	got := Transient("commit", backendErr)
	if CodeOf(got) != CodeTransient {
		t.Fatalf("code = %q, want %q", CodeOf(got), CodeTransient)
	}
	if !stderrors.Is(got, backendErr) {
		t.Fatal("expected cause to be preserved")
	}
	if !CodeOf(got).Retryable() {
		t.Fatal("expected transient code to be retryable")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeInvalidBudget, codes.InvalidArgument},
		{CodeInsufficientEnergy, codes.FailedPrecondition},
		{CodeSpamDetected, codes.ResourceExhausted},
		{CodeRunAlreadyActive, codes.AlreadyExists},
		{CodeNotFound, codes.NotFound},
		{CodeConflict, codes.Aborted},
		{CodePermissionDenied, codes.PermissionDenied},
		{CodeTransient, codes.Unavailable},
		{CodeUnknown, codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Fatalf("%s.GRPCCode() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestGRPCStatusAttachesDetails(t *testing.T) {
	err := fmt.Errorf("start session: %w",
		WithMetadata(CodeCooldownActive, "room cooldown", map[string]string{"RemainingSeconds": "120"}))
	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("expected grpc status through the wrap")
	}
	if st.Code() != codes.ResourceExhausted {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.ResourceExhausted)
	}
	var info *errdetails.ErrorInfo
	for _, detail := range st.Details() {
		if d, ok := detail.(*errdetails.ErrorInfo); ok {
			info = d
		}
	}
	if info == nil {
		t.Fatal("expected ErrorInfo detail")
	}
	if info.Reason != string(CodeCooldownActive) {
		t.Fatalf("reason = %q, want %q", info.Reason, CodeCooldownActive)
	}
	if info.Metadata["RemainingSeconds"] != "120" {
		t.Fatalf("metadata = %v, want RemainingSeconds=120", info.Metadata)
	}
}

func TestLocalizedStatusCarriesMessage(t *testing.T) {
	st := New(CodeNoActiveRun, "no run for character").LocalizedStatus("pt-BR", "Nenhuma masmorra ativa")
	if st.Code() != CodeNoActiveRun.GRPCCode() {
		t.Fatalf("status code = %v, want %v", st.Code(), CodeNoActiveRun.GRPCCode())
	}
	var msg *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		if d, ok := detail.(*errdetails.LocalizedMessage); ok {
			msg = d
		}
	}
	if msg == nil || msg.Locale != "pt-BR" || msg.Message != "Nenhuma masmorra ativa" {
		t.Fatalf("localized detail = %v", msg)
	}
}
