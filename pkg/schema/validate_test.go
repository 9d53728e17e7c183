package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/operad/pkg/domain"
)

var calendar = Schema{
	"calendar.conflicts": Int(),
	"user":               String(),
	"urgent":             Optional(Bool()),
}

func TestValidate_Success(t *testing.T) {
	vars := domain.Vars{
		"calendar.conflicts": domain.Number(2),
		"user":               domain.String("ana"),
		"extra":              domain.Number(1.5),
	}
	if err := Validate(calendar, vars); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	vars := domain.Vars{
		"calendar.conflicts": domain.Number(1.5),
		"urgent":             domain.String("yes"),
	}
	err := Validate(calendar, vars)
	if err == nil {
		t.Fatal("Validate() should fail")
	}

	errs := ValidationErrors(err)
	if len(errs) != 3 {
		t.Fatalf("Validate() = %d errors, want 3: %v", len(errs), err)
	}
	wantKeys := []string{"calendar.conflicts", "urgent", "user"}
	for i, e := range errs {
		var ve *ValidationError
		if !errors.As(e, &ve) {
			t.Fatalf("error %d is %T", i, e)
		}
		if ve.Key != wantKeys[i] {
			t.Errorf("error %d key = %q, want %q", i, ve.Key, wantKeys[i])
		}
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Error("errors.As should reach the first ValidationError")
	}
	if !strings.HasPrefix(err.Error(), "3 validation errors:") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !strings.Contains(err.Error(), `variable "user": required`) {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidate_EmptySchema(t *testing.T) {
	if err := Validate(nil, domain.Vars{"x": domain.Number(1)}); err != nil {
		t.Errorf("Validate(nil) error = %v", err)
	}
	if err := Validate(Schema{}, nil); err != nil {
		t.Errorf("Validate({}) error = %v", err)
	}
}

func TestValidationError_String(t *testing.T) {
	missing := &ValidationError{Key: "n", Reason: "required"}
	if got := missing.Error(); got != `variable "n": required` {
		t.Errorf("Error() = %q", got)
	}
	wrong := &ValidationError{Key: "n", Reason: "expected int", Value: domain.String("x")}
	if got := wrong.Error(); got != `variable "n": expected int (value "x")` {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidationErrors_NotAggregate(t *testing.T) {
	if ValidationErrors(errors.New("plain")) != nil {
		t.Error("ValidationErrors(plain) should be nil")
	}
}
