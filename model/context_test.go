package model

import (
	"context"
	"testing"
)

func TestRequestContext_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rc      *RequestContext
		wantErr bool
	}{
		{
			name:    "valid context",
			rc:      &RequestContext{SubjectID: "user-1"},
			wantErr: false,
		},
		{
			name:    "missing SubjectID",
			rc:      &RequestContext{Email: "a@example.com"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestContext_HasRole(t *testing.T) {
	rc := &RequestContext{Roles: []string{"admin", "reporter"}}
	if !rc.HasRole("admin") {
		t.Error("HasRole(admin) = false, want true")
	}
	if rc.HasRole("auditor") {
		t.Error("HasRole(auditor) = true, want false")
	}
}

func TestRequestContext_roundTrip(t *testing.T) {
	rc := &RequestContext{SubjectID: "user-1"}
	ctx := WithRequestContext(context.Background(), rc)
	if got := RequestContextFrom(ctx); got != rc {
		t.Errorf("RequestContextFrom() = %v, want %v", got, rc)
	}
	if RequestContextFrom(context.Background()) != nil {
		t.Error("RequestContextFrom(empty) should be nil")
	}
}
