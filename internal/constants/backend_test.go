package constants

import "testing"

func TestBackend_Valid(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		want    bool
	}{
		{name: "memory is valid", backend: BackendMemory, want: true},
		{name: "file is valid", backend: BackendFile, want: true},
		{name: "sqlite is valid", backend: BackendSQLite, want: true},
		{name: "empty string is invalid", backend: Backend(""), want: false},
		{name: "arbitrary string is invalid", backend: Backend("postgres"), want: false},
		{name: "FILE uppercase is invalid", backend: Backend("FILE"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backend.Valid(); got != tt.want {
				t.Errorf("Backend.Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackend_String(t *testing.T) {
	if got := BackendSQLite.String(); got != "sqlite" {
		t.Errorf("Backend.String() = %v, want sqlite", got)
	}
}

func TestRangesAreOrdered(t *testing.T) {
	if !(MinModulation < StableMin && StableMin < NeutralLambda && NeutralLambda < StableMax && StableMax < MaxModulation) {
		t.Errorf("expected MinModulation < StableMin < 1.0 < StableMax < MaxModulation")
	}
}
