package auth

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator([]Key{
		{Admin: "alice", Secret: "k-alice", Enabled: true},
		{Admin: "bob", Secret: "k-bob", Enabled: false},
		{Admin: "nobody", Secret: "", Enabled: true},
	})

	tests := []struct {
		name      string
		secret    string
		wantAdmin string
		wantErr   error
	}{
		{name: "valid key", secret: "k-alice", wantAdmin: "alice"},
		{name: "disabled key", secret: "k-bob", wantErr: ErrKeyDisabled},
		{name: "unknown key", secret: "k-mallory", wantErr: ErrInvalidKey},
		{name: "empty key", secret: "", wantErr: ErrMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := v.Validate(tt.secret)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if key.Admin != tt.wantAdmin {
				t.Errorf("Admin = %q, want %q", key.Admin, tt.wantAdmin)
			}
		})
	}

	if got := v.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestValidator_AddRemove(t *testing.T) {
	v := NewValidator(nil)

	v.Add(Key{Admin: "carol", Secret: "k-carol", Enabled: true})
	if _, err := v.Validate("k-carol"); err != nil {
		t.Fatalf("Validate() after Add error = %v", err)
	}

	v.Add(Key{Admin: "carol", Secret: "k-carol", Enabled: false})
	if _, err := v.Validate("k-carol"); !errors.Is(err, ErrKeyDisabled) {
		t.Errorf("Validate() after replace error = %v, want %v", err, ErrKeyDisabled)
	}

	v.Remove("k-carol")
	if _, err := v.Validate("k-carol"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Validate() after Remove error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestValidator_Admins(t *testing.T) {
	v := NewValidator([]Key{
		{Admin: "zoe", Secret: "1", Enabled: true},
		{Admin: "alice", Secret: "2", Enabled: true},
		{Admin: "alice", Secret: "3", Enabled: true},
		{Admin: "bob", Secret: "4", Enabled: false},
	})

	want := []string{"alice", "zoe"}
	if got := v.Admins(); !reflect.DeepEqual(got, want) {
		t.Errorf("Admins() = %v, want %v", got, want)
	}
}

func BenchmarkValidator_Validate(b *testing.B) {
	v := NewValidator([]Key{{Admin: "alice", Secret: "k-alice", Enabled: true}})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = v.Validate("k-alice")
	}
}
