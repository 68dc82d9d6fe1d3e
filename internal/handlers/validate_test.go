package handlers

import (
	"strings"
	"testing"
)

func TestSignupFormValidate(t *testing.T) {
	tests := []struct {
		name string
		form signupForm
		want map[string]string
	}{
		{"valid", signupForm{Email: "a@test.local", Password: "12345678"}, nil},
		{"valid with name", signupForm{Email: "a@test.local", Password: "12345678", DisplayName: "Ana"}, nil},
		{"missing email", signupForm{Password: "12345678"}, map[string]string{"email": "Email is required."}},
		{"bad email", signupForm{Email: "nope", Password: "12345678"}, map[string]string{"email": "Please enter a valid email address."}},
		{"short password", signupForm{Email: "a@test.local", Password: "1234567"}, map[string]string{"password": "Password must be at least 8 characters."}},
		{"long password", signupForm{Email: "a@test.local", Password: strings.Repeat("p", 73)}, map[string]string{"password": "Password is too long (max 72 characters)."}},
		{"long name", signupForm{Email: "a@test.local", Password: "12345678", DisplayName: strings.Repeat("n", 101)}, map[string]string{"displayName": "Name is too long (max 100 characters)."}},
		{"everything missing", signupForm{}, map[string]string{"email": "Email is required.", "password": "Password is required."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.form.validate()
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for field, msg := range tt.want {
				if got[field] != msg {
					t.Errorf("%s: got %q, want %q", field, got[field], msg)
				}
			}
		})
	}
}
