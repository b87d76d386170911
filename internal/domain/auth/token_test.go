package auth

import (
	"strings"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "super-secret"); err != nil {
		t.Fatalf("expected password to match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	claims := Claims{UserID: "u1", RoleID: "r1", RoleName: RoleHR, SessionID: "s1"}
	token, err := GenerateToken("test-secret", claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	parsed, err := ParseToken("test-secret", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if parsed.UserID != "u1" || parsed.RoleID != "r1" || parsed.RoleName != RoleHR || parsed.SessionID != "s1" {
		t.Fatalf("claims mismatch: %+v", parsed)
	}
	if _, err := ParseToken("other-secret", token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("test-secret", Claims{UserID: "u1"}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("test-secret", token); err == nil {
		t.Fatal("expected expired token error")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid password", password: "Stronger123"},
		{name: "too short", password: "S1hort", wantErr: true},
		{name: "missing uppercase", password: "longpassword1", wantErr: true},
		{name: "missing lowercase", password: "LONGPASSWORD1", wantErr: true},
		{name: "missing number", password: "LongPassword", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestBuildResetLink(t *testing.T) {
	tests := []struct {
		baseURL string
		token   string
		want    string
	}{
		{baseURL: "", token: "abc", want: "http://localhost:8080/reset?token=abc"},
		{baseURL: "https://hr.example.com/", token: "t1", want: "https://hr.example.com/reset?token=t1"},
		{baseURL: "https://hr.example.com/app", token: "a b", want: "https://hr.example.com/app/reset?token=a+b"},
	}
	for _, tc := range tests {
		if got := BuildResetLink(tc.baseURL, tc.token); got != tc.want {
			t.Fatalf("BuildResetLink(%q) = %q, want %q", tc.baseURL, got, tc.want)
		}
	}
}

func TestBuildResetEmailBody(t *testing.T) {
	body := BuildResetEmailBody("https://hr.example.com/reset?token=x", 2*time.Hour)
	if !strings.Contains(body, "expires in 2 hour(s)") || !strings.Contains(body, "token=x") {
		t.Fatalf("unexpected body: %q", body)
	}
}
