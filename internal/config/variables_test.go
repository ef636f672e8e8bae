package config

import (
	"reflect"
	"testing"
)

func TestSubstitute(t *testing.T) {
	vars := map[string]string{
		"database_url": "mssql://backend/db",
		"output_path":  "/mnt/high_privacy/repo-master-full",
	}

	tests := []struct {
		in   string
		want string
	}{
		{"--database-url={database_url}", "--database-url=mssql://backend/db"},
		{"{output_path}:{output_path}", "/mnt/high_privacy/repo-master-full:/mnt/high_privacy/repo-master-full"},
		{"no placeholders", "no placeholders"},
		{"{unknown}", "{unknown}"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Substitute(tt.in, vars); got != tt.want {
			t.Errorf("Substitute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindUnresolved(t *testing.T) {
	got := FindUnresolved("a {x} b {y} c")
	if !reflect.DeepEqual(got, []string{"{x}", "{y}"}) {
		t.Errorf("FindUnresolved = %v", got)
	}

	if got := FindUnresolved("nothing here"); got != nil {
		t.Errorf("FindUnresolved = %v, want nil", got)
	}
}
