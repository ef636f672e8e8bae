package secrets

import (
	"context"
	"os"
	"testing"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("QUEUE_USER", "runner")
	t.Setenv("QUEUE_PASS", "hunter2")

	creds, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.User != "runner" || creds.Pass != "hunter2" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestFromEnv_Unset(t *testing.T) {
	t.Setenv("QUEUE_USER", "runner")
	// Setenv registers the restore; Unsetenv makes the variable truly
	// absent rather than empty.
	t.Setenv("QUEUE_PASS", "placeholder")
	os.Unsetenv("QUEUE_PASS")

	if _, err := FromEnv(); err == nil {
		t.Error("expected error when QUEUE_PASS is unset")
	}
}

func TestLookup_EnvFallback(t *testing.T) {
	t.Setenv("QUEUE_USER", "runner")
	t.Setenv("QUEUE_PASS", "hunter2")

	creds, err := Lookup(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.User != "runner" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestExtractCredentials(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]interface{}
		want    Credentials
		wantErr bool
	}{
		{
			name: "kv v1 shape",
			data: map[string]interface{}{"user": "u", "pass": "p"},
			want: Credentials{User: "u", Pass: "p"},
		},
		{
			name: "kv v2 envelope",
			data: map[string]interface{}{
				"data":     map[string]interface{}{"user": "u", "pass": "p"},
				"metadata": map[string]interface{}{"version": 3},
			},
			want: Credentials{User: "u", Pass: "p"},
		},
		{
			name:    "missing keys",
			data:    map[string]interface{}{"username": "u"},
			wantErr: true,
		},
		{
			name:    "wrong types",
			data:    map[string]interface{}{"user": 1, "pass": 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractCredentials(tt.data, "kv/data/runner/queue")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
