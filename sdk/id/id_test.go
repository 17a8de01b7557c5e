package id

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	// 24 random bytes base64url-encode to 32 characters
	const encodedLen = 32
	type args struct {
		prefix string
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
		wantLen int
	}{
		{
			name: "valid",
			args: args{
				prefix: "id",
			},
			wantErr: false,
			wantLen: encodedLen + len("id_"),
		},
		{
			name: "no-prefix",
			args: args{
				prefix: "",
			},
			wantErr: false,
			wantLen: encodedLen,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.args.prefix)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.args.prefix != "" && !strings.HasPrefix(got, tt.args.prefix+"_") {
				t.Errorf("New() = %v, wanted it to start with %v", got, tt.args.prefix)
			}
			if len(got) != tt.wantLen {
				t.Errorf("New() = %v, with len of %d and wanted len of %v", got, len(got), tt.wantLen)
			}
		})
	}
}

func TestNew_unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		got, err := New("")
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if seen[got] {
			t.Fatalf("New() produced a duplicate id: %s", got)
		}
		seen[got] = true
	}
}
