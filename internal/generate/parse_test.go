package generate

import (
	"errors"
	"testing"
)

func TestParseScenarios(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxTests int
		want     int
		wantErr  bool
	}{
		{
			name:  "clean JSON",
			input: `{"scenarios":[{"title":"Validate login","steps":"Given a\nWhen b\nThen c"}]}`,
			want:  1,
		},
		{
			name:  "markdown wrapped",
			input: "```json\n" + `{"scenarios":[{"title":"Validate login","steps":"Given a"}]}` + "\n```",
			want:  1,
		},
		{
			name:  "prose around the object",
			input: `Here are your tests: {"scenarios":[{"title":"Validate login","steps":"Given a"}]} hope it helps`,
			want:  1,
		},
		{
			name:  "steps as list",
			input: `{"scenarios":[{"title":"Validate login","steps":["Given a","When b","Then c"]}]}`,
			want:  1,
		},
		{
			name:     "cap applies",
			input:    `{"scenarios":[{"title":"A","steps":"s"},{"title":"B","steps":"s"},{"title":"C","steps":"s"}]}`,
			maxTests: 2,
			want:     2,
		},
		{
			name:  "entries without title or steps are dropped",
			input: `{"scenarios":[{"title":"","steps":"s"},{"title":"Keep","steps":"s"},{"title":"NoSteps"}]}`,
			want:  1,
		},
		{name: "empty response", input: "   ", wantErr: true},
		{name: "not JSON", input: "the model refused", wantErr: true},
		{name: "unclosed object", input: `{"scenarios":[{"title":"x"`, wantErr: true},
		{name: "missing scenarios key", input: `{"cases":[]}`, wantErr: true},
		{name: "scenarios all invalid", input: `{"scenarios":[{"title":"","steps":""}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScenarios(tt.input, tt.maxTests)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScenarios() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Fatalf("expected *ParseError, got %T", err)
				}
				return
			}
			if len(got) != tt.want {
				t.Errorf("got %d scenarios, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseScenariosJoinsStepLists(t *testing.T) {
	got, err := ParseScenarios(`{"scenarios":[{"title":"Validate x","steps":["Given a","Then b"]}]}`, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Steps != "Given a\nThen b" {
		t.Errorf("steps = %q", got[0].Steps)
	}
}

func TestParseErrorTruncatesRaw(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	_, err := ParseScenarios(string(long), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > 300 {
		t.Errorf("error message not truncated: %d chars", len(err.Error()))
	}
}
