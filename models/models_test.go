package models

import (
	"encoding/json"
	"testing"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{`7`, 7, false},
		{`"42"`, 42, false},
		{`"9007199254740993"`, 9007199254740993, false},
		{`"abc"`, 0, true},
		{`1.5`, 0, true},
		{`null`, 0, true},
	}
	for _, tt := range tests {
		var id ID
		err := json.Unmarshal([]byte(tt.in), &id)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && id != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, id, tt.want)
		}
	}
}

func TestTagInputs(t *testing.T) {
	var in NoteInput
	if err := json.Unmarshal([]byte(`{"title":"T","content":"C","tags":[{"id":"3"},{"id":4}]}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ids := TagIDs(in.Tags)
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 4 {
		t.Errorf("TagIDs = %v", ids)
	}

	if _, err := ParseID("12x"); err == nil {
		t.Error("ParseID accepted a non-numeric id")
	}
}
