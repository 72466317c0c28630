package handler

import (
	"encoding/json"
	"testing"
)

func TestQuantity_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    quantity
		wantErr bool
	}{
		{`5`, 5, false},
		{`"5"`, 5, false},
		{`" 12 "`, 12, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"-3"`, -3, false},
		{`"five"`, 0, true},
		{`1.5`, 0, true},
		{`"9223372036854775808"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		var q quantity
		err := json.Unmarshal([]byte(tt.in), &q)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: unexpected error state: %v", tt.in, err)
			continue
		}
		if !tt.wantErr && q != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.in, tt.want, q)
		}
	}
}

func TestRefID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    refID
		wantErr bool
	}{
		{`"rifle"`, "rifle", false},
		{`" alpha "`, "alpha", false},
		{`7`, "7", false},
		{`0`, "", false},
		{`null`, "", false},
		{`7.5`, "", true},
		{`{}`, "", true},
	}
	for _, tt := range tests {
		var id refID
		err := json.Unmarshal([]byte(tt.in), &id)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: unexpected error state: %v", tt.in, err)
			continue
		}
		if !tt.wantErr && id != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.in, tt.want, id)
		}
	}
}
