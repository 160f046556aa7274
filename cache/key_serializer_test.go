package cache

import (
	"strings"
	"testing"
)

type collection string

type criteria struct {
	Limit int    `json:"limit"`
	Order string `json:"order"`
}

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func TestDefaultKeySerializer_BasicTypes(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{
			name:   "no args",
			method: "ReadAll",
			args:   []any{},
			want:   "ReadAll",
		},
		{
			name:   "single int",
			method: "Leaderboard",
			args:   []any{100},
			want:   joinWithSeparator("Leaderboard", "100"),
		},
		{
			name:   "multiple basic types",
			method: "Get",
			args:   []any{1, "hello", true, 3.14},
			want:   joinWithSeparator("Get", "1", "hello", "true", "3.14"),
		},
		{
			name:   "named string type",
			method: "ReadAll",
			args:   []any{collection("fans")},
			want:   joinWithSeparator("ReadAll", "fans"),
		},
		{
			name:   "nil arg",
			method: "Get",
			args:   []any{nil},
			want:   joinWithSeparator("Get", "nil"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.method, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Collections(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	got := serializer.SerializeKey("Find", []string{"b", "a"})
	if want := joinWithSeparator("Find", "slice[2]:{b,a}"); got != want {
		t.Errorf("slice key = %q, want %q", got, want)
	}

	m1 := serializer.SerializeKey("Find", map[string]string{"state": "Lagos", "sort": "desc"})
	m2 := serializer.SerializeKey("Find", map[string]string{"sort": "desc", "state": "Lagos"})
	if m1 != m2 {
		t.Errorf("map keys not deterministic: %q vs %q", m1, m2)
	}
	if want := joinWithSeparator("Find", "map[2]:{sort=desc,state=Lagos}"); m1 != want {
		t.Errorf("map key = %q, want %q", m1, want)
	}
}

func TestDefaultKeySerializer_StructFallsBackToJSON(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	got := serializer.SerializeKey("Find", criteria{Limit: 5, Order: "desc"})
	want := joinWithSeparator("Find", `json:{"limit":5,"order":"desc"}`)
	if got != want {
		t.Errorf("SerializeKey() = %q, want %q", got, want)
	}
}

func TestDefaultKeySerializer_UnmarshalableValue(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	got := serializer.SerializeKey("Find", make(chan int))
	if want := joinWithSeparator("Find", "fallback:chan int"); got != want {
		t.Errorf("SerializeKey() = %q, want %q", got, want)
	}
}
