package jsonpath

import (
	"testing"
)

const idResponse = `{"ret":0,"msg":"succ","biztag":"test","id":42,"data":{"ids":[7,8,9],"meta":null},"tags":[{"name":"a"},{"name":"b"}]}`

func TestConvertToGjsonPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"$", "@this"},
		{"$.msg", "msg"},
		{"msg", "msg"},
		{"$.data.ids[1]", "data.ids.1"},
		{"$[0]", "0"},
		{"$['data']['ids'][0]", "data.ids.0"},
		{`$["tags"][1].name`, "tags.1.name"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := convertToGjsonPath(tt.path); got != tt.want {
				t.Errorf("convertToGjsonPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPath_Lookup(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"$.msg", "succ", true},
		{"$.ret", "0", true},
		{"$.id", "42", true},
		{"$.data.ids[2]", "9", true},
		{"$.tags[1].name", "b", true},
		{"$.data.meta", "null", true},
		{"$.data.ids", "[7,8,9]", true},
		{"$.missing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p := MustCompile(tt.path)
			got, ok := p.Lookup([]byte(idResponse))
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Lookup(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPath_LookupInvalidBody(t *testing.T) {
	p := MustCompile("$.msg")

	if _, ok := p.Lookup([]byte("succ")); ok {
		t.Error("Lookup on non-JSON body should fail")
	}
	if _, ok := p.Lookup(nil); ok {
		t.Error("Lookup on empty body should fail")
	}
}

func TestCompile_Empty(t *testing.T) {
	if _, err := Compile("  "); err == nil {
		t.Error("Compile(\"\") should fail")
	}
}

func TestExtract(t *testing.T) {
	got, err := Extract(idResponse, "$.biztag")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "test" {
		t.Errorf("Extract() = %q, want %q", got, "test")
	}

	if _, err := Extract(idResponse, "$.nope"); err == nil {
		t.Error("Extract() of missing path should fail")
	}
	if _, err := Extract("", "$.msg"); err == nil {
		t.Error("Extract() of empty JSON should fail")
	}
}
