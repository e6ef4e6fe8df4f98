package script

import "testing"

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"keyword", `(intersects a b :workers 4)`, `(intersects a b "__kw_workers" 4)`},
		{"keyword in string", `"thing with :keyword inside"`, `"thing with :keyword inside"`},
		{"escaped quote in string", `"a \" :b" :c`, `"a \" :b" "__kw_c"`},
		{"backtick string", "`covered-by :x`", "`covered-by :x`"},
		{"assignment", `(def x := 10)`, `(def x := 10)`},
		{"kebab-case identifier", `(covered-by a b)`, `(covered_by a b)`},
		{"kebab-case keyword", `:min-partition`, `"__kw_min_partition"`},
		{"minus operator", `(- 10 5)`, `(- 10 5)`},
		{"negative number", `(+ x -5)`, `(+ x -5)`},
		{"double semicolon", `;; comment with :keyword`, `// comment with :keyword`},
		{"single semicolon", "; note\n(none)", "// note\n(none)"},
		{"unterminated string", `"abc`, `"abc`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.input); got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}
