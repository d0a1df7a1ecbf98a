package util

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "stopwords and short words", input: "The Box of Toys for a Kid", want: []string{"box", "toys", "kid"}},
		{name: "rrp annotation", input: "Garden Hose RRP £25 Green", want: []string{"garden", "hose", "green"}},
		{name: "punctuation", input: "Men's T-Shirt (Large)", want: []string{"men", "shirt", "large"}},
		{name: "empty", input: "  ", want: nil},
		{name: "only stopwords", input: "with the and", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestNormalizeHeaderKey(t *testing.T) {
	for _, in := range []string{"Category ID", "CategoryID", "categoryId", "category_id"} {
		if got := NormalizeHeaderKey(in); got != "categoryid" {
			t.Fatalf("%q -> %q", in, got)
		}
	}
}
