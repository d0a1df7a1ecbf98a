package main

import "testing"

func TestInputTypeFromPath(t *testing.T) {
	cases := map[string]string{
		"a/INV1.PDF":   "pdf",
		"inv.htm":      "html",
		"inv.html":     "html",
		"mail.eml":     "eml",
		"notes.txt":    "text",
		"no-extension": "text",
	}
	for in, want := range cases {
		if got := inputTypeFromPath(in); got != want {
			t.Fatalf("inputTypeFromPath(%q)=%q want %q", in, got, want)
		}
	}
}

func TestReadOptional(t *testing.T) {
	blob, err := readOptional("")
	if err != nil || blob != nil {
		t.Fatalf("blob=%v err=%v", blob, err)
	}
	if _, err := readOptional("does/not/exist.xlsx"); err == nil {
		t.Fatal("expected error")
	}
}
