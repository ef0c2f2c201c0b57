package util

import "testing"

func TestCleanTextRemovesControlsAndCollapsesWhitespace(t *testing.T) {
	in := "ab\x00cd\x01\x02  \n\t xy"
	out := CleanText(in)
	if out != "abcd xy" {
		t.Fatalf("unexpected cleaned output: %q", out)
	}
}

func TestCleanTextNormalizesTypography(t *testing.T) {
	in := "“grace” period – it’s thirty days"
	out := CleanText(in)
	if out != `"grace" period - it's thirty days` {
		t.Fatalf("unexpected cleaned output: %q", out)
	}
}

func TestSnippetClipsLongText(t *testing.T) {
	out := Snippet("abcdefghij", 4)
	if out != "abcd..." {
		t.Fatalf("unexpected snippet: %q", out)
	}
}
