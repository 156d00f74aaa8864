package board

import "testing"

func TestMatchKeyNormalizesCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	want := MatchKey("Penn State", "Illinois")
	got := MatchKey("penn state", "  ILLINOIS ")
	if got != want {
		t.Fatalf("expected equal keys, got %q and %q", want, got)
	}
	if want != "penn state@illinois" {
		t.Fatalf("unexpected key %q", want)
	}
}

func TestMatchKeyCollapsesInternalWhitespace(t *testing.T) {
	t.Parallel()

	if got := MatchKey("Texas   A&M", "Ole\tMiss"); got != "texas a&m@ole miss" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestMatchKeyIsOrderSensitive(t *testing.T) {
	t.Parallel()

	if MatchKey("Texas", "Iowa State") == MatchKey("Iowa State", "Texas") {
		t.Fatal("home and away must not be interchangeable")
	}
}

func TestEventIDIncludesLeague(t *testing.T) {
	t.Parallel()

	if got := EventID("cfb", "Penn State", "Illinois"); got != "cfb:penn state@illinois" {
		t.Fatalf("unexpected id %q", got)
	}
}
