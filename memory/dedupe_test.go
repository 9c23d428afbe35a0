package memory

import (
	"testing"
	"time"
)

func hotItem(key, text string, rank float64) *Item {
	return &Item{Key: key, Tier: TierHot, Kind: KindExchange, Text: text, Score: rank}
}

func warmItem(key, text string, score float64) *Item {
	return &Item{Key: key, Tier: TierWarm, Kind: KindMatch, Text: text, Score: score}
}

func TestDedupeDropsWarmDuplicates(t *testing.T) {
	hot := []*Item{
		hotItem("k1", "newest exchange", 0),
		hotItem("k2", "older exchange", 1),
	}
	warm := []*Item{
		warmItem("k3", "related exchange", 0.9),
		warmItem("k1", "newest exchange again", 0.8), // duplicate of hot k1
	}

	merged := Dedupe(hot, warm)
	if len(merged) != 3 {
		t.Fatalf("merged length = %d, want 3", len(merged))
	}

	seen := make(map[string]int)
	for _, it := range merged {
		seen[it.Key]++
	}
	if seen["k1"] != 1 {
		t.Errorf("key k1 appears %d times, want 1", seen["k1"])
	}

	// The surviving k1 must be the hot instance.
	for _, it := range merged {
		if it.Key == "k1" && it.Tier != TierHot {
			t.Error("warm instance won over the hot one")
		}
	}
}

func TestDedupePreservesTierOrder(t *testing.T) {
	hot := []*Item{hotItem("h1", "a", 0), hotItem("h2", "b", 1)}
	warm := []*Item{warmItem("w1", "c", 0.9), warmItem("w2", "d", 0.5)}

	merged := Dedupe(hot, warm)
	want := []string{"h1", "h2", "w1", "w2"}
	for i, key := range want {
		if merged[i].Key != key {
			t.Fatalf("merged[%d].Key = %q, want %q", i, merged[i].Key, key)
		}
	}
}

func TestDedupeHandlesEmptyTiers(t *testing.T) {
	if got := Dedupe(nil, nil); len(got) != 0 {
		t.Errorf("Dedupe(nil, nil) = %d items", len(got))
	}
	warm := []*Item{warmItem("w1", "c", 0.9)}
	if got := Dedupe(nil, warm); len(got) != 1 {
		t.Errorf("warm-only merge = %d items, want 1", len(got))
	}
}

func TestItemKeyNormalizesReplies(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	original := ItemKey("Bob@Example.com", "Lunch plans", ts)
	reply := ItemKey("bob@example.com", "Re: lunch plans", ts)
	forwarded := ItemKey("BOB@EXAMPLE.COM", "Fwd: Re: Lunch plans", ts)

	if original != reply || original != forwarded {
		t.Errorf("keys differ:\n  %q\n  %q\n  %q", original, reply, forwarded)
	}

	other := ItemKey("bob@example.com", "Lunch plans", ts.Add(time.Hour))
	if original == other {
		t.Error("different timestamps produced the same key")
	}
}
