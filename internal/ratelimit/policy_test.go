package ratelimit

import "testing"

func TestPolicyFor_Total(t *testing.T) {
	for _, op := range Operations() {
		for _, tier := range []Tier{TierFree, TierPro, TierScholar} {
			p := PolicyFor(op, tier)

			if p.Limit < 0 {
				t.Errorf("%s/%s: negative limit %d", op, tier, p.Limit)
			}
			if p.Window <= 0 {
				t.Errorf("%s/%s: non-positive window %v", op, tier, p.Window)
			}
		}
	}
}

func TestPolicyFor_MonotonicAcrossTiers(t *testing.T) {
	for _, op := range []Operation{OpAI, OpTTSDownload} {
		free := PolicyFor(op, TierFree)
		pro := PolicyFor(op, TierPro)
		scholar := PolicyFor(op, TierScholar)

		if pro.Limit <= free.Limit {
			t.Errorf("%s: PRO limit %d not above FREE limit %d", op, pro.Limit, free.Limit)
		}
		if scholar.Limit <= pro.Limit {
			t.Errorf("%s: SCHOLAR limit %d not above PRO limit %d", op, scholar.Limit, pro.Limit)
		}
	}
}

func TestPolicyFor_DailyOnlyForAI(t *testing.T) {
	for _, op := range Operations() {
		for _, tier := range []Tier{TierFree, TierPro, TierScholar} {
			p := PolicyFor(op, tier)

			if p.Daily != (op == OpAI) {
				t.Errorf("%s/%s: unexpected daily flag %v", op, tier, p.Daily)
			}
		}
	}
}

func TestPolicyFor_ZeroLimitTTSDownloadFree(t *testing.T) {
	p := PolicyFor(OpTTSDownload, TierFree)
	if p.Limit != 0 {
		t.Fatalf("expected limit 0, got %d", p.Limit)
	}
}

func TestPolicyFor_UnknownInputsFallBack(t *testing.T) {
	got := PolicyFor(Operation("mystery"), TierPro)
	want := PolicyFor(OpAPI, TierPro)
	if got != want {
		t.Errorf("unknown operation: got %+v, want api policy %+v", got, want)
	}

	got = PolicyFor(OpTTS, Tier("platinum"))
	want = PolicyFor(OpTTS, TierFree)
	if got != want {
		t.Errorf("unknown tier: got %+v, want FREE policy %+v", got, want)
	}
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations() {
		parsed, err := ParseOperation(string(op))
		if err != nil {
			t.Fatalf("ParseOperation(%q): %v", op, err)
		}
		if parsed != op {
			t.Fatalf("ParseOperation(%q) = %q", op, parsed)
		}
	}

	if _, err := ParseOperation("download"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestParseTier(t *testing.T) {
	if _, err := ParseTier("PRO"); err != nil {
		t.Fatalf("ParseTier(PRO): %v", err)
	}

	if _, err := ParseTier("pro"); err == nil {
		t.Fatal("expected error for lowercase tier")
	}
}
