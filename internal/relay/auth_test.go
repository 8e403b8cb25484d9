package relay

import "testing"

func TestAuthFlagsHasAndAny(t *testing.T) {
	f := AuthAdmin | AuthBot

	if !f.Has(AuthAdmin) {
		t.Error("expected Has(AuthAdmin) true")
	}
	if f.Has(AuthMod) {
		t.Error("expected Has(AuthMod) false")
	}
	if !f.Any(AuthAdmin | AuthMod) {
		t.Error("expected Any(AuthAdmin|AuthMod) true")
	}
	if f.Any(AuthMod | AuthRanked) {
		t.Error("expected Any(AuthMod|AuthRanked) false")
	}
}

func TestMaskStoreFlagsClearsRankedAndBanned(t *testing.T) {
	f := AuthAdmin | AuthRanked | AuthBanned
	masked := MaskStoreFlags(f)

	if masked.Has(AuthRanked) || masked.Has(AuthBanned) {
		t.Errorf("MaskStoreFlags left a store-only bit set: %v", masked)
	}
	if !masked.Has(AuthAdmin) {
		t.Error("MaskStoreFlags cleared a bit it should have kept")
	}
}

func TestLettersOrderAndContent(t *testing.T) {
	cases := []struct {
		flags AuthFlags
		want  string
	}{
		{0, ""},
		{AuthAdmin, "A"},
		{AuthAdmin | AuthMod | AuthRanked | AuthBot | AuthBanned, "AMRBX"},
		{AuthBanned | AuthAdmin, "AX"},
	}
	for _, c := range cases {
		if got := c.flags.Letters(); got != c.want {
			t.Errorf("Letters(%v) = %q, want %q", c.flags, got, c.want)
		}
	}
}
