package domain

import "testing"

func TestParseChannel(t *testing.T) {
	cases := map[string]struct {
		want Channel
		ok   bool
	}{
		"whatsapp":    {ChannelWhatsApp, true},
		" Instagram ": {ChannelInstagram, true},
		"MESSENGER":   {ChannelMessenger, true},
		"sms":         {"sms", false},
		"":            {"", false},
	}
	for raw, tc := range cases {
		got, ok := ParseChannel(raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseChannel(%q) = %q, %v; want %q, %v", raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	if got := NormalizeIdentifier("  Ana.Gomez_IG \n"); got != "ana.gomez_ig" {
		t.Fatalf("got %q", got)
	}
}

func TestIdentifierColumnCoversChannels(t *testing.T) {
	for _, ch := range SupportedChannels() {
		if ch.IdentifierColumn() == "" {
			t.Fatalf("channel %s has no identifier column", ch)
		}
	}
	if Channel("sms").IdentifierColumn() != "" {
		t.Fatal("unknown channel must not map to a column")
	}
}
