package ubx

import "testing"

func TestIdentityOf_RegisteredSet(t *testing.T) {
	cases := []struct {
		class, id byte
		want      Identity
	}{
		{0x01, 0x02, NAVPOSLLH},
		{0x01, 0x07, NAVPVT},
		{0x01, 0x12, NAVVELNED},
		{0x01, 0x30, NAVSVINFO},
		{0x01, 0x06, NAVSOL},
		{0x01, 0x04, NAVDOP},
		{0x06, 0x01, CFGMSG},
		{0x06, 0x02, CFGINF},
		{0x06, 0x00, CFGPRT},
		{0x06, 0x1B, CFGUSB},
		{0x05, 0x01, ACKACK},
		{0xF0, 0x00, "GGA"},
	}
	for _, c := range cases {
		got, ok := IdentityOf(c.class, c.id)
		if !ok || got != c.want {
			t.Fatalf("IdentityOf(0x%02X, 0x%02X) = %q, %v; want %q", c.class, c.id, got, ok, c.want)
		}
	}

	if _, ok := IdentityOf(0x0B, 0x50); ok {
		t.Fatalf("expected 0x0B/0x50 to be unregistered")
	}
}

func TestFixLabel(t *testing.T) {
	if got := FixLabel(3); got != "3D" {
		t.Fatalf("FixLabel(3) = %q", got)
	}
	if got := FixLabel(0); got != "NO FIX" {
		t.Fatalf("FixLabel(0) = %q", got)
	}
	if got := FixLabel(4); got != "GPS+DR" {
		t.Fatalf("FixLabel(4) = %q", got)
	}
	if got := FixLabel(99); got != "NO FIX" {
		t.Fatalf("FixLabel(99) = %q", got)
	}
}

func TestITOWToUTC(t *testing.T) {
	// 104 400 000 ms into the week is Tue 05:00:00 GPS time; minus the
	// 18 s leap offset that is 04:59:42 UTC.
	if got := ITOWToUTC(104400000); got != "04:59:42" {
		t.Fatalf("ITOWToUTC = %q, want 04:59:42", got)
	}
	// Leap offset wraps backwards across midnight.
	if got := ITOWToUTC(5000); got != "23:59:47" {
		t.Fatalf("ITOWToUTC = %q, want 23:59:47", got)
	}
}

func TestConfigMessages_CopyAndUnique(t *testing.T) {
	a := ConfigMessages()
	b := ConfigMessages()
	if len(a) == 0 {
		t.Fatalf("empty catalog")
	}
	a[0].Class = 0xEE
	if b[0].Class == 0xEE {
		t.Fatalf("ConfigMessages must return a copy")
	}

	seen := map[[2]byte]bool{}
	for _, e := range b {
		k := [2]byte{e.Class, e.ID}
		if seen[k] {
			t.Fatalf("duplicate catalog entry 0x%02X/0x%02X", e.Class, e.ID)
		}
		seen[k] = true
	}
}
