package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("error[E0308]: mismatched types\n"))
	b := Sum([]byte("error[E0308]: mismatched types\n"))
	if a != b || len(a) != 64 {
		t.Errorf("sum = %q / %q", a, b)
	}
	if Sum([]byte("warning: x\n")) == a {
		t.Error("different captures should not collide")
	}
}

func TestShort(t *testing.T) {
	if got := Short(nil); got != Sum(nil)[:12] {
		t.Errorf("short = %q", got)
	}
}
