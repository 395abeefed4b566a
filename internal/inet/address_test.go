package inet

import "testing"

func TestOrdering(t *testing.T) {
	a, _ := ParseAddress("10.0.0.1")
	b, _ := ParseAddress("10.0.0.2")
	if !a.Less(b) || b.Less(a) {
		t.Fatalf("expected %s < %s", a, b)
	}
}

func TestPrefixAndContains(t *testing.T) {
	prefix, length, err := ParseCIDR("10.0.0.0/24")
	if err != nil {
		t.Fatalf("ParseCIDR: %v", err)
	}
	inside, _ := ParseAddress("10.0.0.129")
	outside, _ := ParseAddress("10.0.1.1")
	if !Contains(prefix, length, inside) {
		t.Fatalf("expected %s to be in %s", inside, CIDR(prefix, length))
	}
	if Contains(prefix, length, outside) {
		t.Fatalf("expected %s to not be in %s", outside, CIDR(prefix, length))
	}
}

func TestContainsBlock(t *testing.T) {
	outerPrefix, outerLen, _ := ParseCIDR("10.0.0.0/23")
	innerPrefix, innerLen, _ := ParseCIDR("10.0.0.0/24")
	if !ContainsBlock(outerPrefix, outerLen, innerPrefix, innerLen) {
		t.Fatalf("expected /23 to contain /24")
	}
	if ContainsBlock(innerPrefix, innerLen, outerPrefix, outerLen) {
		t.Fatalf("did not expect /24 to contain /23")
	}
	if !StrictlyContains(outerPrefix, outerLen, innerPrefix, innerLen) {
		t.Fatalf("expected strict containment")
	}
	if StrictlyContains(outerPrefix, outerLen, outerPrefix, outerLen) {
		t.Fatalf("a block should not strictly contain itself")
	}
}

func TestZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatalf("Zero should report IsZero")
	}
	a, _ := ParseAddress("1.2.3.4")
	if a.IsZero() {
		t.Fatalf("non-zero address reported as zero")
	}
}
