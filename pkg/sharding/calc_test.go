package sharding_test

import (
	"testing"

	"github.com/shardkit/proxy/pkg/sharding"
	"github.com/shardkit/proxy/pkg/sqlast"
)

func TestCalcModInRange(t *testing.T) {
	cases := []string{"0", "1", "4", "7", "12", "99"}
	for _, n := range []int{1, 2, 3, 4, 8} {
		for _, raw := range cases {
			idx, err := sharding.Calc(raw, sqlast.LiteralUnsigned, sharding.Mod, n)
			if err != nil {
				t.Fatalf("Calc(%s, Mod, %d): %v", raw, n, err)
			}
			if idx < 0 || idx >= n {
				t.Errorf("Calc(%s, Mod, %d) = %d, want in [0,%d)", raw, n, idx, n)
			}
		}
	}
}

func TestCalcCRC32ModDeterministic(t *testing.T) {
	a, err := sharding.Calc("42", sqlast.LiteralUnsigned, sharding.CRC32Mod, 4)
	if err != nil {
		t.Fatalf("Calc: %v", err)
	}
	b, err := sharding.Calc("42", sqlast.LiteralUnsigned, sharding.CRC32Mod, 4)
	if err != nil {
		t.Fatalf("Calc: %v", err)
	}
	if a != b {
		t.Errorf("CRC32Mod not deterministic: %d != %d", a, b)
	}
	if a < 0 || a >= 4 {
		t.Errorf("CRC32Mod result %d out of range [0,4)", a)
	}
}

func TestCalcModZeroShardsFails(t *testing.T) {
	_, err := sharding.Calc("3", sqlast.LiteralUnsigned, sharding.Mod, 0)
	if err == nil {
		t.Fatal("expected CalcMod error for n = 0")
	}
}

func TestCalcModUnparseableFails(t *testing.T) {
	_, err := sharding.Calc("not-a-number", sqlast.LiteralUnsigned, sharding.Mod, 4)
	if err == nil {
		t.Fatal("expected ParseInt error for unparseable literal")
	}
}

func TestCalcSignedNegativeReducedToUnsigned(t *testing.T) {
	idx, err := sharding.Calc("-3", sqlast.LiteralSigned, sharding.Mod, 4)
	if err != nil {
		t.Fatalf("Calc: %v", err)
	}
	if idx < 0 || idx >= 4 {
		t.Errorf("Calc(-3, Mod, 4) = %d, want in [0,4)", idx)
	}
}

func TestCalcFloatRoundsNearestEven(t *testing.T) {
	idx, err := sharding.Calc("10.5", sqlast.LiteralFloat, sharding.Mod, 4)
	if err != nil {
		t.Fatalf("Calc: %v", err)
	}
	// 10.5 mod 4 = 2.5, rounds to nearest even -> 2
	if idx != 2 {
		t.Errorf("Calc(10.5, Mod, 4) = %d, want 2", idx)
	}
}
