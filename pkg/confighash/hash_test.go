package confighash

import "testing"

func TestOfIsDeterministic(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"z": 1, "y": 2}}
	b := map[string]interface{}{"c": map[string]interface{}{"y": 2, "z": 1}, "a": 2, "b": 1}

	if Of(a) != Of(b) {
		t.Fatalf("hash of equal maps in different key order should match: %s != %s", Of(a), Of(b))
	}
}

func TestOfLength(t *testing.T) {
	got := Of(map[string]interface{}{"a": 1})
	if len(got) != tagLength {
		t.Fatalf("expected %d hex chars, got %d (%s)", tagLength, len(got), got)
	}
}

func TestOfDiffersOnContent(t *testing.T) {
	a := Of(map[string]interface{}{"a": 1})
	b := Of(map[string]interface{}{"a": 2})
	if a == b {
		t.Fatalf("expected different hashes for different content")
	}
}

func TestOfCombinesMultipleValuesOrderSensitively(t *testing.T) {
	launch := map[string]interface{}{"instance_type": "m5.large"}
	auth := map[string]interface{}{"ssh_user": "ubuntu"}

	combined := Of(launch, auth)
	reversed := Of(auth, launch)

	if combined == reversed {
		t.Fatalf("hashing order should matter when combining launch and auth config")
	}
}

func TestOfNoFieldConfusionAcrossSeparator(t *testing.T) {
	// {"a":"bc"} must not hash the same as {"a":"b"} + separate value "c".
	x := Of(map[string]interface{}{"a": "bc"})
	y := Of(map[string]interface{}{"a": "b"}, "c")
	if x == y {
		t.Fatalf("expected distinct hashes across the value separator")
	}
}
