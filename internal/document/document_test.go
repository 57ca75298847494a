package document

import (
	"errors"
	"testing"

	"jsonkv/internal/jsonpath"
	"jsonkv/internal/jsonvalue"
)

func mustDoc(t *testing.T, data string) *Document {
	t.Helper()
	d, err := FromJSON("test-key", []byte(data))
	if err != nil {
		t.Fatalf("FromJSON() failed: %v", err)
	}
	return d
}

func TestFromJSON(t *testing.T) {
	d := mustDoc(t, `{"a":1}`)
	if d.Key() != "test-key" {
		t.Errorf("Key() = %q, want %q", d.Key(), "test-key")
	}
	if d.Root().Type() != jsonvalue.TypeObject {
		t.Errorf("Root().Type() = %v, want object", d.Root().Type())
	}

	if _, err := FromJSON("bad", []byte(`{`)); err == nil {
		t.Error("FromJSON() succeeded on malformed input")
	}
}

func TestEvalString(t *testing.T) {
	d := mustDoc(t, `{"a":{"b":1},"c":[1,2,3]}`)

	ms, err := d.EvalString("$.c[-1]")
	if err != nil {
		t.Fatalf("EvalString() failed: %v", err)
	}
	if ms.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ms.Len())
	}
	node, err := ms.At(0)
	if err != nil {
		t.Fatalf("At(0) failed: %v", err)
	}
	if got, _ := node.AsInt(); got != 3 {
		t.Errorf("match = %d, want 3", got)
	}

	if _, err := d.EvalString("not-a-path"); !errors.Is(err, jsonpath.ErrSyntax) {
		t.Errorf("EvalString(bad) error = %v, want ErrSyntax", err)
	}
}

func TestEvalMissIsEmptySet(t *testing.T) {
	d := mustDoc(t, `{"x":1}`)

	ms, err := d.EvalString("$.y")
	if err != nil {
		t.Fatalf("EvalString() failed: %v", err)
	}
	if ms.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ms.Len())
	}
	if _, err := ms.At(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("At(0) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestMatchSetStaleAfterMutation(t *testing.T) {
	d := mustDoc(t, `{"a":1,"b":2}`)

	ms, err := d.EvalString("$.a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ms.At(0); err != nil {
		t.Fatalf("At(0) before mutation failed: %v", err)
	}

	d.Set(jsonpath.MustCompile("$.b"), jsonvalue.NewInt(9))

	if _, err := ms.At(0); !errors.Is(err, ErrStaleReference) {
		t.Errorf("At(0) after mutation error = %v, want ErrStaleReference", err)
	}
}

func TestReadOnlyOpsDoNotInvalidate(t *testing.T) {
	d := mustDoc(t, `{"a":"hi","b":[1]}`)

	ms, err := d.EvalString("$.a")
	if err != nil {
		t.Fatal(err)
	}

	d.StrLen(jsonpath.MustCompile("$.a"))
	d.ArrLen(jsonpath.MustCompile("$.b"))
	d.TypeOf(jsonpath.MustCompile("$.a"))
	d.ArrIndex(jsonpath.MustCompile("$.b"), jsonvalue.NewInt(1), 0, 0)

	if _, err := ms.At(0); err != nil {
		t.Errorf("At(0) after read-only ops failed: %v", err)
	}
}

func TestIterator(t *testing.T) {
	d := mustDoc(t, `{"c":[10,20,30]}`)

	ms, err := d.EvalString("$.c[*]")
	if err != nil {
		t.Fatal(err)
	}
	it := ms.Iterator()

	if n, err := it.Len(); err != nil || n != 3 {
		t.Fatalf("Len() = %d, %v, want 3, nil", n, err)
	}

	var got []int64
	for {
		node, err := it.Next()
		if errors.Is(err, ErrEndOfSequence) {
			break
		}
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		v, _ := node.AsInt()
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Errorf("iterated %v, want [10 20 30]", got)
	}

	// exhausted stays exhausted
	if _, err := it.Next(); !errors.Is(err, ErrEndOfSequence) {
		t.Errorf("Next() after exhaustion = %v, want ErrEndOfSequence", err)
	}

	// positional access is independent of the cursor
	if node, err := it.At(1); err != nil {
		t.Errorf("At(1) failed: %v", err)
	} else if v, _ := node.AsInt(); v != 20 {
		t.Errorf("At(1) = %d, want 20", v)
	}
}

func TestIteratorEmptySet(t *testing.T) {
	d := mustDoc(t, `{"a":1}`)

	ms, err := d.EvalString("$.missing")
	if err != nil {
		t.Fatal(err)
	}
	it := ms.Iterator()

	if n, err := it.Len(); err != nil || n != 0 {
		t.Errorf("Len() = %d, %v, want 0, nil", n, err)
	}
	if _, err := it.Next(); !errors.Is(err, ErrEndOfSequence) {
		t.Errorf("Next() on empty set = %v, want ErrEndOfSequence", err)
	}
}

func TestIteratorRelease(t *testing.T) {
	d := mustDoc(t, `[1,2]`)

	ms, err := d.EvalString("$[*]")
	if err != nil {
		t.Fatal(err)
	}
	it := ms.Iterator()
	if _, err := it.Next(); err != nil {
		t.Fatal(err)
	}

	it.Release()

	if _, err := it.Next(); !errors.Is(err, ErrUseAfterRelease) {
		t.Errorf("Next() after release = %v, want ErrUseAfterRelease", err)
	}
	if _, err := it.Len(); !errors.Is(err, ErrUseAfterRelease) {
		t.Errorf("Len() after release = %v, want ErrUseAfterRelease", err)
	}
	if _, err := it.At(0); !errors.Is(err, ErrUseAfterRelease) {
		t.Errorf("At() after release = %v, want ErrUseAfterRelease", err)
	}

	// releasing twice is harmless
	it.Release()
}

func TestIteratorStaleMidway(t *testing.T) {
	d := mustDoc(t, `{"c":[1,2,3]}`)

	ms, err := d.EvalString("$.c[*]")
	if err != nil {
		t.Fatal(err)
	}
	it := ms.Iterator()
	if _, err := it.Next(); err != nil {
		t.Fatal(err)
	}

	d.Set(jsonpath.MustCompile("$.c"), jsonvalue.NewArray())

	if _, err := it.Next(); !errors.Is(err, ErrStaleReference) {
		t.Errorf("Next() after mutation = %v, want ErrStaleReference", err)
	}
}

func TestGenerationAdvancesOncePerOperation(t *testing.T) {
	d := mustDoc(t, `{"a":1,"b":2,"c":3}`)

	before := d.Generation()
	d.Set(jsonpath.MustCompile("$.*"), jsonvalue.NewInt(0))
	if d.Generation() != before+1 {
		t.Errorf("Generation() = %d, want %d", d.Generation(), before+1)
	}
}
