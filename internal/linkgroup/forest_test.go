package linkgroup_test

import (
	"slices"
	"testing"

	"nemfreview/internal/linkgroup"
)

func TestForestUnionIsSymmetricAndTransitive(t *testing.T) {
	f := linkgroup.NewForest()
	f.Union("a", "b")
	f.Union("c", "b")

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}, {"a", "c"}, {"c", "a"}} {
		if !f.Connected(pair[0], pair[1]) {
			t.Fatalf("%s and %s should be connected", pair[0], pair[1])
		}
	}
	want := []string{"a", "b", "c"}
	for _, key := range want {
		if got := f.Members(key); !slices.Equal(got, want) {
			t.Fatalf("Members(%s) = %v", key, got)
		}
	}
	if f.Connected("a", "d") {
		t.Fatal("unrelated key connected")
	}
	if got := f.Members("d"); !slices.Equal(got, []string{"d"}) {
		t.Fatalf("singleton members = %v", got)
	}
}

func TestForestSplitIsolatesOneKey(t *testing.T) {
	f := linkgroup.NewForest()
	f.Union("a", "b")
	f.Union("a", "c")
	f.Union("d", "a")

	root := f.Find("b")
	f.Split(root)

	if got := f.Members(root); !slices.Equal(got, []string{root}) {
		t.Fatalf("split key members = %v", got)
	}
	var rest []string
	for _, key := range []string{"a", "b", "c", "d"} {
		if key != root {
			rest = append(rest, key)
		}
	}
	for _, key := range rest {
		if got := f.Members(key); !slices.Equal(got, rest) {
			t.Fatalf("Members(%s) = %v, want %v", key, got, rest)
		}
	}
}

func TestForestSplitPairLeavesSingletons(t *testing.T) {
	f := linkgroup.NewForest()
	f.Union("a", "b")
	f.Split("a")
	if f.Connected("a", "b") {
		t.Fatal("pair still connected after split")
	}
	if classes := f.Classes(); len(classes) != 0 {
		t.Fatalf("classes = %v", classes)
	}
}

func TestForestClasses(t *testing.T) {
	f := linkgroup.NewForest()
	f.Union("x", "y")
	f.Union("b", "a")
	classes := f.Classes()
	if len(classes) != 2 || !slices.Equal(classes[0], []string{"a", "b"}) || !slices.Equal(classes[1], []string{"x", "y"}) {
		t.Fatalf("classes = %v", classes)
	}
}
