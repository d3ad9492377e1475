package linkgroup

import (
	"cmp"
	"slices"
)

// Forest is a disjoint-set over record keys. Keys never seen by Union are
// implicit singletons. Forest is not safe for concurrent use.
type Forest struct {
	parent  map[string]string
	members map[string][]string // root -> class members
}

// NewForest returns an empty forest.
func NewForest() *Forest {
	return &Forest{
		parent:  make(map[string]string),
		members: make(map[string][]string),
	}
}

// Find returns the root of key's class, compressing the path walked.
func (f *Forest) Find(key string) string {
	root := key
	for {
		parent, ok := f.parent[root]
		if !ok || parent == root {
			break
		}
		root = parent
	}
	for key != root {
		next := f.parent[key]
		f.parent[key] = root
		key = next
	}
	return root
}

func (f *Forest) size(root string) int {
	if members, ok := f.members[root]; ok {
		return len(members)
	}
	return 1
}

// Union merges the classes of a and b, attaching the smaller under the
// larger, and returns the surviving root.
func (f *Forest) Union(a, b string) string {
	ra, rb := f.Find(a), f.Find(b)
	if ra == rb {
		return ra
	}
	if f.size(ra) < f.size(rb) {
		ra, rb = rb, ra
	}
	merged := append(f.classOf(ra), f.classOf(rb)...)
	f.parent[ra] = ra
	f.parent[rb] = ra
	delete(f.members, rb)
	f.members[ra] = merged
	return ra
}

func (f *Forest) classOf(root string) []string {
	if members, ok := f.members[root]; ok {
		return members
	}
	return []string{root}
}

// Split moves key back to a singleton. The rest of its class stays grouped
// under a root that is still a member.
func (f *Forest) Split(key string) {
	root := f.Find(key)
	class := f.classOf(root)
	if len(class) <= 1 {
		return
	}
	for _, member := range class {
		delete(f.parent, member)
	}
	delete(f.members, root)

	var rest []string
	for _, member := range class {
		if member != key {
			rest = append(rest, member)
		}
	}
	if len(rest) < 2 {
		return
	}
	newRoot := rest[0]
	f.parent[newRoot] = newRoot
	for _, member := range rest[1:] {
		f.parent[member] = newRoot
	}
	f.members[newRoot] = rest
}

// Members returns every key in key's class sorted ascending, including key.
func (f *Forest) Members(key string) []string {
	out := slices.Clone(f.classOf(f.Find(key)))
	slices.Sort(out)
	return out
}

// Connected reports whether a and b share a class.
func (f *Forest) Connected(a, b string) bool {
	return f.Find(a) == f.Find(b)
}

// Classes returns every class with more than one member, each sorted, in
// order of their first key.
func (f *Forest) Classes() [][]string {
	var classes [][]string
	for _, members := range f.members {
		if len(members) < 2 {
			continue
		}
		class := slices.Clone(members)
		slices.Sort(class)
		classes = append(classes, class)
	}
	slices.SortFunc(classes, func(a, b []string) int {
		return cmp.Compare(a[0], b[0])
	})
	return classes
}
