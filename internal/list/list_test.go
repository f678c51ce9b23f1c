package list

import "testing"

func vals(l *List) []int {
	var out []int
	for h := l.Front(); h != nil; h = l.Next(h) {
		out = append(out, h.Elem().(int))
	}
	return out
}

func TestPushBackOrder(t *testing.T) {
	var l List
	l.Init()
	hooks := make([]Hook, 3)
	for i, v := range []int{1, 2, 3} {
		hooks[i] = NewHook(v)
		l.PushBack(&hooks[i])
	}
	got := vals(&l)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestRemoveMiddle(t *testing.T) {
	var l List
	l.Init()
	hooks := make([]Hook, 3)
	for i, v := range []int{10, 20, 30} {
		hooks[i] = NewHook(v)
		l.PushBack(&hooks[i])
	}
	Remove(&hooks[1])
	got := vals(&l)
	if len(got) != 2 || got[0] != 10 || got[1] != 30 {
		t.Fatalf("got %v", got)
	}
	if l.InList(&hooks[1]) {
		t.Fatalf("removed hook still reports InList")
	}
}

func TestInsertSortedDescendingFIFO(t *testing.T) {
	var l List
	l.Init()
	type item struct {
		prio int
		seq  int
	}
	before := func(a, b any) bool {
		return a.(item).prio > b.(item).prio
	}
	items := []item{{30, 0}, {50, 1}, {50, 2}, {10, 3}, {50, 4}}
	hooks := make([]Hook, len(items))
	for i, it := range items {
		hooks[i] = NewHook(it)
		l.InsertSorted(&hooks[i], before)
	}
	var seqs []int
	for h := l.Front(); h != nil; h = l.Next(h) {
		seqs = append(seqs, h.Elem().(item).seq)
	}
	want := []int{1, 2, 4, 0, 3}
	if len(seqs) != len(want) {
		t.Fatalf("got %v want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("got %v want %v", seqs, want)
		}
	}
}

func TestEmptyAfterInitAndDrain(t *testing.T) {
	var l List
	l.Init()
	if !l.Empty() {
		t.Fatalf("freshly initialized list should be empty")
	}
	h := NewHook(1)
	l.PushBack(&h)
	if l.Empty() {
		t.Fatalf("list with one element should not be empty")
	}
	Remove(&h)
	if !l.Empty() {
		t.Fatalf("list should be empty after removing its only element")
	}
}
