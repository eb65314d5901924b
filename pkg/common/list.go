package common

// NilIdx terminates index-based lists.
const NilIdx = int32(-1)

// Links is the intrusive membership of one array slot in an IndexList.
type Links struct {
	Prev, Next int32
}

func (l *Links) Reset() {
	l.Prev, l.Next = NilIdx, NilIdx
}

// IndexList is a doubly-linked list over slots of a fixed array, carrying
// array indices instead of pointers so it stays valid across address
// spaces. node resolves an index to its Links.
type IndexList struct {
	Head, Tail int32
}

func NewIndexList() IndexList {
	return IndexList{Head: NilIdx, Tail: NilIdx}
}

func (l *IndexList) IsEmpty() bool {
	return l.Head == NilIdx
}

func (l *IndexList) PushHead(idx int32, node func(int32) *Links) {
	n := node(idx)
	n.Prev = NilIdx
	n.Next = l.Head
	if l.Head != NilIdx {
		node(l.Head).Prev = idx
	} else {
		l.Tail = idx
	}
	l.Head = idx
}

func (l *IndexList) PushTail(idx int32, node func(int32) *Links) {
	n := node(idx)
	n.Next = NilIdx
	n.Prev = l.Tail
	if l.Tail != NilIdx {
		node(l.Tail).Next = idx
	} else {
		l.Head = idx
	}
	l.Tail = idx
}

func (l *IndexList) PopHead(node func(int32) *Links) int32 {
	idx := l.Head
	if idx == NilIdx {
		return NilIdx
	}
	l.Remove(idx, node)
	return idx
}

func (l *IndexList) Remove(idx int32, node func(int32) *Links) {
	n := node(idx)
	if n.Prev != NilIdx {
		node(n.Prev).Next = n.Next
	} else {
		l.Head = n.Next
	}
	if n.Next != NilIdx {
		node(n.Next).Prev = n.Prev
	} else {
		l.Tail = n.Prev
	}
	n.Reset()
}
