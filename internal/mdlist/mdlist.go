package mdlist

import (
	"sync/atomic"

	"github.com/hupe1980/txgraph/internal/arena"
)

// Dimension is the number of coordinate digits per key.
const Dimension = 16

// Child slot tags.
const (
	AdoptionInvalid arena.Ref = 1
	DeletionInvalid arena.Ref = 2
)

// Coord is the base-4 digit vector of a key, most significant digit first.
type Coord [Dimension]uint8

// KeyToCoord maps key onto its coordinate.
func KeyToCoord(key uint32) Coord {
	var c Coord
	for i := 0; i < Dimension; i++ {
		c[i] = uint8((key >> (30 - 2*i)) & 0x3)
	}
	return c
}

// Compare orders coordinates lexicographically, matching the numeric key order.
func (c Coord) Compare(o Coord) int {
	for i := 0; i < Dimension; i++ {
		switch {
		case c[i] < o[i]:
			return -1
		case c[i] > o[i]:
			return 1
		}
	}
	return 0
}

// Node is an element of an MDList.
type Node struct {
	children [Dimension]atomic.Uint64
	pending  atomic.Uint64 // arena.Ref to a Desc
	nodeDesc atomic.Uint64 // opaque tagged ref owned by the transaction layer
	key      uint32
	coord    Coord
}

// Init sets the key of an unpublished node.
func (n *Node) Init(key uint32) {
	n.key = key
	n.coord = KeyToCoord(key)
}

// Key returns the node key.
func (n *Node) Key() uint32 { return n.key }

// Coord returns the node coordinate.
func (n *Node) Coord() Coord { return n.coord }

// Child returns the raw, possibly tagged, child slot at dim.
func (n *Node) Child(dim int) arena.Ref { return arena.Ref(n.children[dim].Load()) }

// CompareAndSwapChild replaces the child slot at dim.
func (n *Node) CompareAndSwapChild(dim int, old, new arena.Ref) bool {
	return n.children[dim].CompareAndSwap(uint64(old), uint64(new))
}

// Pending returns the outstanding adoption descriptor, if any.
func (n *Node) Pending() arena.Ref { return arena.Ref(n.pending.Load()) }

// NodeDesc returns the transaction binding of the node.
func (n *Node) NodeDesc() arena.Ref { return arena.Ref(n.nodeDesc.Load()) }

// SetNodeDesc stores the binding of an unpublished node.
func (n *Node) SetNodeDesc(ref arena.Ref) { n.nodeDesc.Store(uint64(ref)) }

// CompareAndSwapNodeDesc replaces the transaction binding.
func (n *Node) CompareAndSwapNodeDesc(old, new arena.Ref) bool {
	return n.nodeDesc.CompareAndSwap(uint64(old), uint64(new))
}

// Desc describes a pending child adoption: dimensions [PredDim, Dim) of Curr move
// to the node carrying the descriptor.
type Desc struct {
	Curr    arena.Ref
	PredDim uint8
	Dim     uint8
}

// Store resolves node and descriptor references.
type Store struct {
	nodes *arena.Region[Node]
	descs *arena.Region[Desc]
}

// NewStore creates a Store over the given regions.
func NewStore(nodes *arena.Region[Node], descs *arena.Region[Desc]) *Store {
	return &Store{nodes: nodes, descs: descs}
}

// Node resolves ref, ignoring tags.
func (s *Store) Node(ref arena.Ref) *Node { return s.nodes.At(ref) }

// Desc resolves ref, ignoring tags.
func (s *Store) Desc(ref arena.Ref) *Desc { return s.descs.At(ref) }

// List returns the MDList rooted at head. The head carries key 0.
func (s *Store) List(head arena.Ref) List {
	return List{store: s, head: head.Clear()}
}

// Position is the result of LocatePred.
//
// Dim is the number of leading digits shared with Curr; Dim == Dimension means
// Curr carries the searched key. Pred.Child(PredDim) is the slot Curr was read from.
type Position struct {
	Pred    arena.Ref
	Curr    arena.Ref
	Dim     int
	PredDim int
}

// List is a view of one MDList.
type List struct {
	store *Store
	head  arena.Ref
}

// Head returns the head node reference.
func (l List) Head() arena.Ref { return l.head }

// Start returns the position every search begins from.
func (l List) Start() Position {
	return Position{Curr: l.head}
}

// LocatePred advances pos towards coord, helping any adoption it walks past.
// pos may carry the state of a previous attempt.
func (l List) LocatePred(coord *Coord, pos *Position) {
	for pos.Dim < Dimension {
		for !pos.Curr.IsNil() {
			curr := l.store.Node(pos.Curr)
			if coord[pos.Dim] <= curr.coord[pos.Dim] {
				break
			}
			pos.PredDim = pos.Dim
			pos.Pred = pos.Curr

			if p := curr.Pending(); !p.IsNil() {
				d := l.store.Desc(p)
				if pos.Dim >= int(d.PredDim) && pos.Dim <= int(d.Dim) {
					l.FinishInserting(pos.Curr, p)
				}
			}
			pos.Curr = curr.Child(pos.Dim).Clear()
		}

		if pos.Curr.IsNil() || coord[pos.Dim] < l.store.Node(pos.Curr).coord[pos.Dim] {
			break
		}
		pos.Dim++
	}
}

// Insert tries to link n at pos, which must come from LocatePred.
//
// On failure pos is rewound so the caller can call LocatePred again and retry with
// the same node. Insert fails without rewinding when pos already holds a live node
// with the same key.
func (l List) Insert(descs *arena.Cursor[Desc], n arena.Ref, pos *Position) bool {
	pred := l.store.Node(pos.Pred)
	predChild := pred.Child(pos.PredDim)

	if pos.Dim == Dimension && !predChild.Has(DeletionInvalid) {
		return false
	}

	expected := pos.Curr
	if predChild.Has(DeletionInvalid) {
		expected = pos.Curr.With(DeletionInvalid)
		// Adopting every child of a deleted node unlinks it.
		if pos.Dim == Dimension-1 {
			pos.Dim = Dimension
		}
	}

	newNode := l.store.Node(n)
	if predChild == expected {
		desc := l.fillNewNode(descs, newNode, expected, pos)

		if pred.CompareAndSwapChild(pos.PredDim, expected, n) {
			if !desc.IsNil() {
				if !pos.Curr.IsNil() {
					if p := l.store.Node(pos.Curr).Pending(); !p.IsNil() {
						l.FinishInserting(pos.Curr, p)
					}
				}
				l.FinishInserting(n, desc)
			}
			return true
		}
		predChild = pred.Child(pos.PredDim)
	}

	switch {
	case predChild.Has(AdoptionInvalid):
		*pos = l.Start()
	case predChild.Clear() != pos.Curr:
		pos.Curr = pos.Pred
		pos.Dim = pos.PredDim
	}

	newNode.pending.Store(0)
	return false
}

func (l List) fillNewNode(descs *arena.Cursor[Desc], n *Node, expected arena.Ref, pos *Position) arena.Ref {
	var ref arena.Ref
	if pos.PredDim != pos.Dim {
		var d *Desc
		ref, d = descs.New()
		d.Curr = expected.Clear()
		d.PredDim = uint8(pos.PredDim)
		d.Dim = uint8(pos.Dim)
	}

	for i := 0; i < pos.PredDim; i++ {
		n.children[i].Store(uint64(AdoptionInvalid))
	}
	for i := pos.PredDim; i < Dimension; i++ {
		n.children[i].Store(0)
	}
	if pos.Dim < Dimension {
		n.children[pos.Dim].Store(uint64(expected))
	}
	n.pending.Store(uint64(ref))
	return ref
}

// FinishInserting completes the adoption described by desc on behalf of n.
// It is idempotent and safe to run from any number of threads.
func (l List) FinishInserting(n arena.Ref, desc arena.Ref) {
	d := l.store.Desc(desc)
	if d.Curr.IsNil() {
		l.store.Node(n).pending.CompareAndSwap(uint64(desc), 0)
		return
	}

	node := l.store.Node(n)
	curr := l.store.Node(d.Curr)
	for i := int(d.PredDim); i < int(d.Dim); i++ {
		curr.children[i].Or(uint64(AdoptionInvalid))
		child := curr.Child(i).Without(AdoptionInvalid)
		if !child.IsNil() && node.Child(i) == 0 {
			node.children[i].CompareAndSwap(0, uint64(child))
		}
	}

	node.pending.CompareAndSwap(uint64(desc), 0)
}

// Delete logically removes Curr by tagging its incoming slot DeletionInvalid.
// It only applies to an exact match and reports whether this call did the tagging.
func (l List) Delete(pos Position) bool {
	if pos.Dim != Dimension {
		return false
	}
	return l.store.Node(pos.Pred).CompareAndSwapChild(pos.PredDim, pos.Curr, pos.Curr.With(DeletionInvalid))
}

// Locate searches key from the head and reports whether it holds a live node.
func (l List) Locate(key uint32) (Position, bool) {
	coord := KeyToCoord(key)
	for {
		pos := l.Start()
		l.LocatePred(&coord, &pos)
		if pos.Dim != Dimension {
			return pos, false
		}
		if pos.Pred.IsNil() {
			// key 0 is the head itself
			return pos, false
		}
		slot := l.store.Node(pos.Pred).Child(pos.PredDim)
		if slot.Clear() != pos.Curr {
			continue
		}
		return pos, !slot.Has(DeletionInvalid)
	}
}

// Find reports whether key is in the list.
func (l List) Find(key uint32) bool {
	_, ok := l.Locate(key)
	return ok
}

// InsertKey links a fresh node for key unless a live one exists.
// It is a convenience for using the list as a plain concurrent set.
func (l List) InsertKey(nodes *arena.Cursor[Node], descs *arena.Cursor[Desc], key uint32) bool {
	if key == 0 {
		return false
	}
	ref, n := nodes.New()
	n.Init(key)

	pos := l.Start()
	for {
		l.LocatePred(&n.coord, &pos)
		if pos.Dim == Dimension && !l.store.Node(pos.Pred).Child(pos.PredDim).Has(DeletionInvalid) {
			return false
		}
		if l.Insert(descs, ref, &pos) {
			return true
		}
	}
}

// DeleteKey removes the live node for key and reports whether this call removed it.
func (l List) DeleteKey(key uint32) bool {
	for {
		pos, ok := l.Locate(key)
		if !ok {
			return false
		}
		if l.Delete(pos) {
			return true
		}
	}
}

// Walk visits every node reachable from the head, head excluded, finishing
// adoptions on the way. slot is the raw value of the child slot the node was
// reached through. Walk stops when fn returns false.
//
// Recursion depth is bounded because a chain along one dimension holds at most
// four nodes.
func (l List) Walk(fn func(ref arena.Ref, n *Node, slot arena.Ref) bool) {
	l.walk(l.head, 0, fn)
}

func (l List) walk(ref arena.Ref, dim int, fn func(arena.Ref, *Node, arena.Ref) bool) bool {
	n := l.store.Node(ref)
	if p := n.Pending(); !p.IsNil() {
		l.FinishInserting(ref, p)
	}
	for i := Dimension - 1; i >= dim; i-- {
		slot := n.Child(i)
		child := slot.Clear()
		if child.IsNil() || slot.Has(AdoptionInvalid) {
			continue
		}
		if !fn(child, l.store.Node(child), slot) {
			return false
		}
		if !l.walk(child, i, fn) {
			return false
		}
	}
	return true
}
