package orderbook

// Children are indexed by direction so every balancing case is written
// once and mirrored by flipping the index, instead of duplicating the
// left and right branches.
const (
	dirLeft  = 0
	dirRight = 1
)

type treeNode struct {
	price  int64
	level  *PriceLevel
	red    bool
	parent *treeNode
	child  [2]*treeNode
}

// dir reports which child slot of its parent n occupies.
func (n *treeNode) dir() int {
	if n == n.parent.child[dirRight] {
		return dirRight
	}
	return dirLeft
}

// levelTree is a red-black tree of price levels keyed by price. It backs
// one side of the book: O(log n) lookups with both extremes cheaply
// reachable, and in-order iteration in price order. A shared black
// sentinel stands in for every leaf and for the root's parent.
type levelTree struct {
	root     *treeNode
	sentinel *treeNode
	size     int
}

func newLevelTree() *levelTree {
	s := &treeNode{}
	s.parent = s
	s.child[dirLeft] = s
	s.child[dirRight] = s
	return &levelTree{root: s, sentinel: s}
}

func (t *levelTree) len() int { return t.size }

func (t *levelTree) find(price int64) *PriceLevel {
	if n := t.lookup(price); n != t.sentinel {
		return n.level
	}
	return nil
}

// upsert returns the level at price, creating it if absent.
func (t *levelTree) upsert(price int64) *PriceLevel {
	parent, n := t.sentinel, t.root
	for n != t.sentinel {
		if price == n.price {
			return n.level
		}
		parent = n
		n = n.child[sideOf(price, n.price)]
	}

	lvl := &PriceLevel{Price: price}
	n = &treeNode{price: price, level: lvl, red: true, parent: parent}
	n.child[dirLeft] = t.sentinel
	n.child[dirRight] = t.sentinel

	if parent == t.sentinel {
		t.root = n
	} else {
		parent.child[sideOf(price, parent.price)] = n
	}
	t.rebalanceInsert(n)
	t.size++
	return lvl
}

func (t *levelTree) remove(price int64) bool {
	n := t.lookup(price)
	if n == t.sentinel {
		return false
	}
	t.unlink(n)
	t.size--
	return true
}

func (t *levelTree) min() *PriceLevel {
	if n := t.extreme(t.root, dirLeft); n != t.sentinel {
		return n.level
	}
	return nil
}

func (t *levelTree) max() *PriceLevel {
	if n := t.extreme(t.root, dirRight); n != t.sentinel {
		return n.level
	}
	return nil
}

func (t *levelTree) ascend(fn func(*PriceLevel) bool)  { t.walk(dirRight, fn) }
func (t *levelTree) descend(fn func(*PriceLevel) bool) { t.walk(dirLeft, fn) }

func (t *levelTree) clear() {
	t.root = t.sentinel
	t.size = 0
}

/******************** internal helpers ********************/

func sideOf(price, key int64) int {
	if price < key {
		return dirLeft
	}
	return dirRight
}

func (t *levelTree) lookup(price int64) *treeNode {
	n := t.root
	for n != t.sentinel && n.price != price {
		n = n.child[sideOf(price, n.price)]
	}
	return n
}

// extreme descends along one side to the smallest (dirLeft) or largest
// (dirRight) node of the subtree rooted at n.
func (t *levelTree) extreme(n *treeNode, dir int) *treeNode {
	for n.child[dir] != t.sentinel {
		n = n.child[dir]
	}
	return n
}

// step returns n's in-order neighbor toward dir.
func (t *levelTree) step(n *treeNode, dir int) *treeNode {
	if n.child[dir] != t.sentinel {
		return t.extreme(n.child[dir], 1-dir)
	}
	p := n.parent
	for p != t.sentinel && n == p.child[dir] {
		n, p = p, p.parent
	}
	return p
}

// walk visits every level in key order: dirRight ascends, dirLeft
// descends. fn returning false stops the walk.
func (t *levelTree) walk(dir int, fn func(*PriceLevel) bool) {
	for n := t.extreme(t.root, 1-dir); n != t.sentinel; n = t.step(n, dir) {
		if !fn(n.level) {
			return
		}
	}
}

// rotate pushes n down toward dir, lifting its opposite child into n's
// place.
func (t *levelTree) rotate(n *treeNode, dir int) {
	up := n.child[1-dir]
	n.child[1-dir] = up.child[dir]
	if up.child[dir] != t.sentinel {
		up.child[dir].parent = n
	}
	up.parent = n.parent
	if n.parent == t.sentinel {
		t.root = up
	} else {
		n.parent.child[n.dir()] = up
	}
	up.child[dir] = n
	n.parent = up
}

// replaceChild splices the subtree rooted at with into old's slot.
// with's parent pointer is set even when with is the sentinel; the
// delete rebalance climbs through it.
func (t *levelTree) replaceChild(old, with *treeNode) {
	if old.parent == t.sentinel {
		t.root = with
	} else {
		old.parent.child[old.dir()] = with
	}
	with.parent = old.parent
}

func (t *levelTree) rebalanceInsert(n *treeNode) {
	for n.parent.red {
		parent := n.parent
		grand := parent.parent
		d := parent.dir()

		if uncle := grand.child[1-d]; uncle.red {
			parent.red = false
			uncle.red = false
			grand.red = true
			n = grand
			continue
		}
		if n.dir() != d {
			// Inner grandchild: straighten the path first.
			t.rotate(parent, d)
			n, parent = parent, n
		}
		parent.red = false
		grand.red = true
		t.rotate(grand, 1-d)
	}
	t.root.red = false
}

// unlink detaches n from the tree. When n has two children its in-order
// successor is spliced into n's place, so the node that physically
// leaves the tree always has at most one child.
func (t *levelTree) unlink(n *treeNode) {
	gone := n
	goneRed := gone.red
	var hole *treeNode

	switch {
	case n.child[dirLeft] == t.sentinel:
		hole = n.child[dirRight]
		t.replaceChild(n, hole)
	case n.child[dirRight] == t.sentinel:
		hole = n.child[dirLeft]
		t.replaceChild(n, hole)
	default:
		gone = t.extreme(n.child[dirRight], dirLeft)
		goneRed = gone.red
		hole = gone.child[dirRight]
		if gone.parent == n {
			hole.parent = gone
		} else {
			t.replaceChild(gone, hole)
			gone.child[dirRight] = n.child[dirRight]
			gone.child[dirRight].parent = gone
		}
		t.replaceChild(n, gone)
		gone.child[dirLeft] = n.child[dirLeft]
		gone.child[dirLeft].parent = gone
		gone.red = n.red
	}

	if !goneRed {
		t.rebalanceDelete(hole)
	}
}

// rebalanceDelete restores the black-height invariant after a black
// node left the tree. hole carries the missing blackness and climbs
// until it can be absorbed.
func (t *levelTree) rebalanceDelete(n *treeNode) {
	for n != t.root && !n.red {
		d := n.dir()
		sib := n.parent.child[1-d]

		if sib.red {
			sib.red = false
			n.parent.red = true
			t.rotate(n.parent, d)
			sib = n.parent.child[1-d]
		}
		if !sib.child[dirLeft].red && !sib.child[dirRight].red {
			sib.red = true
			n = n.parent
			continue
		}
		if !sib.child[1-d].red {
			// Far nephew black: rotate the red near nephew outward.
			sib.child[d].red = false
			sib.red = true
			t.rotate(sib, 1-d)
			sib = n.parent.child[1-d]
		}
		sib.red = n.parent.red
		n.parent.red = false
		sib.child[1-d].red = false
		t.rotate(n.parent, d)
		n = t.root
	}
	n.red = false
}
