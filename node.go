package hmalloc

import "unsafe"

var sizeOfFreeNode = unsafe.Sizeof(freeNode{})

// freeNode is what a released block's storage is reinterpreted as. The size
// field overlays the header word, so a block is either caller bytes or a
// node, never both.
type freeNode struct {
	size uintptr // whole extent, header included
	next uintptr // address of the next node, 0 terminates
}

func nodeAt(addr uintptr) *freeNode {
	if addr == 0 {
		return nil
	}
	return (*freeNode)(unsafe.Pointer(addr))
}

func (n *freeNode) addr() uintptr {
	return uintptr(unsafe.Pointer(n))
}

// end is the first byte past the node.
func (n *freeNode) end() uintptr {
	return n.addr() + n.size
}

func (n *freeNode) reset(size uintptr, next uintptr) {
	n.size = size
	n.next = next
}
