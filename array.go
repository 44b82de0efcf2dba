package skolem

import (
	"fmt"
)

// Array represents an array of symbolic or concrete bytes.
//
// Domain is the bit width of indexes and Range the bit width of elements.
// A constant array additionally carries the initial value of every element.
type Array struct {
	ID     uint64 // unique id
	Name   string // symbolic name reported to the solver
	Domain uint   // index width, in bits
	Range  uint   // element width, in bits
	Size   uint   // element count

	ConstantValues []*ConstantExpr // initial contents, nil if fully symbolic

	Updates *ArrayUpdate // linked list of symbolic updates
}

// NewArray returns a new byte-addressed Array of the given size.
func NewArray(id uint64, name string, size uint) *Array {
	return &Array{
		ID:     id,
		Name:   name,
		Domain: Width64,
		Range:  Width8,
		Size:   size,
	}
}

// NewConstantArray returns a new byte-addressed Array holding the given values.
func NewConstantArray(id uint64, name string, values []*ConstantExpr) *Array {
	for _, v := range values {
		assert(v.Width == Width8, "constant array value must be a byte: %d", v.Width)
	}
	a := NewArray(id, name, uint(len(values)))
	a.ConstantValues = values
	return a
}

// IsConstantArray returns true if the array carries concrete initial values.
func (a *Array) IsConstantArray() bool {
	return a.ConstantValues != nil
}

// String returns a string representation of the array.
func (a *Array) String() string {
	if a.Name != "" {
		return fmt.Sprintf("(array %s#%d %d)", a.Name, a.ID, a.Size)
	}
	return fmt.Sprintf("(array #%d %d)", a.ID, a.Size)
}

// Clone returns a copy of the array.
func (a *Array) Clone() *Array {
	other := *a
	return &other
}

// Select reads a value from the array.
func (a *Array) Select(offset Expr, width uint, isLittleEndian bool) Expr {
	assert(width > 0, "select: invalid width")

	offset = newZExtExpr(offset, a.Domain)

	if width == WidthBool {
		return NewExtractExpr(a.selectByte(offset), 0, WidthBool)
	}

	// Handle read byte-by-byte.
	var result Expr
	for i, n := uint64(0), uint64(width)/8; i != n; i++ {
		byteOffset := i
		if !isLittleEndian {
			byteOffset = (n - i - 1)
		}

		value := a.selectByte(NewBinaryExpr(ADD, offset, NewConstantExpr(byteOffset, a.Domain)))
		if i == 0 {
			result = value
		} else {
			result = NewConcatExpr(value, result)
		}
	}
	return result
}

// selectByte reads a single element from the array.
//
// Attempts to find a concrete value by traversing the array update history.
// Falls back to a read expression if either the selected index or an
// update's index is symbolic.
func (a *Array) selectByte(index Expr) Expr {
	assert(ExprWidth(index) == a.Domain, "selectByte: invalid array index width: %d", ExprWidth(index))
	for upd := a.Updates; upd != nil; upd = upd.Next {
		cond, ok := NewBinaryExpr(EQ, index, upd.Index).(*ConstantExpr)
		if !ok {
			break // found symbolic index, exit
		} else if cond.IsTrue() {
			return upd.Value
		}
	}
	return NewReadExpr(a, index)
}

// Store writes a value at an offset. Returns a new copy of the array.
func (a *Array) Store(offset, value Expr, isLittleEndian bool) *Array {
	other := a.Clone()

	offset = newZExtExpr(offset, a.Domain)

	// Treat bool specially, it is the only non-byte sized write we allow.
	width := ExprWidth(value)
	assert(width > 0, "store: invalid width")
	if width == WidthBool {
		other.storeByte(offset, value)
		return other
	}

	// Otherwise, follow the slow general case.
	for i, n := uint64(0), uint64(width)/8; i != n; i++ {
		byteOffset := i
		if !isLittleEndian {
			byteOffset = (n - i - 1)
		}

		other.storeByte(NewBinaryExpr(ADD, offset, NewConstantExpr(byteOffset, a.Domain)), NewExtractExpr(value, uint(i*8), a.Range))
	}
	return other
}

// storeByte writes a single element to the array.
func (a *Array) storeByte(index, value Expr) {
	assert(ExprWidth(index) == a.Domain, "storeByte: invalid array index width: %d", ExprWidth(index))
	assert(ExprWidth(value) == a.Range || ExprWidth(value) == WidthBool, "storeByte: invalid array value width: %d", ExprWidth(value))

	// Verify constant is not out of bounds.
	if index, ok := index.(*ConstantExpr); ok {
		assert(index.Value < uint64(a.Size), "storeByte: index out of bounds: %d < %d", index.Value, a.Size)
	}

	// Add update to the head of the chain.
	a.Updates = NewArrayUpdate(newZExtExpr(index, a.Domain), newZExtExpr(value, a.Range), a.Updates)

	// Remove any previous updates to the index from the chain.
	if index, ok := index.(*ConstantExpr); ok {
		prev := a.Updates
		for upd := prev.Next; upd != nil; upd = upd.Next {
			if updIndex, ok := upd.Index.(*ConstantExpr); !ok {
				break // symbolic index
			} else if index.Value == updIndex.Value {
				prev.Next = upd.Next // matching index, remove
			} else {
				// Copy the node so the chain shared with the source array is left intact.
				prev.Next = NewArrayUpdate(upd.Index, upd.Value, upd.Next)
				prev = prev.Next // no matching index, continue
			}
		}
	}
}

// IsSymbolic returns true if any elements in the array are symbolic.
func (a *Array) IsSymbolic() bool {
	if a.IsConstantArray() {
		return false
	}

	// Mark all elements with concrete values.
	bytes := make([]bool, a.Size)
	for upd := a.Updates; upd != nil; upd = upd.Next {
		if index, ok := upd.Index.(*ConstantExpr); !ok {
			return true // found symbolic index
		} else if _, ok := upd.Value.(*ConstantExpr); ok {
			bytes[index.Value] = true // index & value are concrete
		}
	}

	for _, isConcrete := range bytes {
		if !isConcrete {
			return true
		}
	}
	return false
}

// Equal returns a boolean expression stating if a is equal to other.
func (a *Array) Equal(other *Array) Expr {
	// Length is known at runtime so verify first.
	if a.Size != other.Size {
		return NewBoolConstantExpr(false)
	} else if a.Size == 0 {
		return NewBoolConstantExpr(true)
	}

	// Check equality for every element.
	// Exit early if any concrete element is unequal.
	var cond Expr
	for i := uint(0); i < a.Size; i++ {
		// Select one at index from each array.
		index := NewConstantExpr(uint64(i), a.Domain)
		x, y := a.selectByte(index), other.selectByte(index)

		// Compare elements, exit if known false.
		expr := newEqExpr(x, y)
		if IsConstantFalse(expr) {
			return NewBoolConstantExpr(false)
		}

		// Initialize or join to existing constraint set.
		if i == 0 {
			cond = expr
		} else {
			cond = newAndExpr(cond, expr)
		}
	}
	return cond
}

// NotEqual returns a boolean expression stating if a is not equal to other.
func (a *Array) NotEqual(other *Array) Expr {
	// Length is known at runtime so verify first.
	if a.Size != other.Size {
		return NewBoolConstantExpr(true)
	} else if a.Size == 0 {
		return NewBoolConstantExpr(false)
	}

	// Check inequality for every element.
	// Exit early if any concrete element is unequal.
	var cond Expr
	for i := uint(0); i < a.Size; i++ {
		// Select one at index from each array.
		index := NewConstantExpr(uint64(i), a.Domain)
		x, y := a.selectByte(index), other.selectByte(index)

		// Compare elements, exit if known inequality.
		expr := NewNotExpr(newEqExpr(x, y))
		if IsConstantTrue(expr) {
			return NewBoolConstantExpr(true)
		}

		// Initialize or join to existing constraint set.
		if i == 0 {
			cond = expr
		} else {
			cond = newOrExpr(cond, expr)
		}
	}
	return cond
}

// CompareArray returns an integer comparing two arrays.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArray(a, b *Array) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if a.ID < b.ID {
		return -1
	} else if a.ID > b.ID {
		return 1
	}

	if a.Size < b.Size {
		return -1
	} else if a.Size > b.Size {
		return 1
	}

	return CompareArrayUpdate(a.Updates, b.Updates)
}

// ArrayUpdate represents a symbolic update to an array.
type ArrayUpdate struct {
	Index Expr // element index of update
	Value Expr // element value to update

	Next *ArrayUpdate // linked list of next update
}

// NewArrayUpdate returns a new instance of ArrayUpdate.
func NewArrayUpdate(index, value Expr, next *ArrayUpdate) *ArrayUpdate {
	return &ArrayUpdate{
		Index: index,
		Value: value,
		Next:  next,
	}
}

// CompareArrayUpdate returns an integer comparing two array updates.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArrayUpdate(a, b *ArrayUpdate) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
		return cmp
	} else if cmp := CompareExpr(a.Value, b.Value); cmp != 0 {
		return cmp
	}
	return CompareArrayUpdate(a.Next, b.Next)
}
