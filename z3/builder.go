// Package z3 translates symbolic expressions into the AST of an embedded
// Z3 solver over the bitvector, array and floating-point theories.
package z3

import (
	"fmt"
	"strconv"
	"unsafe"

	"github.com/benbjohnson/immutable"
	"github.com/benbjohnson/skolem"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>

extern void goZ3ErrorHandler(Z3_context c, Z3_error_code e);

static void skolem_install_error_handler(Z3_context c) {
	Z3_set_error_handler(c, goZ3ErrorHandler);
}
*/
import "C"

// f80SymbolName names the array constants backing 80-bit floats. The 79-bit
// number lives at index 0 and the unnormal sentinel at index 1.
const f80SymbolName = "[F80, unnormal]"

// Builder owns a reference-counted Z3 context and translates expressions
// into solver terms. It is not safe for concurrent use; callers that need
// parallel translation create one Builder per goroutine.
type Builder struct {
	ctx C.Z3_context

	// UseConstructHash memoises translation on expression identity so a
	// shared sub-DAG is translated once.
	UseConstructHash bool

	// AutoClearConstructCache drops the construction cache after every
	// top-level Construct call.
	AutoClearConstructCache bool

	// References acquired during the current top-level call.
	scope []C.Z3_ast

	constructed map[skolem.Expr]constructed
	arrays      *immutable.SortedMap // array id → retained AST
	updates     map[*skolem.ArrayUpdate]AST
}

type constructed struct {
	ast   AST
	width uint
}

// NewBuilder returns a new Builder with default options.
func NewBuilder() *Builder {
	return NewBuilderWithConfig(skolem.DefaultConfig())
}

// NewBuilderWithConfig returns a new Builder configured by config.
func NewBuilderWithConfig(config skolem.Config) *Builder {
	cfg := C.Z3_mk_config()
	defer C.Z3_del_config(cfg)

	if config.Timeout > 0 {
		k, v := C.CString("timeout"), C.CString(strconv.FormatInt(config.Timeout.Milliseconds(), 10))
		C.Z3_set_param_value(cfg, k, v)
		C.free(unsafe.Pointer(k))
		C.free(unsafe.Pointer(v))
	}

	// The context must let us manage term lifetimes so that cached
	// expressions and sorts survive between translations.
	ctx := C.Z3_mk_context_rc(cfg)
	C.skolem_install_error_handler(ctx)
	C.Z3_set_ast_print_mode(ctx, C.Z3_PRINT_SMTLIB2_COMPLIANT)

	return &Builder{
		ctx:                     ctx,
		UseConstructHash:        config.UseConstructHash,
		AutoClearConstructCache: config.AutoClearConstructCache,

		constructed: make(map[skolem.Expr]constructed),
		arrays:      immutable.NewSortedMap(&uint64Comparer{}),
		updates:     make(map[*skolem.ArrayUpdate]AST),
	}
}

// Close releases every cached handle and deletes the underlying context.
// Caches are cleared before the context is destroyed so no reference
// outlives it.
func (b *Builder) Close() error {
	b.ClearConstructCache()
	b.clearArrayCache()
	b.releaseScope(0)
	C.Z3_del_context(b.ctx)
	return nil
}

// ClearConstructCache releases every handle held by the construction
// cache. The array caches are unaffected. Calling it twice is a no-op.
func (b *Builder) ClearConstructCache() {
	for _, entry := range b.constructed {
		entry.ast.release()
	}
	b.constructed = make(map[skolem.Expr]constructed)
}

// clearArrayCache releases the handles held for array roots and updates.
func (b *Builder) clearArrayCache() {
	itr := b.arrays.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		v.(AST).release()
	}
	b.arrays = immutable.NewSortedMap(&uint64Comparer{})

	for _, ast := range b.updates {
		ast.release()
	}
	b.updates = make(map[*skolem.ArrayUpdate]AST)
}

// GetTrue returns the boolean true literal. The caller owns the handle.
func (b *Builder) GetTrue() AST {
	mark := b.scopeMark()
	defer b.releaseScope(mark)
	return b.mkTrue().retain()
}

// GetFalse returns the boolean false literal. The caller owns the handle.
func (b *Builder) GetFalse() AST {
	mark := b.scopeMark()
	defer b.releaseScope(mark)
	return b.mkFalse().retain()
}

// GetInitialRead returns a read of index from the initial version of the
// array. The caller owns the handle.
func (b *Builder) GetInitialRead(root *skolem.Array, index uint) AST {
	mark := b.scopeMark()
	defer b.releaseScope(mark)
	return b.readExpr(b.getInitialArray(root), b.bvConst32(root.Domain, uint32(index))).retain()
}

// Sorts.

func (b *Builder) getBvSort(width uint) Sort {
	return b.wrapSort(C.Z3_mk_bv_sort(b.ctx, C.uint(width)))
}

func (b *Builder) getArraySort(domain, rng Sort) Sort {
	return b.wrapSort(C.Z3_mk_array_sort(b.ctx, domain.raw, rng.raw))
}

// getFloatSort returns the float sort for a width. An 80-bit float maps to
// the 79-bit sort FP(15, 64); the explicit integer bit of the x87 format
// has no place in an IEEE sort and is tracked on the f80 array's sentinel
// channel instead.
func (b *Builder) getFloatSort(width uint) Sort {
	switch width {
	case skolem.Width16:
		return b.wrapSort(C.Z3_mk_fpa_sort_16(b.ctx))
	case skolem.Width32:
		return b.wrapSort(C.Z3_mk_fpa_sort_32(b.ctx))
	case skolem.Width64:
		return b.wrapSort(C.Z3_mk_fpa_sort_64(b.ctx))
	case skolem.Width80:
		return b.wrapSort(C.Z3_mk_fpa_sort(b.ctx, 15, 64))
	case skolem.Width128:
		return b.wrapSort(C.Z3_mk_fpa_sort_128(b.ctx))
	default:
		panic(fmt.Sprintf("z3.Builder: no float sort for width %d", width))
	}
}

// buildArray declares a fresh array constant of the given index and value widths.
func (b *Builder) buildArray(name string, indexWidth, valueWidth uint) AST {
	t := b.getArraySort(b.getBvSort(indexWidth), b.getBvSort(valueWidth))

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	s := C.Z3_mk_string_symbol(b.ctx, cname)
	return b.wrapAST(C.Z3_mk_const(b.ctx, s, t.raw))
}

// Literals.

func (b *Builder) mkTrue() AST  { return b.wrapAST(C.Z3_mk_true(b.ctx)) }
func (b *Builder) mkFalse() AST { return b.wrapAST(C.Z3_mk_false(b.ctx)) }

func (b *Builder) bvOne(width uint) AST  { return b.bvZExtConst(width, 1) }
func (b *Builder) bvZero(width uint) AST { return b.bvZExtConst(width, 0) }

func (b *Builder) bvMinusOne(width uint) AST {
	return b.bvSExtConst(width, uint64(0)-1)
}

func (b *Builder) bvConst32(width uint, value uint32) AST {
	t := b.getBvSort(width)
	return b.wrapAST(C.Z3_mk_unsigned_int(b.ctx, C.uint(value), t.raw))
}

func (b *Builder) bvConst64(width uint, value uint64) AST {
	t := b.getBvSort(width)
	return b.wrapAST(C.Z3_mk_unsigned_int64(b.ctx, C.ulonglong(value), t.raw))
}

// bvZExtConst builds a constant of arbitrary width from a zero-extended
// 64-bit value, chunking 64 bits at a time.
func (b *Builder) bvZExtConst(width uint, value uint64) AST {
	if width <= skolem.Width64 {
		return b.bvConst64(width, value)
	}

	expr, zero := b.bvConst64(skolem.Width64, value), b.bvConst64(skolem.Width64, 0)
	for width -= 64; width > 64; width -= 64 {
		expr = b.concatExpr(zero, expr)
	}
	return b.concatExpr(b.bvConst64(width, 0), expr)
}

// bvSExtConst builds a constant of arbitrary width from a sign-extended
// 64-bit value.
func (b *Builder) bvSExtConst(width uint, value uint64) AST {
	if width <= skolem.Width64 {
		return b.bvConst64(width, value)
	}

	t := b.getBvSort(width - 64)
	var fill C.longlong
	if value>>63 != 0 {
		fill = -1
	}
	r := b.wrapAST(C.Z3_mk_int64(b.ctx, fill, t.raw))
	return b.concatExpr(r, b.bvConst64(64, value))
}

// bvBoolExtract converts a single bit of a bitvector into a boolean.
func (b *Builder) bvBoolExtract(expr AST, bit uint) AST {
	return b.eqExpr(b.bvExtract(expr, bit, bit), b.bvOne(1))
}

func (b *Builder) bvExtract(expr AST, top, bottom uint) AST {
	return b.wrapAST(C.Z3_mk_extract(b.ctx, C.uint(top), C.uint(bottom), expr.raw))
}

func (b *Builder) eqExpr(a, c AST) AST {
	return b.wrapAST(C.Z3_mk_eq(b.ctx, a.raw, c.raw))
}

// Shifts by a constant amount.

// bvRightShift is a logical right shift.
func (b *Builder) bvRightShift(expr AST, shift uint) AST {
	width := b.getBVLength(expr)

	if shift == 0 {
		return expr
	} else if shift >= width {
		return b.bvZero(width) // overshift to zero
	}
	return b.concatExpr(b.bvZero(shift), b.bvExtract(expr, width-1, shift))
}

// bvLeftShift is a logical left shift.
func (b *Builder) bvLeftShift(expr AST, shift uint) AST {
	width := b.getBVLength(expr)

	if shift == 0 {
		return expr
	} else if shift >= width {
		return b.bvZero(width) // overshift to zero
	}
	return b.concatExpr(b.bvExtract(expr, width-shift-1, 0), b.bvZero(shift))
}

// constructAShrByConstant is an arithmetic right shift by a constant
// amount, selecting between a sign-fill and a logical shift on isSigned.
func (b *Builder) constructAShrByConstant(expr AST, shift uint, isSigned AST) AST {
	width := b.getBVLength(expr)

	if shift == 0 {
		return expr
	} else if shift >= width {
		return b.bvZero(width) // overshift to zero
	}
	return b.iteExpr(isSigned,
		b.concatExpr(b.bvMinusOne(shift), b.bvExtract(expr, width-1, shift)),
		b.bvRightShift(expr, shift))
}

// Shifts by a variable amount. Each is a demultiplexed chain of ITEs with
// one case per possible shift amount, guarded against overshift.

func (b *Builder) bvVarLeftShift(expr, shift AST) AST {
	width := b.getBVLength(expr)
	res := b.bvZero(width)

	for i := int(width) - 1; i >= 0; i-- {
		res = b.iteExpr(b.eqExpr(shift, b.bvConst32(width, uint32(i))), b.bvLeftShift(expr, uint(i)), res)
	}

	// If overshifting, shift to zero.
	ex := b.bvLtExpr(shift, b.bvConst32(b.getBVLength(shift), uint32(width)))
	return b.iteExpr(ex, res, b.bvZero(width))
}

func (b *Builder) bvVarRightShift(expr, shift AST) AST {
	width := b.getBVLength(expr)
	res := b.bvZero(width)

	for i := int(width) - 1; i >= 0; i-- {
		res = b.iteExpr(b.eqExpr(shift, b.bvConst32(width, uint32(i))), b.bvRightShift(expr, uint(i)), res)
	}

	// If overshifting, shift to zero.
	ex := b.bvLtExpr(shift, b.bvConst32(b.getBVLength(shift), uint32(width)))
	return b.iteExpr(ex, res, b.bvZero(width))
}

func (b *Builder) bvVarArithRightShift(expr, shift AST) AST {
	width := b.getBVLength(expr)

	// Extract the sign bit once and share it across every case.
	signedBool := b.bvBoolExtract(expr, width-1)

	res := b.constructAShrByConstant(expr, width-1, signedBool)
	for i := int(width) - 2; i >= 0; i-- {
		res = b.iteExpr(b.eqExpr(shift, b.bvConst32(width, uint32(i))),
			b.constructAShrByConstant(expr, uint(i), signedBool), res)
	}

	// If overshifting, shift to zero.
	ex := b.bvLtExpr(shift, b.bvConst32(b.getBVLength(shift), uint32(width)))
	return b.iteExpr(ex, res, b.bvZero(width))
}

// Boolean and bitvector operators.

func (b *Builder) notExpr(expr AST) AST {
	return b.wrapAST(C.Z3_mk_not(b.ctx, expr.raw))
}

func (b *Builder) bvNotExpr(expr AST) AST {
	return b.wrapAST(C.Z3_mk_bvnot(b.ctx, expr.raw))
}

func (b *Builder) andExpr(lhs, rhs AST) AST {
	args := [2]C.Z3_ast{lhs.raw, rhs.raw}
	return b.wrapAST(C.Z3_mk_and(b.ctx, 2, &args[0]))
}

func (b *Builder) orExpr(exprs ...AST) AST {
	args := make([]C.Z3_ast, len(exprs))
	for i, e := range exprs {
		args[i] = e.raw
	}
	return b.wrapAST(C.Z3_mk_or(b.ctx, C.uint(len(args)), &args[0]))
}

func (b *Builder) bvAndExpr(lhs, rhs AST) AST {
	return b.wrapAST(C.Z3_mk_bvand(b.ctx, lhs.raw, rhs.raw))
}

func (b *Builder) bvOrExpr(lhs, rhs AST) AST {
	return b.wrapAST(C.Z3_mk_bvor(b.ctx, lhs.raw, rhs.raw))
}

func (b *Builder) iffExpr(lhs, rhs AST) AST {
	lhsSort := C.Z3_get_sort(b.ctx, lhs.raw)
	rhsSort := C.Z3_get_sort(b.ctx, rhs.raw)
	assert(C.Z3_get_sort_kind(b.ctx, lhsSort) == C.Z3_get_sort_kind(b.ctx, rhsSort), "lhs and rhs sorts must match")
	assert(C.Z3_get_sort_kind(b.ctx, lhsSort) == C.Z3_BOOL_SORT, "args must have BOOL sort")
	return b.wrapAST(C.Z3_mk_iff(b.ctx, lhs.raw, rhs.raw))
}

func (b *Builder) bvXorExpr(lhs, rhs AST) AST {
	return b.wrapAST(C.Z3_mk_bvxor(b.ctx, lhs.raw, rhs.raw))
}

func (b *Builder) bvRedorExpr(expr AST) AST {
	return b.wrapAST(C.Z3_mk_bvredor(b.ctx, expr.raw))
}

func (b *Builder) bvSignExtend(src AST, width uint) AST {
	srcWidth := b.getBVLength(src)
	assert(srcWidth <= width, "attempted to extend longer data")
	return b.wrapAST(C.Z3_mk_sign_ext(b.ctx, C.uint(width-srcWidth), src.raw))
}

func (b *Builder) concatExpr(exprs ...AST) AST {
	assert(len(exprs) >= 2, "concat requires at least two operands")
	res := exprs[0].raw
	for _, e := range exprs[1:] {
		res = C.Z3_mk_concat(b.ctx, res, e.raw)
	}
	return b.wrapAST(res)
}

// Floating-point predicates and literals.

func (b *Builder) isNanExpr(expr AST) AST {
	return b.wrapAST(C.Z3_mk_fpa_is_nan(b.ctx, expr.raw))
}

func (b *Builder) isInfinityExpr(expr AST) AST {
	return b.wrapAST(C.Z3_mk_fpa_is_infinite(b.ctx, expr.raw))
}

func (b *Builder) isFPZeroExpr(expr AST) AST {
	return b.wrapAST(C.Z3_mk_fpa_is_zero(b.ctx, expr.raw))
}

func (b *Builder) isSubnormalExpr(expr AST) AST {
	return b.wrapAST(C.Z3_mk_fpa_is_subnormal(b.ctx, expr.raw))
}

func (b *Builder) isFPNegativeExpr(expr AST) AST {
	return b.wrapAST(C.Z3_mk_fpa_is_negative(b.ctx, expr.raw))
}

func (b *Builder) roundingModeAST(rm skolem.RoundingMode) AST {
	switch rm {
	case skolem.RoundTowardPositive:
		return b.wrapAST(C.Z3_mk_fpa_round_toward_positive(b.ctx))
	case skolem.RoundTowardNegative:
		return b.wrapAST(C.Z3_mk_fpa_round_toward_negative(b.ctx))
	case skolem.RoundTowardZero:
		return b.wrapAST(C.Z3_mk_fpa_round_toward_zero(b.ctx))
	case skolem.RoundNearestTiesToAway:
		return b.wrapAST(C.Z3_mk_fpa_round_nearest_ties_to_away(b.ctx))
	default:
		return b.wrapAST(C.Z3_mk_fpa_round_nearest_ties_to_even(b.ctx))
	}
}

func (b *Builder) fpNan(sort Sort) AST {
	return b.wrapAST(C.Z3_mk_fpa_nan(b.ctx, sort.raw))
}

func (b *Builder) fpZero(sort Sort) AST {
	return b.wrapAST(C.Z3_mk_fpa_zero(b.ctx, sort.raw, false))
}

// The f80 encoding: an array of length two indexed by one bit. Index 0
// holds the 79-bit number; index 1 holds fp-zero for a canonical integer
// bit and fp-NaN for an unnormal.

// mkF80Array packs a number and a sentinel into a fresh f80 array.
func (b *Builder) mkF80Array(num, sentinel AST) AST {
	sort := b.getFloatSort(skolem.Width80)

	cname := C.CString(f80SymbolName)
	defer C.free(unsafe.Pointer(cname))
	s := C.Z3_mk_string_symbol(b.ctx, cname)

	arr := b.wrapAST(C.Z3_mk_const(b.ctx, s, b.getArraySort(b.getBvSort(1), sort).raw))
	arr = b.writeExpr(arr, b.bvZero(1), num)
	return b.writeExpr(arr, b.bvOne(1), sentinel)
}

// f80Value reads the 79-bit number channel of an f80 array.
func (b *Builder) f80Value(arr AST) AST {
	return b.readExpr(arr, b.bvZero(1))
}

// f80Unnormal reads the sentinel channel of an f80 array as a boolean.
func (b *Builder) f80Unnormal(arr AST) AST {
	return b.isNanExpr(b.readExpr(arr, b.bvOne(1)))
}

// Arrays.

func (b *Builder) writeExpr(array, index, value AST) AST {
	return b.wrapAST(C.Z3_mk_store(b.ctx, array.raw, index.raw, value.raw))
}

func (b *Builder) readExpr(array, index AST) AST {
	return b.wrapAST(C.Z3_mk_select(b.ctx, array.raw, index.raw))
}

func (b *Builder) iteExpr(condition, whenTrue, whenFalse AST) AST {
	return b.wrapAST(C.Z3_mk_ite(b.ctx, condition.raw, whenTrue.raw, whenFalse.raw))
}

// getBVLength returns the width of a bitvector term in bits.
func (b *Builder) getBVLength(expr AST) uint {
	return uint(C.Z3_get_bv_sort_size(b.ctx, C.Z3_get_sort(b.ctx, expr.raw)))
}

// Comparisons.

func (b *Builder) bvLtExpr(lhs, rhs AST) AST {
	return b.wrapAST(C.Z3_mk_bvult(b.ctx, lhs.raw, rhs.raw))
}

func (b *Builder) bvLeExpr(lhs, rhs AST) AST {
	return b.wrapAST(C.Z3_mk_bvule(b.ctx, lhs.raw, rhs.raw))
}

func (b *Builder) sbvLtExpr(lhs, rhs AST) AST {
	return b.wrapAST(C.Z3_mk_bvslt(b.ctx, lhs.raw, rhs.raw))
}

func (b *Builder) sbvLeExpr(lhs, rhs AST) AST {
	return b.wrapAST(C.Z3_mk_bvsle(b.ctx, lhs.raw, rhs.raw))
}

// getInitialArray returns the solver constant representing the initial
// version of root, declaring and caching it on first use. Constant arrays
// are flushed by layering one store per element over the fresh constant.
func (b *Builder) getInitialArray(root *skolem.Array) AST {
	assert(root != nil, "nil array root")

	if v, ok := b.arrays.Get(root.ID); ok {
		return v.(AST)
	}

	// Unique arrays by name, using the current cache size as a counter
	// and truncating the root name to keep the total length at 32.
	uid := strconv.Itoa(b.arrays.Len())
	space := len(root.Name)
	if space > 32-len(uid) {
		space = 32 - len(uid)
	}
	uniqueName := root.Name[:space] + uid

	arrayExpr := b.buildArray(uniqueName, root.Domain, root.Range)

	if root.IsConstantArray() {
		// Flush the concrete values into the solver. Per-cell assertions
		// might be faster but interact badly with caching.
		for i, value := range root.ConstantValues {
			index, _ := b.construct(skolem.NewConstantExpr(uint64(i), root.Domain))
			v, _ := b.construct(value)
			arrayExpr = b.writeExpr(arrayExpr, index, v)
		}
	}

	b.arrays = b.arrays.Set(root.ID, arrayExpr.retain())
	return arrayExpr
}

// getArrayForUpdate returns the array expression for root with the update
// chain headed by un applied. The chain is walked iteratively so long
// update lists do not grow the stack.
func (b *Builder) getArrayForUpdate(root *skolem.Array, un *skolem.ArrayUpdate) AST {
	// Collect updates until a cached suffix (or the root) is found.
	var pending []*skolem.ArrayUpdate
	for ; un != nil; un = un.Next {
		if _, ok := b.updates[un]; ok {
			break
		}
		pending = append(pending, un)
	}

	var array AST
	if un == nil {
		array = b.getInitialArray(root)
	} else {
		array = b.updates[un]
	}

	// Apply the uncached updates oldest-first, caching each layer.
	for i := len(pending) - 1; i >= 0; i-- {
		upd := pending[i]
		index, _ := b.construct(upd.Index)
		value, _ := b.construct(upd.Value)
		array = b.writeExpr(array, index, value)
		b.updates[upd] = array.retain()
	}
	return array
}

// uint64Comparer compares two 64-bit unsigned integers. Implements immutable.Comparer.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b,
// and returns 0 if a is equal to b.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
