package z3

/*
#include <z3.h>
*/
import "C"

import (
	"fmt"
	"math"
	"os"

	"github.com/benbjohnson/skolem"
	"github.com/davecgh/go-spew/spew"
)

// Construct translates expr into a solver term and returns it with its
// width. A width of 1 denotes a boolean term. Any other width belongs to
// either a bitvector or a float term (an 80-bit float is packed into its
// array encoding); the width alone does not tell the two apart. The caller
// owns the returned handle and must Release it.
func (b *Builder) Construct(expr skolem.Expr) (AST, uint) {
	mark := b.scopeMark()
	ast, width := b.construct(expr)
	ast = ast.retain()
	b.releaseScope(mark)

	if b.AutoClearConstructCache {
		b.ClearConstructCache()
	}
	return ast, width
}

// construct is the memoised entry point used during recursion. Integer
// constants are rebuilt every time; everything else, float constants
// included, is keyed on node identity so a shared sub-DAG is translated once.
func (b *Builder) construct(expr skolem.Expr) (AST, uint) {
	if !b.UseConstructHash || skolem.IsConstantExpr(expr) {
		return b.constructActual(expr)
	}

	if entry, ok := b.constructed[expr]; ok {
		return entry.ast, entry.width
	}
	ast, width := b.constructActual(expr)
	b.constructed[expr] = constructed{ast: ast.retain(), width: width}
	return ast, width
}

// constructActual translates a single node, recursing through construct
// for its children.
func (b *Builder) constructActual(expr skolem.Expr) (AST, uint) {
	switch e := expr.(type) {
	case *skolem.ConstantExpr:
		return b.constructConstant(e)
	case *skolem.FConstantExpr:
		return b.constructFConstant(e)
	case *skolem.NotOptimizedExpr:
		return b.construct(e.Src)

	case *skolem.ReadExpr:
		root := e.Array
		assert(root != nil, "read from nil array")
		index, _ := b.construct(e.Index)
		return b.readExpr(b.getArrayForUpdate(root, root.Updates), index), root.Range

	case *skolem.SelectExpr:
		cond, _ := b.construct(e.Cond)
		whenTrue, width := b.construct(e.TrueExpr)
		whenFalse, _ := b.construct(e.FalseExpr)
		return b.iteExpr(cond, whenTrue, whenFalse), width

	case *skolem.FSelectExpr:
		cond, _ := b.construct(e.Cond)
		whenTrue, width := b.construct(e.TrueExpr)
		whenFalse, _ := b.construct(e.FalseExpr)
		return b.iteExpr(cond, whenTrue, whenFalse), width

	case *skolem.ConcatExpr:
		res, _ := b.construct(e.LSB)
		msb, _ := b.construct(e.MSB)
		return b.concatExpr(msb, res), skolem.ExprWidth(e)

	case *skolem.ExtractExpr:
		src, _ := b.construct(e.Expr)
		if e.Width == skolem.WidthBool {
			return b.bvBoolExtract(src, e.Offset), e.Width
		}
		return b.bvExtract(src, e.Offset+e.Width-1, e.Offset), e.Width

	case *skolem.CastExpr:
		return b.constructCast(e)
	case *skolem.FCastExpr:
		return b.constructFCast(e)
	case *skolem.ExplicitFloatExpr:
		return b.constructExplicitFloat(e)
	case *skolem.ExplicitIntExpr:
		return b.constructExplicitInt(e)
	case *skolem.FUnaryExpr:
		return b.constructFUnary(e)
	case *skolem.FClassifyExpr:
		return b.constructFClassify(e)

	case *skolem.NotExpr:
		src, width := b.construct(e.Expr)
		if width == skolem.WidthBool {
			return b.notExpr(src), width
		}
		return b.bvNotExpr(src), width

	case *skolem.BinaryExpr:
		return b.constructBinary(e)
	case *skolem.FBinaryExpr:
		return b.constructFBinary(e)
	case *skolem.FCompareExpr:
		return b.constructFCompare(e)

	default:
		spew.Fdump(os.Stderr, expr)
		panic(fmt.Sprintf("z3.Builder: unhandled expression type: %T", expr))
	}
}

// constructConstant emits an integer constant. Width 1 becomes a boolean
// literal; widths beyond 64 are emitted 64 bits at a time, least
// significant chunk first.
func (b *Builder) constructConstant(e *skolem.ConstantExpr) (AST, uint) {
	width := e.Width
	if width == skolem.WidthBool {
		if e.IsTrue() {
			return b.mkTrue(), width
		}
		return b.mkFalse(), width
	}

	// Fast paths.
	if width <= skolem.Width32 {
		return b.bvConst32(width, uint32(e.Value)), width
	}
	if width <= skolem.Width64 {
		return b.bvConst64(width, e.Value), width
	}

	res := b.bvConst64(skolem.Width64, e.Word(0))
	for i, remaining := 1, int(width)-64; remaining > 0; i, remaining = i+1, remaining-64 {
		w := uint(remaining)
		if w > skolem.Width64 {
			w = skolem.Width64
		}
		res = b.concatExpr(b.bvConst64(w, e.Word(i)), res)
	}
	return res, width
}

// constructFConstant emits a float constant. Widths 32 and 64 map to
// native numerals; width 80 splits the raw x87 pattern, drops the explicit
// integer bit and packs the result into the f80 array encoding.
func (b *Builder) constructFConstant(e *skolem.FConstantExpr) (AST, uint) {
	width := e.Width
	switch width {
	case skolem.Width32:
		return b.wrapAST(C.Z3_mk_fpa_numeral_float(b.ctx, C.float(e.Float32()), b.getFloatSort(width).raw)), width
	case skolem.Width64:
		return b.wrapAST(C.Z3_mk_fpa_numeral_double(b.ctx, C.double(e.Float64()), b.getFloatSort(width).raw)), width
	case skolem.Width80:
		sign, exp, mnt := e.F80Parts()
		correctHiddenBit := (exp == 0) == (mnt>>63&0x1 == 0)
		mnt &= 0x7FFFFFFFFFFFFFFF

		conv := b.wrapAST(C.Z3_mk_fpa_fp(b.ctx,
			b.bvConst32(1, sign).raw,
			b.bvConst32(15, exp).raw,
			b.bvConst64(63, mnt).raw))

		sort := b.getFloatSort(width)
		if correctHiddenBit {
			return b.mkF80Array(conv, b.fpZero(sort)), width
		}
		return b.mkF80Array(conv, b.fpNan(sort)), width
	default:
		panic(fmt.Sprintf("z3.Builder: invalid float constant width: %d", width))
	}
}

// constructCast emits a zero or sign extension. Boolean sources are
// coerced through an if-then-else since they carry no bits to extend.
func (b *Builder) constructCast(e *skolem.CastExpr) (AST, uint) {
	src, srcWidth := b.construct(e.Src)
	width := e.Width

	if e.Signed {
		if srcWidth == skolem.WidthBool {
			return b.iteExpr(src, b.bvMinusOne(width), b.bvZero(width)), width
		}
		return b.bvSignExtend(src, width), width
	}

	if srcWidth == skolem.WidthBool {
		return b.iteExpr(src, b.bvOne(width), b.bvZero(width)), width
	}
	return b.concatExpr(b.bvZero(width-srcWidth), src), width
}

func (b *Builder) constructFCast(e *skolem.FCastExpr) (AST, uint) {
	src, srcWidth := b.construct(e.Src)
	width := e.Width
	rm := b.roundingModeAST(e.Round)

	switch e.Op {
	case skolem.FEXT:
		sort := b.getFloatSort(width)
		if width == skolem.Width80 {
			num := b.wrapAST(C.Z3_mk_fpa_to_fp_float(b.ctx, rm.raw, src.raw, sort.raw))
			return b.mkF80Array(num, b.fpZero(sort)), width
		}
		if srcWidth == skolem.Width80 {
			// Casting an unnormal yields NaN.
			wrongHiddenBit := b.f80Unnormal(src)
			num := b.f80Value(src)
			return b.iteExpr(wrongHiddenBit, b.fpNan(sort),
				b.wrapAST(C.Z3_mk_fpa_to_fp_float(b.ctx, rm.raw, num.raw, sort.raw))), width
		}
		return b.wrapAST(C.Z3_mk_fpa_to_fp_float(b.ctx, rm.raw, src.raw, sort.raw)), width

	case skolem.FTOU:
		if srcWidth == skolem.Width80 {
			// Casting an unnormal yields zero.
			wrongHiddenBit := b.f80Unnormal(src)
			num := b.f80Value(src)
			return b.iteExpr(wrongHiddenBit, b.bvZero(width),
				b.wrapAST(C.Z3_mk_fpa_to_ubv(b.ctx, rm.raw, num.raw, C.uint(width)))), width
		}
		return b.wrapAST(C.Z3_mk_fpa_to_ubv(b.ctx, rm.raw, src.raw, C.uint(width))), width

	case skolem.FTOS:
		if srcWidth == skolem.Width80 {
			// Casting an unnormal yields the least value for 32- and 64-bit
			// targets and zero for every other target width, matching x87.
			wrongHiddenBit := b.f80Unnormal(src)
			num := b.f80Value(src)
			conv := b.wrapAST(C.Z3_mk_fpa_to_sbv(b.ctx, rm.raw, num.raw, C.uint(width)))
			switch width {
			case skolem.Width32:
				minInt := int64(math.MinInt32)
				return b.iteExpr(wrongHiddenBit, b.bvSExtConst(width, uint64(minInt)), conv), width
			case skolem.Width64:
				minInt := int64(math.MinInt64)
				return b.iteExpr(wrongHiddenBit, b.bvSExtConst(width, uint64(minInt)), conv), width
			default:
				return b.iteExpr(wrongHiddenBit, b.bvZero(width), conv), width
			}
		}
		return b.wrapAST(C.Z3_mk_fpa_to_sbv(b.ctx, rm.raw, src.raw, C.uint(width))), width

	case skolem.UTOF:
		sort := b.getFloatSort(width)
		if width == skolem.Width80 {
			num := b.wrapAST(C.Z3_mk_fpa_to_fp_unsigned(b.ctx, rm.raw, src.raw, sort.raw))
			return b.mkF80Array(num, b.fpZero(sort)), width
		}
		return b.wrapAST(C.Z3_mk_fpa_to_fp_unsigned(b.ctx, rm.raw, src.raw, sort.raw)), width

	case skolem.STOF:
		sort := b.getFloatSort(width)
		if width == skolem.Width80 {
			num := b.wrapAST(C.Z3_mk_fpa_to_fp_signed(b.ctx, rm.raw, src.raw, sort.raw))
			return b.mkF80Array(num, b.fpZero(sort)), width
		}
		return b.wrapAST(C.Z3_mk_fpa_to_fp_signed(b.ctx, rm.raw, src.raw, sort.raw)), width

	default:
		panic(fmt.Sprintf("z3.Builder: invalid float cast op: %s", e.Op))
	}
}

// constructExplicitFloat reinterprets integer bits as a float. At width 80
// the explicit integer bit is discarded to form a 79-bit number, and the
// sentinel records whether it agreed with its canonical value.
func (b *Builder) constructExplicitFloat(e *skolem.ExplicitFloatExpr) (AST, uint) {
	src, width := b.construct(e.Src)
	sort := b.getFloatSort(width)

	if width == skolem.Width80 {
		sign := b.bvExtract(src, 79, 79)
		exp := b.bvExtract(src, 78, 64)
		hiddenBit := b.bvExtract(src, 63, 63)
		mnt := b.bvExtract(src, 62, 0)

		// The integer bit is canonical when it is 0 for a zero exponent
		// and 1 otherwise.
		correctHiddenBit := b.eqExpr(hiddenBit,
			b.iteExpr(b.eqExpr(b.bvRedorExpr(exp), b.bvZero(1)), b.bvZero(1), b.bvOne(1)))

		num := b.wrapAST(C.Z3_mk_fpa_to_fp_bv(b.ctx, b.concatExpr(sign, exp, mnt).raw, sort.raw))
		return b.mkF80Array(num, b.iteExpr(correctHiddenBit, b.fpZero(sort), b.fpNan(sort))), width
	}

	return b.wrapAST(C.Z3_mk_fpa_to_fp_bv(b.ctx, src.raw, sort.raw)), width
}

// constructExplicitInt reinterprets a float as its IEEE bits. At width 80
// the canonical integer bit is re-inserted between exponent and mantissa;
// an unnormal does not survive this path.
func (b *Builder) constructExplicitInt(e *skolem.ExplicitIntExpr) (AST, uint) {
	src, width := b.construct(e.Src)

	if width == skolem.Width80 {
		ret := b.wrapAST(C.Z3_mk_fpa_to_ieee_bv(b.ctx, b.f80Value(src).raw))

		sign := b.bvExtract(ret, 78, 78)
		exp := b.bvExtract(ret, 77, 63)
		mnt := b.bvExtract(ret, 62, 0)

		// If the exponent is all zeros, bit 63 has to be 0, else it has to be 1.
		hidden := b.iteExpr(b.eqExpr(b.bvRedorExpr(exp), b.bvZero(1)), b.bvZero(1), b.bvOne(1))

		ret = b.concatExpr(sign, exp, hidden, mnt)
		assert(b.getBVLength(ret) == skolem.Width80, "width mismatch: f80 reassembly yields %d bits", b.getBVLength(ret))
		return ret, width
	}

	return b.wrapAST(C.Z3_mk_fpa_to_ieee_bv(b.ctx, src.raw)), width
}

func (b *Builder) constructFUnary(e *skolem.FUnaryExpr) (AST, uint) {
	src, width := b.construct(e.Expr)
	assert(width == skolem.Width32 || width == skolem.Width64 || width == skolem.Width80, "non-float argument to %s", e.Op)

	switch e.Op {
	case skolem.FABS:
		// fabs rewrites the sign without reading the rest of the operand,
		// so the sentinel channel passes through unchanged.
		if width == skolem.Width80 {
			return b.writeExpr(src, b.bvZero(1), b.wrapAST(C.Z3_mk_fpa_abs(b.ctx, b.f80Value(src).raw))), width
		}
		return b.wrapAST(C.Z3_mk_fpa_abs(b.ctx, src.raw)), width

	case skolem.FSQRT:
		rm := b.roundingModeAST(e.Round)
		if width == skolem.Width80 {
			sort := b.getFloatSort(width)
			wrongHiddenBit := b.f80Unnormal(src)
			num := b.f80Value(src)
			result := b.iteExpr(wrongHiddenBit, b.fpNan(sort),
				b.wrapAST(C.Z3_mk_fpa_sqrt(b.ctx, rm.raw, num.raw)))
			return b.mkF80Array(result, b.fpZero(sort)), width
		}
		return b.wrapAST(C.Z3_mk_fpa_sqrt(b.ctx, rm.raw, src.raw)), width

	case skolem.FNEARBYINT:
		rm := b.roundingModeAST(e.Round)
		if width == skolem.Width80 {
			sort := b.getFloatSort(width)
			wrongHiddenBit := b.f80Unnormal(src)
			num := b.f80Value(src)
			result := b.iteExpr(wrongHiddenBit, b.fpNan(sort),
				b.wrapAST(C.Z3_mk_fpa_round_to_integral(b.ctx, rm.raw, num.raw)))
			return b.mkF80Array(result, b.fpZero(sort)), width
		}
		return b.wrapAST(C.Z3_mk_fpa_round_to_integral(b.ctx, rm.raw, src.raw)), width

	default:
		panic(fmt.Sprintf("z3.Builder: invalid float unary op: %s", e.Op))
	}
}

func (b *Builder) constructFClassify(e *skolem.FClassifyExpr) (AST, uint) {
	src, width := b.construct(e.Expr)
	assert(width == skolem.Width32 || width == skolem.Width64 || width == skolem.Width80, "non-float argument to %s", e.Op)

	switch e.Op {
	case skolem.FPCLASSIFY:
		// Classification ignores unnormals.
		if width == skolem.Width80 {
			src = b.f80Value(src)
		}
		width = skolem.Width32
		return b.iteExpr(b.isNanExpr(src), b.bvSExtConst(width, skolem.ClassNaN),
			b.iteExpr(b.isInfinityExpr(src), b.bvSExtConst(width, skolem.ClassInfinite),
				b.iteExpr(b.isFPZeroExpr(src), b.bvSExtConst(width, skolem.ClassZero),
					b.iteExpr(b.isSubnormalExpr(src), b.bvSExtConst(width, skolem.ClassSubnormal),
						b.bvSExtConst(width, skolem.ClassNormal))))), width

	case skolem.FISFINITE:
		if width == skolem.Width80 {
			src = b.f80Value(src)
		}
		width = skolem.Width32
		return b.iteExpr(b.orExpr(b.isNanExpr(src), b.isInfinityExpr(src)),
			b.bvZero(width), b.bvOne(width)), width

	case skolem.FISNAN:
		if width == skolem.Width80 {
			src = b.f80Value(src)
		}
		width = skolem.Width32
		return b.iteExpr(b.isNanExpr(src), b.bvOne(width), b.bvZero(width)), width

	case skolem.FISINF:
		// isinf does distinguish unnormals: they are not infinite.
		if width == skolem.Width80 {
			wrongHiddenBit := b.f80Unnormal(src)
			num := b.f80Value(src)
			width = skolem.Width32
			return b.iteExpr(wrongHiddenBit, b.bvZero(width),
				b.iteExpr(b.isInfinityExpr(num),
					b.iteExpr(b.isFPNegativeExpr(num), b.bvMinusOne(width), b.bvOne(width)),
					b.bvZero(width))), width
		}
		width = skolem.Width32
		return b.iteExpr(b.isInfinityExpr(src),
			b.iteExpr(b.isFPNegativeExpr(src), b.bvMinusOne(width), b.bvOne(width)),
			b.bvZero(width)), width

	default:
		panic(fmt.Sprintf("z3.Builder: invalid float classify op: %s", e.Op))
	}
}

func (b *Builder) constructBinary(e *skolem.BinaryExpr) (AST, uint) {
	switch e.Op {
	case skolem.ADD:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		assert(width != skolem.WidthBool, "uncanonicalized add")
		result := b.wrapAST(C.Z3_mk_bvadd(b.ctx, left.raw, right.raw))
		assert(b.getBVLength(result) == width, "width mismatch")
		return result, width

	case skolem.SUB:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		assert(width != skolem.WidthBool, "uncanonicalized sub")
		result := b.wrapAST(C.Z3_mk_bvsub(b.ctx, left.raw, right.raw))
		assert(b.getBVLength(result) == width, "width mismatch")
		return result, width

	case skolem.MUL:
		right, width := b.construct(e.RHS)
		assert(width != skolem.WidthBool, "uncanonicalized mul")
		left, _ := b.construct(e.LHS)
		result := b.wrapAST(C.Z3_mk_bvmul(b.ctx, left.raw, right.raw))
		assert(b.getBVLength(result) == width, "width mismatch")
		return result, width

	case skolem.UDIV:
		left, width := b.construct(e.LHS)
		assert(width != skolem.WidthBool, "uncanonicalized udiv")

		if ce, ok := e.RHS.(*skolem.ConstantExpr); ok && ce.Width <= skolem.Width64 && ce.IsPowerOfTwo() {
			return b.bvRightShift(left, ce.Log2()), width
		}

		right, _ := b.construct(e.RHS)
		result := b.wrapAST(C.Z3_mk_bvudiv(b.ctx, left.raw, right.raw))
		assert(b.getBVLength(result) == width, "width mismatch")
		return result, width

	case skolem.SDIV:
		left, width := b.construct(e.LHS)
		assert(width != skolem.WidthBool, "uncanonicalized sdiv")
		right, _ := b.construct(e.RHS)
		result := b.wrapAST(C.Z3_mk_bvsdiv(b.ctx, left.raw, right.raw))
		assert(b.getBVLength(result) == width, "width mismatch")
		return result, width

	case skolem.UREM:
		left, width := b.construct(e.LHS)
		assert(width != skolem.WidthBool, "uncanonicalized urem")

		if ce, ok := e.RHS.(*skolem.ConstantExpr); ok && ce.Width <= skolem.Width64 && ce.IsPowerOfTwo() {
			bits := ce.Log2()
			// Special case for modding by 1 or else we extract bits -1:0.
			if bits == 0 {
				return b.bvZero(width), width
			}
			return b.concatExpr(b.bvZero(width-bits), b.bvExtract(left, bits-1, 0)), width
		}

		right, _ := b.construct(e.RHS)
		result := b.wrapAST(C.Z3_mk_bvurem(b.ctx, left.raw, right.raw))
		assert(b.getBVLength(result) == width, "width mismatch")
		return result, width

	case skolem.SREM:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		assert(width != skolem.WidthBool, "uncanonicalized srem")
		// The sign of the remainder follows the dividend, which is also
		// what Z3's bvsrem does.
		result := b.wrapAST(C.Z3_mk_bvsrem(b.ctx, left.raw, right.raw))
		assert(b.getBVLength(result) == width, "width mismatch")
		return result, width

	case skolem.AND:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		if width == skolem.WidthBool {
			return b.andExpr(left, right), width
		}
		return b.bvAndExpr(left, right), width

	case skolem.OR:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		if width == skolem.WidthBool {
			return b.orExpr(left, right), width
		}
		return b.bvOrExpr(left, right), width

	case skolem.XOR:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		if width == skolem.WidthBool {
			// Boolean xor is not primitive everywhere; this form is canonical.
			return b.iteExpr(left, b.notExpr(right), right), width
		}
		return b.bvXorExpr(left, right), width

	case skolem.SHL:
		left, width := b.construct(e.LHS)
		assert(width != skolem.WidthBool, "uncanonicalized shl")
		if ce, ok := e.RHS.(*skolem.ConstantExpr); ok {
			return b.bvLeftShift(left, uint(ce.Value)), width
		}
		amount, _ := b.construct(e.RHS)
		return b.bvVarLeftShift(left, amount), width

	case skolem.LSHR:
		left, width := b.construct(e.LHS)
		assert(width != skolem.WidthBool, "uncanonicalized lshr")
		if ce, ok := e.RHS.(*skolem.ConstantExpr); ok {
			return b.bvRightShift(left, uint(ce.Value)), width
		}
		amount, _ := b.construct(e.RHS)
		return b.bvVarRightShift(left, amount), width

	case skolem.ASHR:
		left, width := b.construct(e.LHS)
		assert(width != skolem.WidthBool, "uncanonicalized ashr")
		if ce, ok := e.RHS.(*skolem.ConstantExpr); ok {
			signedBool := b.bvBoolExtract(left, width-1)
			return b.constructAShrByConstant(left, uint(ce.Value), signedBool), width
		}
		amount, _ := b.construct(e.RHS)
		return b.bvVarArithRightShift(left, amount), width

	case skolem.EQ:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		if width == skolem.WidthBool {
			if ce, ok := e.LHS.(*skolem.ConstantExpr); ok {
				if ce.IsTrue() {
					return right, skolem.WidthBool
				}
				return b.notExpr(right), skolem.WidthBool
			}
			return b.iffExpr(left, right), skolem.WidthBool
		}
		return b.eqExpr(left, right), skolem.WidthBool

	case skolem.ULT:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		assert(width != skolem.WidthBool, "uncanonicalized ult")
		return b.bvLtExpr(left, right), skolem.WidthBool

	case skolem.ULE:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		assert(width != skolem.WidthBool, "uncanonicalized ule")
		return b.bvLeExpr(left, right), skolem.WidthBool

	case skolem.SLT:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		assert(width != skolem.WidthBool, "uncanonicalized slt")
		return b.sbvLtExpr(left, right), skolem.WidthBool

	case skolem.SLE:
		left, width := b.construct(e.LHS)
		right, _ := b.construct(e.RHS)
		assert(width != skolem.WidthBool, "uncanonicalized sle")
		return b.sbvLeExpr(left, right), skolem.WidthBool

	default:
		// NE, UGT, UGE, SGT and SGE are rewritten into their duals when
		// expressions are built; reaching one here is a caller bug.
		spew.Fdump(os.Stderr, e)
		panic(fmt.Sprintf("z3.Builder: unhandled binary operation: %s", e.Op))
	}
}

// fpBinary emits the native float operation for op. The remainder, min and
// max operations take no rounding mode.
func (b *Builder) fpBinary(op skolem.FBinaryOp, rm, left, right AST) AST {
	switch op {
	case skolem.FADD:
		return b.wrapAST(C.Z3_mk_fpa_add(b.ctx, rm.raw, left.raw, right.raw))
	case skolem.FSUB:
		return b.wrapAST(C.Z3_mk_fpa_sub(b.ctx, rm.raw, left.raw, right.raw))
	case skolem.FMUL:
		return b.wrapAST(C.Z3_mk_fpa_mul(b.ctx, rm.raw, left.raw, right.raw))
	case skolem.FDIV:
		return b.wrapAST(C.Z3_mk_fpa_div(b.ctx, rm.raw, left.raw, right.raw))
	case skolem.FREM:
		return b.wrapAST(C.Z3_mk_fpa_rem(b.ctx, left.raw, right.raw))
	case skolem.FMIN:
		return b.wrapAST(C.Z3_mk_fpa_min(b.ctx, left.raw, right.raw))
	case skolem.FMAX:
		return b.wrapAST(C.Z3_mk_fpa_max(b.ctx, left.raw, right.raw))
	default:
		panic(fmt.Sprintf("z3.Builder: invalid float binary op: %s", op))
	}
}

func (b *Builder) constructFBinary(e *skolem.FBinaryExpr) (AST, uint) {
	left, width := b.construct(e.LHS)
	right, _ := b.construct(e.RHS)
	assert(width == skolem.Width32 || width == skolem.Width64 || width == skolem.Width80, "non-float argument to %s", e.Op)

	rm := b.roundingModeAST(e.Round)
	if width != skolem.Width80 {
		return b.fpBinary(e.Op, rm, left, right), width
	}

	sort := b.getFloatSort(width)
	switch e.Op {
	case skolem.FMIN, skolem.FMAX:
		// If one operand is unnormal the result is the other operand; if
		// both are, the result is the left one.
		wrongHiddenBitLeft := b.f80Unnormal(left)
		wrongHiddenBitRight := b.f80Unnormal(right)
		l, r := b.f80Value(left), b.f80Value(right)
		result := b.iteExpr(wrongHiddenBitLeft,
			b.iteExpr(wrongHiddenBitRight, l, r),
			b.iteExpr(wrongHiddenBitRight, l, b.fpBinary(e.Op, rm, l, r)))
		return b.mkF80Array(result, b.fpZero(sort)), width

	default:
		wrongHiddenBit := b.orExpr(b.f80Unnormal(left), b.f80Unnormal(right))
		l, r := b.f80Value(left), b.f80Value(right)
		result := b.iteExpr(wrongHiddenBit, b.fpNan(sort), b.fpBinary(e.Op, rm, l, r))
		return b.mkF80Array(result, b.fpZero(sort)), width
	}
}

func (b *Builder) constructFCompare(e *skolem.FCompareExpr) (AST, uint) {
	left, width := b.construct(e.LHS)
	right, _ := b.construct(e.RHS)
	assert(width == skolem.Width32 || width == skolem.Width64 || width == skolem.Width80, "non-float argument to %s", e.Op)

	f80 := width == skolem.Width80
	var wrongHiddenBit AST
	if f80 {
		wrongHiddenBit = b.orExpr(b.f80Unnormal(left), b.f80Unnormal(right))
		left = b.f80Value(left)
		right = b.f80Value(right)
	}

	switch e.Op {
	case skolem.FORD:
		// Orderedness ignores unnormals; it only asks about NaN.
		return b.andExpr(b.notExpr(b.isNanExpr(left)), b.notExpr(b.isNanExpr(right))), skolem.WidthBool
	case skolem.FUNO:
		return b.orExpr(b.isNanExpr(left), b.isNanExpr(right)), skolem.WidthBool
	}

	var cmp AST
	switch e.Op {
	case skolem.FOEQ, skolem.FUEQ, skolem.FONE, skolem.FUNE:
		cmp = b.wrapAST(C.Z3_mk_fpa_eq(b.ctx, left.raw, right.raw))
	case skolem.FOGT, skolem.FUGT:
		cmp = b.wrapAST(C.Z3_mk_fpa_gt(b.ctx, left.raw, right.raw))
	case skolem.FOGE, skolem.FUGE:
		cmp = b.wrapAST(C.Z3_mk_fpa_geq(b.ctx, left.raw, right.raw))
	case skolem.FOLT, skolem.FULT:
		cmp = b.wrapAST(C.Z3_mk_fpa_lt(b.ctx, left.raw, right.raw))
	case skolem.FOLE, skolem.FULE:
		cmp = b.wrapAST(C.Z3_mk_fpa_leq(b.ctx, left.raw, right.raw))
	default:
		panic(fmt.Sprintf("z3.Builder: invalid float comparison op: %s", e.Op))
	}

	switch e.Op {
	case skolem.FOEQ, skolem.FOGT, skolem.FOGE, skolem.FOLT, skolem.FOLE:
		result := cmp
		if f80 {
			result = b.andExpr(b.notExpr(wrongHiddenBit), result)
		}
		return result, skolem.WidthBool

	case skolem.FONE:
		result := b.notExpr(b.orExpr(b.isNanExpr(left), b.isNanExpr(right), cmp))
		if f80 {
			result = b.andExpr(b.notExpr(wrongHiddenBit), result)
		}
		return result, skolem.WidthBool

	case skolem.FUEQ, skolem.FUGT, skolem.FUGE, skolem.FULT, skolem.FULE:
		result := b.orExpr(b.isNanExpr(left), b.isNanExpr(right), cmp)
		if f80 {
			result = b.andExpr(b.notExpr(wrongHiddenBit), result)
		}
		return result, skolem.WidthBool

	default: // FUNE
		// Unordered not-equal is the one comparison that holds on
		// unnormal operands.
		result := b.notExpr(cmp)
		if f80 {
			result = b.orExpr(wrongHiddenBit, result)
		}
		return result, skolem.WidthBool
	}
}
