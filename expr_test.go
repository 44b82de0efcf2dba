package skolem_test

import (
	"testing"

	"github.com/benbjohnson/skolem"
	"github.com/google/go-cmp/cmp"
)

func TestExprWidth(t *testing.T) {
	t.Run("ConstantExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.ConstantExpr{Value: 0, Width: 8}); w != 8 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("FConstantExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(skolem.NewFloat64ConstantExpr(1.5)); w != 64 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("NotOptimizedExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.NotOptimizedExpr{Src: &skolem.ConstantExpr{Value: 0, Width: 8}}); w != 8 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("ReadExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.ReadExpr{Array: skolem.NewArray(0, "x", 4)}); w != 8 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("SelectExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.SelectExpr{
			Cond:      skolem.NewBoolConstantExpr(true),
			TrueExpr:  skolem.NewConstantExpr32(1),
			FalseExpr: skolem.NewConstantExpr32(2),
		}); w != 32 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("FSelectExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.FSelectExpr{
			Cond:      skolem.NewBoolConstantExpr(true),
			TrueExpr:  skolem.NewFloat32ConstantExpr(1),
			FalseExpr: skolem.NewFloat32ConstantExpr(2),
		}); w != 32 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("ConcatExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.ConcatExpr{
			MSB: &skolem.ConstantExpr{Value: 0, Width: 8},
			LSB: &skolem.ConstantExpr{Value: 0, Width: 16},
		}); w != 24 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("ExtractExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.ExtractExpr{
			Expr:   &skolem.ConstantExpr{Value: 0, Width: 32},
			Offset: 8,
			Width:  16,
		}); w != 16 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("FCastExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.FCastExpr{
			Op:    skolem.FEXT,
			Src:   skolem.NewFloat32ConstantExpr(1),
			Width: 64,
		}); w != 64 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("ExplicitFloatExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.ExplicitFloatExpr{Src: skolem.NewConstantExpr32(0)}); w != 32 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("ExplicitIntExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.ExplicitIntExpr{Src: skolem.NewFloat64ConstantExpr(0)}); w != 64 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("FClassifyExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.FClassifyExpr{Op: skolem.FISNAN, Expr: skolem.NewFloat64ConstantExpr(0)}); w != 32 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("FBinaryExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.FBinaryExpr{
			Op:  skolem.FADD,
			LHS: skolem.NewFloat64ConstantExpr(1),
			RHS: skolem.NewFloat64ConstantExpr(2),
		}); w != 64 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("FCompareExpr", func(t *testing.T) {
		if w := skolem.ExprWidth(&skolem.FCompareExpr{
			Op:  skolem.FOLT,
			LHS: skolem.NewFloat64ConstantExpr(1),
			RHS: skolem.NewFloat64ConstantExpr(2),
		}); w != 1 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("BinaryExpr", func(t *testing.T) {
		t.Run("Bool", func(t *testing.T) {
			if w := skolem.ExprWidth(&skolem.BinaryExpr{
				Op:  skolem.EQ,
				LHS: &skolem.ConstantExpr{Value: 0, Width: 8},
				RHS: &skolem.ConstantExpr{Value: 0, Width: 8},
			}); w != 1 {
				t.Fatalf("unexpected width: %d", w)
			}
		})
		t.Run("Arithmetic", func(t *testing.T) {
			if w := skolem.ExprWidth(&skolem.BinaryExpr{
				Op:  skolem.ADD,
				LHS: &skolem.ConstantExpr{Value: 0, Width: 8},
				RHS: &skolem.ConstantExpr{Value: 0, Width: 8},
			}); w != 8 {
				t.Fatalf("unexpected width: %d", w)
			}
		})
	})
}

func TestNewBinaryExpr_Canonicalization(t *testing.T) {
	x := symbolicByte(t)

	t.Run("NE", func(t *testing.T) {
		expr := skolem.NewBinaryExpr(skolem.NE, x, skolem.NewConstantExpr8(1))
		if containsOp(expr, skolem.NE) {
			t.Fatalf("ne survived canonicalization: %s", expr)
		}
	})
	t.Run("UGT", func(t *testing.T) {
		expr := skolem.NewBinaryExpr(skolem.UGT, x, skolem.NewConstantExpr8(1))
		be, ok := expr.(*skolem.BinaryExpr)
		if !ok || be.Op != skolem.ULT {
			t.Fatalf("expected reversed ult, got %s", expr)
		}
	})
	t.Run("SGE", func(t *testing.T) {
		expr := skolem.NewBinaryExpr(skolem.SGE, x, skolem.NewConstantExpr8(1))
		be, ok := expr.(*skolem.BinaryExpr)
		if !ok || be.Op != skolem.SLE {
			t.Fatalf("expected reversed sle, got %s", expr)
		}
	})
}

func TestNewBinaryExpr_ConstantFold(t *testing.T) {
	t.Run("Add", func(t *testing.T) {
		expr := skolem.NewBinaryExpr(skolem.ADD, skolem.NewConstantExpr32(2), skolem.NewConstantExpr32(3))
		if diff := cmp.Diff(expr, skolem.NewConstantExpr32(5)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("Eq", func(t *testing.T) {
		expr := skolem.NewBinaryExpr(skolem.EQ, skolem.NewConstantExpr32(5), skolem.NewConstantExpr32(5))
		if !skolem.IsConstantTrue(expr) {
			t.Fatalf("expected true, got %s", expr)
		}
	})
	t.Run("SubSelf", func(t *testing.T) {
		x := symbolicByte(t)
		expr := skolem.NewBinaryExpr(skolem.SUB, x, x)
		if diff := cmp.Diff(expr, skolem.NewConstantExpr8(0)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("UDiv", func(t *testing.T) {
		expr := skolem.NewBinaryExpr(skolem.UDIV, skolem.NewConstantExpr32(42), skolem.NewConstantExpr32(7))
		if diff := cmp.Diff(expr, skolem.NewConstantExpr32(6)); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestConstantExpr_Wide(t *testing.T) {
	t.Run("Words", func(t *testing.T) {
		c := skolem.NewWideConstantExpr([]uint64{0x1122334455667788, 0xAABB}, 80)
		if c.Width != 80 {
			t.Fatalf("unexpected width: %d", c.Width)
		} else if c.Word(0) != 0x1122334455667788 {
			t.Fatalf("unexpected low word: %x", c.Word(0))
		} else if c.Word(1) != 0xAABB {
			t.Fatalf("unexpected high word: %x", c.Word(1))
		}
	})
	t.Run("MaskedHighWord", func(t *testing.T) {
		c := skolem.NewWideConstantExpr([]uint64{0, 0xFFFFFFFF}, 80)
		if c.Word(1) != 0xFFFF {
			t.Fatalf("high word not masked: %x", c.Word(1))
		}
	})
	t.Run("Compare", func(t *testing.T) {
		a := skolem.NewWideConstantExpr([]uint64{1, 2}, 128)
		b := skolem.NewWideConstantExpr([]uint64{2, 2}, 128)
		if cmp := skolem.CompareExpr(a, b); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})
}

func TestConstantExpr_PowerOfTwo(t *testing.T) {
	for _, tt := range []struct {
		value uint64
		ok    bool
		log2  uint
	}{
		{1, true, 0},
		{2, true, 1},
		{8, true, 3},
		{0x8000000000000000 >> 16, true, 47},
		{0, false, 0},
		{3, false, 0},
	} {
		c := skolem.NewConstantExpr64(tt.value)
		if c.IsPowerOfTwo() != tt.ok {
			t.Fatalf("IsPowerOfTwo(%d)=%v", tt.value, c.IsPowerOfTwo())
		}
		if tt.ok && c.Log2() != tt.log2 {
			t.Fatalf("Log2(%d)=%d, expected %d", tt.value, c.Log2(), tt.log2)
		}
	}
}

func TestCompareExpr(t *testing.T) {
	t.Run("Identity", func(t *testing.T) {
		x := symbolicByte(t)
		if cmp := skolem.CompareExpr(x, x); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})
	t.Run("KindOrder", func(t *testing.T) {
		a := skolem.NewConstantExpr8(1)
		b := skolem.NewFloat32ConstantExpr(1)
		if cmp := skolem.CompareExpr(a, b); cmp != -1 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})
	t.Run("FBinary", func(t *testing.T) {
		a := skolem.NewFBinaryExpr(skolem.FADD, skolem.RoundNearestTiesToEven, skolem.NewFloat64ConstantExpr(1), skolem.NewFloat64ConstantExpr(2))
		b := skolem.NewFBinaryExpr(skolem.FADD, skolem.RoundNearestTiesToEven, skolem.NewFloat64ConstantExpr(1), skolem.NewFloat64ConstantExpr(2))
		if cmp := skolem.CompareExpr(a, b); cmp != 0 {
			t.Fatalf("unexpected compare: %d", cmp)
		}
	})
}

func TestFindArrays(t *testing.T) {
	a := skolem.NewArray(1, "a", 4)
	b := skolem.NewArray(2, "b", 4)

	exprs := []skolem.Expr{
		skolem.NewBinaryExpr(skolem.EQ,
			a.Select(skolem.NewConstantExpr64(0), 8, false),
			b.Select(skolem.NewConstantExpr64(0), 8, false),
		),
	}
	arrays := skolem.FindArrays(exprs...)
	if len(arrays) != 2 {
		t.Fatalf("unexpected array count: %d", len(arrays))
	} else if arrays[0].ID != 1 || arrays[1].ID != 2 {
		t.Fatalf("unexpected array order: %d, %d", arrays[0].ID, arrays[1].ID)
	}
}

func TestExprEvaluator(t *testing.T) {
	t.Run("Integer", func(t *testing.T) {
		a := skolem.NewArray(1, "a", 1)
		ee := skolem.NewExprEvaluator([]*skolem.Array{a}, [][]byte{{7}})

		expr := skolem.NewBinaryExpr(skolem.ADD,
			a.Select(skolem.NewConstantExpr64(0), 8, false),
			skolem.NewConstantExpr8(1),
		)
		if value, err := ee.Evaluate(expr); err != nil {
			t.Fatal(err)
		} else if value.Value != 8 {
			t.Fatalf("unexpected value: %d", value.Value)
		}
	})
	t.Run("Select", func(t *testing.T) {
		ee := skolem.NewExprEvaluator(nil, nil)
		expr := &skolem.SelectExpr{
			Cond:      skolem.NewBoolConstantExpr(false),
			TrueExpr:  skolem.NewConstantExpr32(1),
			FalseExpr: skolem.NewConstantExpr32(2),
		}
		if value, err := ee.Evaluate(expr); err != nil {
			t.Fatal(err)
		} else if value.Value != 2 {
			t.Fatalf("unexpected value: %d", value.Value)
		}
	})
	t.Run("Float", func(t *testing.T) {
		ee := skolem.NewExprEvaluator(nil, nil)
		if _, err := ee.Evaluate(skolem.NewFloat64ConstantExpr(1)); err == nil {
			t.Fatal("expected error for float expression")
		}
	})
}

// symbolicByte returns a one-byte read from a fresh symbolic array.
func symbolicByte(tb testing.TB) skolem.Expr {
	tb.Helper()
	return skolem.NewArray(100, "x", 1).Select(skolem.NewConstantExpr64(0), 8, false)
}

// containsOp returns true if any binary node in expr uses op.
func containsOp(expr skolem.Expr, op skolem.BinaryOp) bool {
	found := false
	skolem.WalkExpr(opVisitor{op: op, found: &found}, expr)
	return found
}

type opVisitor struct {
	op    skolem.BinaryOp
	found *bool
}

func (v opVisitor) Visit(expr skolem.Expr) (skolem.Expr, skolem.ExprVisitor) {
	if be, ok := expr.(*skolem.BinaryExpr); ok && be.Op == v.op {
		*v.found = true
	}
	return expr, v
}
