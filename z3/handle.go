package z3

/*
#include <z3.h>
*/
import "C"

// AST is a handle to a single Z3 term, bound to the owning Builder's
// context. Every handle holds one reference against Z3's reference-counted
// context; references acquired during a translation are tracked on the
// Builder's scope and dropped when the top-level call returns, while cache
// entries and handles returned to callers hold their own retained
// reference.
//
// Handles from different Builders must never mix.
type AST struct {
	b   *Builder
	raw C.Z3_ast
}

// wrapAST acquires a reference on raw and tracks it on the current scope.
func (b *Builder) wrapAST(raw C.Z3_ast) AST {
	C.Z3_inc_ref(b.ctx, raw)
	b.scope = append(b.scope, raw)
	return AST{b: b, raw: raw}
}

// retain acquires an extra reference that outlives the current scope.
func (a AST) retain() AST {
	C.Z3_inc_ref(a.b.ctx, a.raw)
	return a
}

// release drops a reference previously acquired with retain.
func (a AST) release() {
	C.Z3_dec_ref(a.b.ctx, a.raw)
}

// Release drops the caller-owned reference of a handle returned by an
// exported Builder method. The handle must not be used afterwards.
func (a AST) Release() {
	a.release()
}

// String returns the term in SMT-LIB form.
func (a AST) String() string {
	return C.GoString(C.Z3_ast_to_string(a.b.ctx, a.raw))
}

// Sort is a handle to a Z3 sort, bound to the owning Builder's context.
// Sorts participate in the same reference counting as terms.
type Sort struct {
	b   *Builder
	raw C.Z3_sort
}

// wrapSort acquires a reference on raw and tracks it on the current scope.
func (b *Builder) wrapSort(raw C.Z3_sort) Sort {
	ast := C.Z3_sort_to_ast(b.ctx, raw)
	C.Z3_inc_ref(b.ctx, ast)
	b.scope = append(b.scope, ast)
	return Sort{b: b, raw: raw}
}

// String returns the sort in SMT-LIB form.
func (s Sort) String() string {
	return C.GoString(C.Z3_sort_to_string(s.b.ctx, s.raw))
}

// scopeMark returns a marker for the current scope depth.
func (b *Builder) scopeMark() int {
	return len(b.scope)
}

// releaseScope drops every reference acquired since the given marker.
func (b *Builder) releaseScope(mark int) {
	for i := mark; i < len(b.scope); i++ {
		C.Z3_dec_ref(b.ctx, b.scope[i])
	}
	b.scope = b.scope[:mark]
}
