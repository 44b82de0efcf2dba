package z3

/*
#include <z3.h>
*/
import "C"

import (
	"fmt"
	"os"
)

// goZ3ErrorHandler receives every error Z3 reports against a context built
// by this package. A cancellation means the enclosing query hit its time
// limit; it surfaces through the check result instead, so the handler
// returns silently. Anything else is incorrect use of the solver and
// aborts: no partial AST is ever produced.
//
//export goZ3ErrorHandler
func goZ3ErrorHandler(ctx C.Z3_context, ec C.Z3_error_code) {
	msg := C.GoString(C.Z3_get_error_msg(ctx, ec))
	if msg == "canceled" {
		return
	}
	fmt.Fprintf(os.Stderr, "z3: incorrect use of solver [%d]: %s\n", int(ec), msg)
	os.Exit(1)
}
