// The errno helper lives in its own file: a file that uses //export
// may only carry declarations in its preamble, not definitions.
package main

/*
#include <errno.h>

void louse_set_enomem(void) { errno = ENOMEM; }
*/
import "C"

func setENOMEM() {
	C.louse_set_enomem()
}
