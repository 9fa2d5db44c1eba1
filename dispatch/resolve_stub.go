//go:build !linux

package dispatch

import "errors"

func Resolve() error {
	return errors.New("cannot find malloc()")
}
