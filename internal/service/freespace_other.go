//go:build !linux && !darwin && !windows

package service

import "errors"

func availableBytes(dir string) (int64, error) {
	return 0, errors.ErrUnsupported
}
