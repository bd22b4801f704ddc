package storage

import "errors"

var errUnknownOp = errors.New("unknown storage op")
