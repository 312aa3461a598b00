// Package xtest holds go-cmp options shared by tests of the quota packages.
package xtest

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// jsonRawMessageComparer compares raw JSON documents semantically.
func jsonRawMessageComparer(x, y json.RawMessage) bool {
	if len(x) == 0 && len(y) == 0 {
		return true
	}

	if len(x) == 0 || len(y) == 0 {
		return false
	}

	var xVal, yVal any
	if err := json.Unmarshal(x, &xVal); err != nil {
		return false
	}

	if err := json.Unmarshal(y, &yVal); err != nil {
		return false
	}

	return cmp.Equal(xVal, yVal)
}

// Options treats quota floats as equal within 1e-9 and raw JSON as equal when semantically equal.
func Options(opts ...cmp.Option) []cmp.Option {
	return append(opts,
		cmpopts.EquateApprox(0, 1e-9),
		cmpopts.EquateEmpty(),
		cmp.Comparer(jsonRawMessageComparer),
	)
}

func Equal(a, b any, opts ...cmp.Option) bool {
	return cmp.Equal(a, b, Options(opts...)...)
}

// Diff returns a human readable diff, empty when a and b are Equal.
func Diff(a, b any, opts ...cmp.Option) string {
	return cmp.Diff(a, b, Options(opts...)...)
}
