// Package errors re-exports github.com/cockroachdb/errors so every package
// creates, wraps, marks and matches errors the same way.
package errors

import (
	"strings"

	crdb "github.com/cockroachdb/errors"
)

var (
	New     = crdb.New
	Newf    = crdb.Newf
	Wrap    = crdb.Wrap
	Wrapf   = crdb.Wrapf
	Mark    = crdb.Mark
	Combine = crdb.CombineErrors
)

var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

var (
	Is    = crdb.Is
	IsAny = crdb.IsAny
	As    = crdb.As
)

// UserMessage renders err for a status line: the error text followed by its
// hints, if any.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if hints := GetAllHints(err); len(hints) > 0 {
		msg += " (" + strings.Join(hints, "; ") + ")"
	}
	return msg
}
