package reconcile

import (
	"fmt"

	"github.com/lysyi3m/gamesite-bff/internal/apperr"
)

type Stage string

const (
	StageLookup Stage = "lookup"
	StageCreate Stage = "create"
)

// Error reports which step of a resolution failed.
type Error struct {
	Stage  Stage
	GameID int64
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve slug for game %d: %s failed: %v", e.GameID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind reports lookup failures as upstream errors. Creation failures
// keep the kind of the underlying error, reconciliation when it has none.
func (e *Error) ErrorKind() apperr.Kind {
	if e.Stage == StageLookup {
		return apperr.KindUpstream
	}
	switch kind := apperr.KindOf(e.Err); kind {
	case apperr.KindUpstream, apperr.KindApplication, apperr.KindReconciliation:
		return kind
	default:
		return apperr.KindReconciliation
	}
}
