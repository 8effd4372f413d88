package auth

import (
	"github.com/triage/triage/internal/platform/errs"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionCreateReport    Action = "report.create"
	ActionReadReport      Action = "report.read"
	ActionMutateReport    Action = "report.mutate"
	ActionValidateReport  Action = "report.validate"
	ActionCloseReport     Action = "report.close"
	ActionManageProtocols Action = "protocol.manage"
)

// Actions lists every action the policy table covers.
var Actions = []Action{
	ActionCreateReport,
	ActionReadReport,
	ActionMutateReport,
	ActionValidateReport,
	ActionCloseReport,
	ActionManageProtocols,
}

type verdict int

const (
	deny verdict = iota
	allow
	ownerOnly
)

// policy is the single authorization table keyed by (role, action). Keeping
// the whole policy here, instead of scattered conditionals in handlers,
// makes it auditable and testable on its own. Missing entries deny.
var policy = map[string]map[Action]verdict{
	RoleAdmin: {
		ActionReadReport:      allow,
		ActionCloseReport:     allow,
		ActionManageProtocols: allow,
	},
	RoleDoctor: {
		ActionReadReport:     allow,
		ActionMutateReport:   allow,
		ActionValidateReport: allow,
	},
	RolePatient: {
		ActionCreateReport: allow,
		ActionReadReport:   ownerOnly,
	},
}

// Authorize decides whether role may perform action. For ownership-scoped
// verdicts, owner reports whether the caller owns the target report.
//
// A patient probing a report they do not own gets errs.ErrNotFound rather
// than errs.ErrForbidden, so denied reads never leak record existence.
func Authorize(role string, action Action, owner bool) error {
	switch policy[role][action] {
	case allow:
		return nil
	case ownerOnly:
		if owner {
			return nil
		}
		if action == ActionReadReport {
			return errs.ErrNotFound
		}
		return errs.ErrForbidden
	default:
		return errs.ErrForbidden
	}
}
