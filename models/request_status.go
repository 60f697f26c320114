package models

import (
	"fmt"
	"strings"
)

// RequestStatus is the lifecycle state of a ServiceRequest
type RequestStatus string

const (
	RequestPending     RequestStatus = "pending"
	RequestBroadcasted RequestStatus = "broadcasted"
	RequestInterested  RequestStatus = "interested"
	RequestAssigned    RequestStatus = "assigned"
	RequestConfirmed   RequestStatus = "confirmed"
	RequestInProgress  RequestStatus = "in_progress"
	RequestCompleted   RequestStatus = "completed"
	RequestCancelled   RequestStatus = "cancelled"
)

// Transition rejection codes, shared with the payment state machine
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeRoleRequired      = "ROLE_REQUIRED"
	CodeAdminRequired     = "ADMIN_REQUIRED"
)

// requestTransitions lists, per source status, the reachable targets and the
// roles allowed to make each move.
var requestTransitions = map[RequestStatus]map[RequestStatus][]string{
	RequestPending: {
		RequestBroadcasted: {RoleSystem, RoleAdmin},
		RequestInterested:  {RoleProvider},
		RequestAssigned:    {RoleAdmin},
		RequestCancelled:   {RoleAdmin, RoleSystem},
	},
	RequestBroadcasted: {
		RequestInterested: {RoleProvider},
		RequestAssigned:   {RoleAdmin},
		RequestCancelled:  {RoleAdmin, RoleSystem},
	},
	RequestInterested: {
		RequestBroadcasted: {RoleAdmin},
		RequestAssigned:    {RoleAdmin},
		RequestCancelled:   {RoleAdmin, RoleSystem},
	},
	RequestAssigned: {
		RequestConfirmed:  {RoleAdmin, RoleProvider},
		RequestInProgress: {RoleAdmin, RoleProvider},
		RequestCompleted:  {RoleSystem, RoleAdmin},
		RequestCancelled:  {RoleAdmin, RoleSystem},
	},
	RequestConfirmed: {
		RequestInProgress: {RoleAdmin, RoleProvider},
		RequestCompleted:  {RoleSystem, RoleAdmin},
		RequestCancelled:  {RoleAdmin, RoleSystem},
	},
	RequestInProgress: {
		RequestCompleted: {RoleSystem, RoleAdmin},
		RequestCancelled: {RoleAdmin, RoleSystem},
	},
}

// ParseRequestStatus converts user input into a known status
func ParseRequestStatus(raw string) (RequestStatus, bool) {
	s := RequestStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case RequestPending, RequestBroadcasted, RequestInterested, RequestAssigned,
		RequestConfirmed, RequestInProgress, RequestCompleted, RequestCancelled:
		return s, true
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible
func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestCancelled
}

// AcceptsInterest reports whether providers may still register interest
func (s RequestStatus) AcceptsInterest() bool {
	return s == RequestPending || s == RequestBroadcasted || s == RequestInterested
}

// AcceptsConfirmation reports whether completion confirmations are accepted
func (s RequestStatus) AcceptsConfirmation() bool {
	return s == RequestAssigned || s == RequestConfirmed || s == RequestInProgress
}

// TransitionResult is the outcome of validating a status change
type TransitionResult struct {
	Allowed      bool     `json:"allowed"`
	RequiresRole []string `json:"requires_role,omitempty"`
	Code         string   `json:"code,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// ValidateRequestTransition checks a move from one request status to another for the given role.
// It separates moves that never exist from moves the role may not make.
func ValidateRequestTransition(from, to RequestStatus, role string) TransitionResult {
	targets, ok := requestTransitions[from]
	if !ok {
		return TransitionResult{
			Code:   CodeInvalidTransition,
			Reason: fmt.Sprintf("request is %s and cannot change status", from),
		}
	}

	roles, ok := targets[to]
	if !ok {
		return TransitionResult{
			Code:   CodeInvalidTransition,
			Reason: fmt.Sprintf("cannot move request from %s to %s", from, to),
		}
	}

	for _, r := range roles {
		if r == role {
			return TransitionResult{Allowed: true, RequiresRole: roles}
		}
	}

	return TransitionResult{
		RequiresRole: roles,
		Code:         CodeRoleRequired,
		Reason:       fmt.Sprintf("moving request from %s to %s requires role %s", from, to, strings.Join(roles, " or ")),
	}
}
