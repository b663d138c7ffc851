package models

import "strconv"

// FlashLevel mirrors the message levels shown to users after an action.
type FlashLevel string

const (
	FlashSuccess FlashLevel = "success"
	FlashWarning FlashLevel = "warning"
	FlashError   FlashLevel = "error"
)

// Named routes a handler may redirect to.
const (
	RouteLogin             = "/login"
	RouteHome              = "/"
	RouteCustomerDashboard = "/dashboard"
	RouteAgentDashboard    = "/agent/dashboard"
)

// TicketRoute returns the detail route of a ticket.
func TicketRoute(id uint) string {
	return "/tickets/" + strconv.FormatUint(uint64(id), 10)
}

// Outcome is the user-visible result of an action: where to go next and what to tell
// the user. Authorization denials are outcomes, not errors.
type Outcome struct {
	Level    FlashLevel `json:"level"`
	Message  string     `json:"message"`
	Redirect string     `json:"redirect"`
}

// Success reports whether the action went through.
func (o *Outcome) Success() bool {
	return o != nil && o.Level == FlashSuccess
}

func Succeeded(redirect, msg string) *Outcome {
	return &Outcome{Level: FlashSuccess, Message: msg, Redirect: redirect}
}

func Warned(redirect, msg string) *Outcome {
	return &Outcome{Level: FlashWarning, Message: msg, Redirect: redirect}
}

func Denied(redirect, msg string) *Outcome {
	return &Outcome{Level: FlashError, Message: msg, Redirect: redirect}
}
