// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package models

// Response codes used in the uniform envelope. Clients branch on Code, not
// on HTTP status, so the values are part of the wire contract.
const (
	CodeSuccess      = 200
	CodeError        = 500
	CodeUnauthorized = 401
	CodeForbidden    = 403
)

// Envelope is the uniform response wrapper returned by every endpoint.
//
// Example success:
//
//	{"code": 200, "msg": "success", "data": {...}}
//
// Example authorization denial (always paired with HTTP 403):
//
//	{"code": 403, "msg": "no permission to access", "data": null}
type Envelope struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// OK builds a success envelope.
func OK(data interface{}) Envelope {
	return Envelope{Code: CodeSuccess, Msg: "success", Data: data}
}

// OKMsg builds a success envelope with a custom message and no payload.
func OKMsg(msg string) Envelope {
	return Envelope{Code: CodeSuccess, Msg: msg, Data: nil}
}

// Fail builds an error envelope with the given code and message.
// Data is always null on failure.
func Fail(code int, msg string) Envelope {
	return Envelope{Code: code, Msg: msg, Data: nil}
}

// Forbidden builds the denial envelope used for every authorization failure.
// The shape is identical regardless of the failure class so callers cannot
// distinguish missing tokens from failed permission checks.
func Forbidden(msg string) Envelope {
	return Envelope{Code: CodeForbidden, Msg: msg, Data: nil}
}
