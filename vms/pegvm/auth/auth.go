// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auth carries the caller identity of a request and decides whether
// that caller may act as a named account.
package auth

import (
	"context"
	"errors"

	"github.com/luxfi/ids"
)

var (
	ErrUnauthorized = errors.New("unauthorized")

	_ Authorizer = CallerAuthorizer{}
	_ Authorizer = AllowAll{}
)

type callerKey struct{}

// WithCaller returns a context proving that the request is issued by [caller].
func WithCaller(ctx context.Context, caller ids.ShortID) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Caller returns the caller attached to [ctx], if any.
func Caller(ctx context.Context) (ids.ShortID, bool) {
	caller, ok := ctx.Value(callerKey{}).(ids.ShortID)
	return caller, ok
}

// Authorizer verifies that the request in [ctx] may act as [account].
type Authorizer interface {
	Authorize(ctx context.Context, account ids.ShortID) error
}

// CallerAuthorizer accepts a request only when its caller is the account
// itself.
type CallerAuthorizer struct{}

func (CallerAuthorizer) Authorize(ctx context.Context, account ids.ShortID) error {
	caller, ok := Caller(ctx)
	if !ok || caller != account {
		return ErrUnauthorized
	}
	return nil
}

// AllowAll accepts every request. Only meant for tests and local simulation.
type AllowAll struct{}

func (AllowAll) Authorize(context.Context, ids.ShortID) error {
	return nil
}
