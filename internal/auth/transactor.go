// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import "context"

// Transactor runs fn inside a storage transaction. Repository calls made with
// the context passed to fn participate in it. A nil return commits; any error
// rolls back and is returned unchanged.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
