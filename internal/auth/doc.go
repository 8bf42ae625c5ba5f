// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package auth implements credential verification, bearer token issuance and
// rotation, and the password reset lifecycle.
//
// # Domain Types
//
// Domain types (Identity, RefreshToken, PasswordReset) should be created
// using their respective constructors:
//   - NewIdentity - creates an active Identity with a validated email
//   - NewRefreshToken - creates a RefreshToken with a fresh jti and expiry
//   - NewPasswordReset - creates a PasswordReset with both token hashes
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
//   - Service - registration, login, refresh rotation, logout, password change
//     and the bearer gate
//   - PasswordResetService - reset request and confirmation
//   - Sweeper - removal of expired records
//
// Lifecycle mutations run inside a Transactor. Failures wrap the sentinels in
// errors.go; use KindOf or StatusCode to classify them.
package auth
