// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package notify delivers password reset tokens out of band.
//
// Two auth.ResetNotifier implementations are provided. Queue hands requests
// to in-process workers. Publisher writes them to the password-reset-request
// Kafka topic, where a Consumer picks them up in the worker process. Both
// finish with a Sender, retried with exponential backoff. SMTPSender mails
// the token; LogSender only logs it and is meant for development.
package notify
