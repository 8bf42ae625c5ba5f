// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package notify

import (
	"encoding/json"

	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
)

// Topic is the channel reset requests are published on.
const Topic = "password-reset-request"

// ResetRequest is the wire form of a reset notification.
type ResetRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Validate checks both fields are present.
func (r ResetRequest) Validate() error {
	if r.Email == "" {
		return oops.Code("NOTIFY_INVALID_MESSAGE").Errorf("email is required")
	}
	if r.Token == "" {
		return oops.Code("NOTIFY_INVALID_MESSAGE").Errorf("token is required")
	}
	return nil
}

func fromNotification(n auth.ResetNotification) ResetRequest {
	return ResetRequest{Email: n.Email, Token: n.Token}
}

// Encode serializes a validated request.
func Encode(r ResetRequest) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, oops.Code("NOTIFY_MARSHAL_FAILED").Wrap(err)
	}
	return data, nil
}

// Decode parses and validates a request.
func Decode(data []byte) (ResetRequest, error) {
	var r ResetRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return ResetRequest{}, oops.Code("NOTIFY_INVALID_MESSAGE").Wrap(err)
	}
	if err := r.Validate(); err != nil {
		return ResetRequest{}, err
	}
	return r, nil
}
