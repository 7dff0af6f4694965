package dto

import "time"

// OTPRequest asks for a one-time code to be mailed to the identity.
type OTPRequest struct {
	Identity string `json:"identity" validate:"required,email,max=320"`
}

// OTPVerifyRequest exchanges a one-time code for an examinee session.
type OTPVerifyRequest struct {
	Identity string `json:"identity" validate:"required,email,max=320"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
}

// OTPIssuedResponse confirms a code was sent without echoing it.
type OTPIssuedResponse struct {
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifiedSessionResponse grants access to the round content.
type VerifiedSessionResponse struct {
	Round        PublicRoundResponse `json:"round"`
	SessionToken string              `json:"session_token"`
	ExpiresAt    time.Time           `json:"expires_at"`
}
