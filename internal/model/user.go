package model

import "time"

// User is a student who signed in with a phone OTP.
// The JSON shape matches the record the client keeps under its user key.
type User struct {
	ID          int64     `json:"-"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"-"`
}

// StartOTPRequest is the payload for POST /api/auth/start.
type StartOTPRequest struct {
	Name  string `json:"name" binding:"required,min=2,max=100"`
	Phone string `json:"phone" binding:"required,numeric,min=10,max=15"`
}

// VerifyOTPRequest is the payload for POST /api/auth/verify.
type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required,numeric,min=10,max=15"`
	OTP   string `json:"otp" binding:"required,numeric,len=6"`
}
