package model

// SelectOptionRequest records an answer for one question.
// Pointers keep a zero index distinguishable from a missing field.
type SelectOptionRequest struct {
	Question *int `json:"question" binding:"required,min=0"`
	Option   *int `json:"option" binding:"required,min=0"`
}

// JumpRequest moves the cursor to an arbitrary question.
type JumpRequest struct {
	Index *int `json:"index" binding:"required"`
}
