package model

// Preferences holds the dashboard personalization for one user.
type Preferences struct {
	ClassLevel     string   `json:"classLevel"`
	PreferredExams []string `json:"preferredExams"`
}

// DefaultPreferences returns the preferences used before a user saves any.
func DefaultPreferences() Preferences {
	return Preferences{
		ClassLevel:     "12",
		PreferredExams: []string{"jee-main", "jee-adv"},
	}
}

// UpdatePreferencesRequest is the payload for PUT /api/dashboard/preferences.
type UpdatePreferencesRequest struct {
	ClassLevel     string   `json:"classLevel" binding:"omitempty,max=20"`
	PreferredExams []string `json:"preferredExams" binding:"omitempty,max=10,dive,max=40"`
}

// LaunchRequest is the payload for POST /api/dashboard/launch.
type LaunchRequest struct {
	Flow  string `json:"flow" binding:"required,oneof=pyq mock"`
	Exam  string `json:"exam" binding:"omitempty,exam_id"`
	Years int    `json:"years" binding:"required,oneof=1 3 5 10"`
	Scope string `json:"scope" binding:"required,oneof=full math physics chemistry"`
}
