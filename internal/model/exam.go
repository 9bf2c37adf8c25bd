package model

// DefaultExamID is used whenever a request names no exam or an unknown one.
const DefaultExamID = "jee-main"

// Exam is an entry in the exam catalog shown on the dashboard.
type Exam struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Exams is the static exam catalog, in display order.
var Exams = []Exam{
	{ID: "jee-main", Label: "JEE Main"},
	{ID: "jee-adv", Label: "JEE Advanced"},
	{ID: "bitsat", Label: "BITSAT"},
	{ID: "cbse", Label: "Board Exams"},
	{ID: "eamcet", Label: "EAMCET"},
	{ID: "viteee", Label: "VITEEE"},
}

// FindExam looks up a catalog entry by id.
func FindExam(id string) (Exam, bool) {
	for _, e := range Exams {
		if e.ID == id {
			return e, true
		}
	}
	return Exam{}, false
}

// ClassLevel is a student's current class.
type ClassLevel struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ClassLevels lists the supported class levels.
var ClassLevels = []ClassLevel{
	{ID: "11", Label: "Class 11"},
	{ID: "12", Label: "Class 12"},
	{ID: "dropper", Label: "Dropper"},
}

// IsClassLevel reports whether id names a supported class level.
func IsClassLevel(id string) bool {
	for _, c := range ClassLevels {
		if c.ID == id {
			return true
		}
	}
	return false
}
