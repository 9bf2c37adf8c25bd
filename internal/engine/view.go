package engine

// QuestionView is the question under the cursor as rendered to a client.
// Correctness fields are only filled when they may be revealed.
type QuestionView struct {
	Index         int      `json:"index"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	Selected      *int     `json:"selected,omitempty"`
	Correct       *bool    `json:"correct,omitempty"`
	CorrectOption *int     `json:"correct_option,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

type TimerView struct {
	Kind    TimerKind `json:"kind"`
	Seconds int       `json:"seconds"`
	Display string    `json:"display"`
	Paused  bool      `json:"paused"`
}

// View is a consistent snapshot of a session.
type View struct {
	ID           string         `json:"id"`
	Config       Config         `json:"config"`
	State        State          `json:"state"`
	Total        int            `json:"total"`
	Answered     int            `json:"answered"`
	CurrentIndex int            `json:"current_index"`
	NoQuestions  bool           `json:"no_questions"`
	Question     *QuestionView  `json:"question,omitempty"`
	Palette      []PaletteEntry `json:"palette"`
	Timer        TimerView      `json:"timer"`
	Result       *Result        `json:"result,omitempty"`
	Breakdown    *Breakdown     `json:"breakdown,omitempty"`
	Reason       SubmitReason   `json:"reason,omitempty"`
	Snapshot     string         `json:"snapshot"`
}

// View renders the session. Practice sessions reveal correctness for
// answered questions; mock sessions only after submission.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	submitted := s.state == StateSubmitted
	reveal := s.cfg.Mode == ModePractice || submitted

	v := View{
		ID:           s.id,
		Config:       s.cfg,
		State:        s.state,
		Total:        s.tracker.Len(),
		Answered:     s.tracker.AnsweredCount(),
		CurrentIndex: s.tracker.Current(),
		NoQuestions:  s.tracker.Len() == 0,
		Palette:      s.tracker.Palette(reveal),
		Timer: TimerView{
			Kind:    s.timer.Kind(),
			Seconds: s.timer.Seconds(),
			Display: s.timer.Display(),
			Paused:  s.timer.Paused(),
		},
		Snapshot: s.cfg.Params().Encode(),
	}

	if !v.NoQuestions {
		v.Question = s.questionViewLocked(s.tracker.Current(), reveal, submitted)
	}
	if submitted {
		res, b := s.result, s.breakdown
		v.Result = &res
		v.Breakdown = &b
		v.Reason = s.reason
	}
	return v
}

func (s *Session) questionViewLocked(i int, reveal, submitted bool) *QuestionView {
	q := s.questions[i]
	qv := &QuestionView{
		Index:   i,
		Text:    q.Text,
		Options: append([]string(nil), q.Options...),
	}

	selected, answered := s.tracker.Answer(i)
	if answered {
		qv.Selected = &selected
	}
	if reveal && (answered || submitted) {
		correct := q.CorrectOption
		qv.CorrectOption = &correct
		qv.Explanation = q.Explanation
		if answered {
			ok := selected == correct
			qv.Correct = &ok
		}
	}
	return qv
}
