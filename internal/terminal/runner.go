package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/examsaathi/backend/internal/engine"
	"github.com/examsaathi/backend/internal/model"
)

const defaultWidth = 80

const helpText = `Commands:
  1-9 / a <n>   choose option n for the current question
  n, p          next / previous question
  j <n>         jump to question n
  f             first unanswered question
  pause, resume pause or resume the mock countdown
  s             submit
  q             leave without scoring
  (empty)       redraw`

// Runner drives one session from line-oriented terminal input.
type Runner struct {
	session *engine.Session
	in      io.Reader
	out     io.Writer
	width   int
	log     zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWidth sets the terminal width used to wrap the palette.
func WithWidth(w int) RunnerOption {
	return func(r *Runner) {
		if w > 0 {
			r.width = w
		}
	}
}

func WithLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a Runner reading commands from in and drawing to out.
func NewRunner(session *engine.Session, in io.Reader, out io.Writer, opts ...RunnerOption) *Runner {
	r := &Runner{
		session: session,
		in:      in,
		out:     out,
		width:   defaultWidth,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the session timer and processes input until the session is
// submitted, the user quits or input ends. submitted is false when the
// user left without scoring.
func (r *Runner) Run(ctx context.Context) (res engine.Result, submitted bool, err error) {
	events, cancel := r.session.Subscribe()
	defer cancel()
	r.session.Start(ctx)

	stop := make(chan struct{})
	defer close(stop)

	// The reader stays blocked in Scan until r.in yields a line or EOF; stop
	// only keeps it from sending after Run has returned. The CLI runs a
	// single session per process, so nothing waits on it.
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
	}()

	r.render(r.session.View())

	for {
		select {
		case <-ctx.Done():
			return engine.Result{}, false, ctx.Err()

		case ev, ok := <-events:
			if !ok || ev.Type == engine.EventSubmitted {
				return r.finish()
			}
			r.onTick(ev)

		case line, ok := <-lines:
			if !ok {
				r.log.Debug().Msg("Input closed")
				return r.finish()
			}
			switch r.handle(strings.TrimSpace(line)) {
			case stepQuit:
				return engine.Result{}, false, nil
			case stepSubmitted:
				return r.finish()
			}
		}
	}
}

// finish prints the result of a submitted session. A session that was
// never submitted reports submitted=false.
func (r *Runner) finish() (engine.Result, bool, error) {
	res, done := r.session.Result()
	if !done {
		return engine.Result{}, false, nil
	}
	r.printResult(res, r.session.View().Reason)
	return res, true, nil
}

type step int

const (
	stepContinue step = iota
	stepQuit
	stepSubmitted
)

// handle applies one command.
func (r *Runner) handle(line string) step {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		r.render(r.session.View())
		return stepContinue
	}

	var err error
	switch cmd := fields[0]; cmd {
	case "q", "quit", "exit":
		return stepQuit
	case "h", "help", "?":
		fmt.Fprintln(r.out, helpText)
		return stepContinue
	case "n", "next":
		err = r.session.Next()
	case "p", "prev":
		err = r.session.Previous()
	case "f", "first":
		err = r.session.JumpToFirstUnanswered()
	case "pause":
		err = r.session.Pause()
	case "resume":
		err = r.session.Resume()
	case "s", "submit":
		if _, err := r.session.Submit(); err != nil && !errors.Is(err, engine.ErrSubmitted) {
			r.printError(err)
			return stepContinue
		}
		return stepSubmitted
	case "j", "jump":
		n, ok := argNumber(fields)
		if !ok {
			fmt.Fprintln(r.out, "usage: j <question number>")
			return stepContinue
		}
		err = r.session.JumpTo(n - 1)
	case "a", "answer":
		n, ok := argNumber(fields)
		if !ok {
			fmt.Fprintln(r.out, "usage: a <option number>")
			return stepContinue
		}
		err = r.selectOption(n - 1)
	default:
		n, convErr := strconv.Atoi(cmd)
		if convErr != nil {
			fmt.Fprintf(r.out, "unknown command %q, type h for help\n", cmd)
			return stepContinue
		}
		err = r.selectOption(n - 1)
	}

	if err != nil {
		r.printError(err)
		return stepContinue
	}
	r.render(r.session.View())
	return stepContinue
}

func (r *Runner) selectOption(option int) error {
	v := r.session.View()
	if v.NoQuestions {
		return engine.ErrQuestionRange
	}
	return r.session.SelectOption(v.CurrentIndex, option)
}

func argNumber(fields []string) (int, bool) {
	if len(fields) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	return n, err == nil
}

func (r *Runner) onTick(ev engine.Event) {
	v := r.session.View()
	if v.Timer.Kind != engine.KindCountdown || ev.Seconds <= 0 {
		return
	}
	if ev.Seconds%300 == 0 || ev.Seconds == 60 || ev.Seconds == 10 {
		fmt.Fprintf(r.out, "[%s remaining]\n", ev.Display)
	}
}

func (r *Runner) render(v engine.View) {
	label := v.Config.ExamID
	if exam, ok := model.FindExam(v.Config.ExamID); ok {
		label = exam.Label
	}

	if v.NoQuestions {
		fmt.Fprintf(r.out, "%s | %s | no questions for this selection\n", label, v.Config.Mode)
		return
	}

	timer := v.Timer.Display
	if v.Timer.Paused {
		timer += " (paused)"
	}
	fmt.Fprintf(r.out, "\n%s | %s | Q %d/%d | answered %d | %s\n",
		label, v.Config.Mode, v.CurrentIndex+1, v.Total, v.Answered, timer)

	q := v.Question
	fmt.Fprintf(r.out, "%s\n", q.Text)
	for i, opt := range q.Options {
		mark := " "
		if q.Selected != nil && *q.Selected == i {
			mark = "*"
		}
		if q.CorrectOption != nil && *q.CorrectOption == i {
			mark += "+"
		} else {
			mark += " "
		}
		fmt.Fprintf(r.out, " %s %d) %s\n", mark, i+1, opt)
	}
	if q.Correct != nil {
		if *q.Correct {
			fmt.Fprintln(r.out, "Correct.")
		} else {
			fmt.Fprintln(r.out, "Incorrect.")
		}
		if q.Explanation != "" {
			fmt.Fprintln(r.out, q.Explanation)
		}
	}
	r.renderPalette(v.Palette)
}

// renderPalette prints one cell per question, wrapped to the terminal
// width. Cells: > current, * answered, + correct, x incorrect.
func (r *Runner) renderPalette(palette []engine.PaletteEntry) {
	const cellWidth = 6
	perLine := max(1, r.width/cellWidth)

	var b strings.Builder
	for i, e := range palette {
		mark := " "
		switch {
		case e.Correct != nil && *e.Correct:
			mark = "+"
		case e.Correct != nil:
			mark = "x"
		case e.Answered:
			mark = "*"
		}
		cur := " "
		if e.Current {
			cur = ">"
		}
		fmt.Fprintf(&b, "%s%2d%s  ", cur, e.Index+1, mark)
		if (i+1)%perLine == 0 || i == len(palette)-1 {
			fmt.Fprintln(r.out, strings.TrimRight(b.String(), " "))
			b.Reset()
		}
	}
}

func (r *Runner) printResult(res engine.Result, reason engine.SubmitReason) {
	if reason == engine.ReasonTimeout {
		fmt.Fprintln(r.out, "\nTime is up. Your paper was submitted.")
	} else {
		fmt.Fprintln(r.out, "\nSubmitted.")
	}
	if v := r.session.View(); v.Breakdown != nil {
		fmt.Fprintf(r.out, "Correct %d, incorrect %d, unanswered %d\n",
			v.Breakdown.Correct, v.Breakdown.Incorrect, v.Breakdown.Unanswered)
	}
	PrintResult(r.out, res)
}

// PrintResult writes the results screen.
func PrintResult(out io.Writer, res engine.Result) {
	label := res.ExamID
	if exam, ok := model.FindExam(res.ExamID); ok {
		label = exam.Label
	}
	fmt.Fprintf(out, "%s: Score: %d/%d (%.1f%%)\n", label, res.Score, res.Total, res.Accuracy())
	fmt.Fprintf(out, "Result link: %s\n", res.URL())
}

func (r *Runner) printError(err error) {
	switch {
	case errors.Is(err, engine.ErrOptionRange):
		fmt.Fprintln(r.out, "option out of range")
	case errors.Is(err, engine.ErrQuestionRange):
		fmt.Fprintln(r.out, "question out of range")
	case errors.Is(err, engine.ErrPauseUnsupported):
		fmt.Fprintln(r.out, "only mock tests can be paused")
	case errors.Is(err, engine.ErrSubmitted):
		fmt.Fprintln(r.out, "already submitted")
	default:
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
}
