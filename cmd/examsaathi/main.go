package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/examsaathi/backend/internal/engine"
	"github.com/examsaathi/backend/internal/kvstore"
	"github.com/examsaathi/backend/internal/logger"
	"github.com/examsaathi/backend/internal/model"
	"github.com/examsaathi/backend/internal/questionbank"
	"github.com/examsaathi/backend/internal/service"
	"github.com/examsaathi/backend/internal/terminal"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "examsaathi",
		Short:         "Practice PYQs and take timed mock tests in the terminal",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("db", "examsaathi.db", "Local SQLite store for the signed-in user and preferences")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-format", "pretty", "Log format (pretty, json)")

	root.AddCommand(practiceCmd(), mockCmd(), loginCmd(), logoutCmd(), prefsCmd(), resultCmd())
	return root
}

// ─── Commands ──────────────────────────────────────────────────────────

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Untimed PYQ practice with instant feedback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, engine.ModePractice)
		},
	}
	f := cmd.Flags()
	f.String("exam", "", "Exam id (defaults to your first preferred exam)")
	f.String("scope", engine.ScopeFull, "full, physics, chemistry or math")
	f.String("year", "", "PYQ year")
	f.Bool("shuffle", true, "Shuffle question order")
	return cmd
}

func mockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Timed mock test, submitted automatically when time runs out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, engine.ModeMock)
		},
	}
	f := cmd.Flags()
	f.String("exam", "", "Exam id (defaults to your first preferred exam)")
	f.String("scope", "", "full, physics, chemistry or math")
	f.StringSlice("sections", nil, "Sections to include (physics, chemistry, maths)")
	f.Int("duration", engine.DefaultDurationMinutes, "Duration in minutes")
	f.Bool("shuffle", true, "Shuffle question order")
	return cmd
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with your phone number and a one-time code",
		RunE:  runLogin,
	}
	f := cmd.Flags()
	f.String("server", "http://localhost:8080", "ExamSaathi API base URL")
	f.String("name", "", "Your name")
	f.String("phone", "", "Your phone number")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			return terminal.Logout(cmd.Context(), store)
		},
	}
}

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or update class level and preferred exams",
		RunE:  runPrefs,
	}
	f := cmd.Flags()
	f.String("class", "", "Class level (11, 12, dropper)")
	f.StringSlice("exams", nil, "Preferred exam ids, in order")
	return cmd
}

func resultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Show a result from its exam, score and total",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viperForCmd(cmd)
			params := url.Values{}
			params.Set(engine.ParamExam, v.GetString("exam"))
			params.Set(engine.ParamScore, v.GetString("score"))
			params.Set(engine.ParamTotal, v.GetString("total"))
			terminal.PrintResult(cmd.OutOrStdout(), engine.ParseResult(params))
			return nil
		},
	}
	f := cmd.Flags()
	f.String("exam", model.DefaultExamID, "Exam id")
	f.String("score", "0", "Score")
	f.String("total", "0", "Total questions")
	return cmd
}

// ─── Runners ───────────────────────────────────────────────────────────

func runSession(cmd *cobra.Command, mode engine.Mode) error {
	store, log, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	v := viperForCmd(cmd)

	dashboard := service.NewDashboardService(store, log)
	prefs, err := dashboard.Preferences(cmd.Context(), "")
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set(engine.ParamExam, service.ResolveExam(v.GetString("exam"), prefs).ID)
	if scope := v.GetString("scope"); scope != "" {
		params.Set(engine.ParamScope, scope)
	}
	if !v.GetBool("shuffle") {
		params.Set(engine.ParamShuffle, "off")
	}
	if mode == engine.ModeMock {
		params.Set(engine.ParamDuration, strconv.Itoa(v.GetInt("duration")))
		if sections := v.GetStringSlice("sections"); len(sections) > 0 {
			params.Set(engine.ParamSections, strings.Join(sections, ","))
		}
	} else if year := v.GetString("year"); year != "" {
		params.Set(engine.ParamYear, year)
	}

	cfg := engine.ParseConfig(mode, params)
	session := engine.New(cfg, questionbank.NewBuilder(questionbank.Default(), nil))
	defer session.Close()

	log.Info().
		Str("session_id", session.ID()).
		Str("exam_id", cfg.ExamID).
		Str("mode", string(cfg.Mode)).
		Msg("Session started")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := terminal.NewRunner(session, cmd.InOrStdin(), cmd.OutOrStdout(),
		terminal.WithWidth(terminalWidth()),
		terminal.WithLogger(log),
	)
	if _, _, err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	store, log, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	name := v.GetString("name")
	if name == "" {
		if name, err = prompt(in, out, "Name: "); err != nil {
			return err
		}
	}
	phone := v.GetString("phone")
	if phone == "" {
		if phone, err = prompt(in, out, "Phone: "); err != nil {
			return err
		}
	}

	client := terminal.NewClient(v.GetString("server"))
	demo, err := client.StartOTP(ctx, name, phone)
	if err != nil {
		return fmt.Errorf("start login: %w", err)
	}
	if demo != "" {
		fmt.Fprintf(out, "Demo code: %s\n", demo)
	}

	code, err := readSecret(in, out, "Code: ")
	if err != nil {
		return err
	}

	user, token, err := client.VerifyOTP(ctx, phone, code)
	if err != nil {
		return fmt.Errorf("verify code: %w", err)
	}
	if err := terminal.SaveAccount(ctx, store, terminal.Account{User: user, Token: token}); err != nil {
		return err
	}

	log.Info().Str("phone", user.Phone).Msg("Signed in")
	fmt.Fprintf(out, "Welcome, %s.\n", user.Name)
	return nil
}

func runPrefs(cmd *cobra.Command, _ []string) error {
	store, log, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	v := viperForCmd(cmd)

	dashboard := service.NewDashboardService(store, log)
	req := model.UpdatePreferencesRequest{ClassLevel: v.GetString("class")}
	if cmd.Flags().Changed("exams") {
		req.PreferredExams = v.GetStringSlice("exams")
	}

	var prefs model.Preferences
	if req.ClassLevel != "" || req.PreferredExams != nil {
		prefs, err = dashboard.SavePreferences(cmd.Context(), "", req)
	} else {
		prefs, err = dashboard.Preferences(cmd.Context(), "")
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Class: %s\n", prefs.ClassLevel)
	fmt.Fprintf(out, "Preferred exams: %s\n", strings.Join(prefs.PreferredExams, ", "))
	if acc, ok, err := terminal.LoadAccount(cmd.Context(), store); err == nil && ok {
		fmt.Fprintf(out, "Signed in as %s (%s)\n", acc.Name, acc.Phone)
	}
	return nil
}

// ─── Helpers ───────────────────────────────────────────────────────────

func openStore(cmd *cobra.Command) (*kvstore.SQLiteStore, zerolog.Logger, error) {
	v := viperForCmd(cmd)
	log := logger.New(os.Stderr, v.GetString("log-level"), v.GetString("log-format"))

	store, err := kvstore.OpenSQLite(v.GetString("db"))
	if err != nil {
		return nil, log, fmt.Errorf("open local store: %w", err)
	}
	return store, log, nil
}

// viperForCmd binds a command's flags and EXAMSAATHI_* environment to a
// fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("EXAMSAATHI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examsaathi")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examsaathi")
	_ = v.ReadInConfig()
	return v
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo when stdin is a terminal.
func readSecret(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, out, label)
	}
	fmt.Fprint(out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read code: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}
