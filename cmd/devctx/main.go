// Package main provides the devctx CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"devctx/internal/config"
	"devctx/internal/format"
	"devctx/internal/gitio"
	"devctx/internal/mcp"
	"devctx/internal/session"
	"devctx/internal/store"
	"devctx/internal/summary"
)

// Version is the current devctx CLI version
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "devctx",
	Short:   "DevContext - resume any project in 30 seconds",
	Long:    `DevContext tracks your work context automatically and gives you instant catch-up summaries when you return to a project.`,
	Version: Version,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize context tracking for the current project",
	RunE:  runInit,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new work session",
	RunE:  runStart,
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the current session and generate a summary",
	RunE:  runEnd,
}

var noteCmd = &cobra.Command{
	Use:   "note <text>...",
	Short: "Add a note to the current session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNote,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current session status",
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked projects",
	RunE:  runList,
}

var historyCmd = &cobra.Command{
	Use:   "history [project]",
	Short: "View session history for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Get a catch-up summary for the current project",
	RunE:  runResume,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize the current session without ending it",
	RunE:  runSummary,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database, Ollama and model availability",
	RunE:  runDoctor,
}

var mcpServeCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Serve the Model Context Protocol over stdio",
	Long: `Runs an MCP server on stdin/stdout so AI coding assistants can
start and end sessions, add notes and fetch resume context.`,
	RunE: runMCPServe,
}

var (
	initName     string
	historyLimit int
)

// app bundles the wired components behind every command.
type app struct {
	cfg     *config.Config
	store   *store.Store
	backend *summary.Ollama
	manager *session.Manager
}

func newApp() (*app, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := store.OpenDataDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	backend := summary.NewOllama(cfg.OllamaURL, cfg.Model)
	manager := session.NewManager(st, summary.NewEngine(backend),
		session.WithAutoStart(cfg.AutoStart))
	return &app{cfg: cfg, store: st, backend: backend, manager: manager}, nil
}

func (a *app) close() {
	a.store.Close()
}

// e returns the emoji when enabled, otherwise the fallback.
func (a *app) e(emoji, fallback string) string {
	if a.cfg.Display.Emoji {
		return emoji
	}
	return fallback
}

func printPanel(title, body string) {
	fmt.Printf("\n── %s ──\n%s\n", title, body)
}

// clip bounds s to max runes, marking the cut. Rune-based so
// multi-byte summaries never render as mangled UTF-8.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func cwd() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.manager.Init(cwd(), initName)
	if err != nil {
		return err
	}

	if res.AlreadyTracked {
		fmt.Printf("%s Project %s already tracked.\n", a.e("📁", "*"), res.Project.Name)
		fmt.Printf("   Last active: %s\n", format.TimeAgo(res.Project.LastActive, time.Now()))
		return nil
	}
	if !res.GitRepo {
		fmt.Printf("%s Warning: Not a git repository. Git tracking disabled.\n", a.e("⚠️", "!"))
	}
	fmt.Printf("%s Initialized %s for context tracking.\n", a.e("✅", "[OK]"), res.Project.Name)
	fmt.Println("   Run devctx start to begin a session.")
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.manager.Start(cmd.Context(), cwd())
	if errors.Is(err, session.ErrProjectNotFound) {
		fmt.Printf("%s Project not initialized. Run devctx init first.\n", a.e("❌", "x"))
		return nil
	}
	if err != nil {
		return err
	}

	if res.Ancestor {
		fmt.Printf("%s Using parent project: %s\n", a.e("📁", "*"), res.Project.Name)
	}
	if res.AlreadyActive {
		fmt.Printf("%s Session already active (%s).\n", a.e("⚡", "!"), format.Span(res.Elapsed))
		fmt.Println("   Use devctx note to add notes or devctx end to finish.")
		return nil
	}

	branch := res.Branch
	if branch == "" {
		branch = "N/A"
	}
	fmt.Printf("%s Session started for %s\n", a.e("🚀", ">"), res.Project.Name)
	fmt.Printf("   Branch: %s\n", branch)
	fmt.Printf("\n   %s Add notes: devctx note \"your note here\"\n", a.e("💡", "*"))
	return nil
}

func runEnd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Printf("%s Generating session summary...\n", a.e("🤖", "..."))

	res, err := a.manager.End(cmd.Context(), cwd())
	if errors.Is(err, session.ErrProjectNotFound) {
		fmt.Printf("%s Project not initialized. Run devctx init first.\n", a.e("❌", "x"))
		return nil
	}
	if errors.Is(err, session.ErrNoActiveSession) {
		fmt.Printf("%s No active session.\n", a.e("ℹ️", "i"))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n%s Session ended (%s)\n", a.e("✅", "[OK]"), format.Span(res.Duration))
	if res.Summary != "" {
		printPanel("Session Summary", res.Summary)
	}
	return nil
}

func runNote(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("note text required")
	}

	res, err := a.manager.Note(cmd.Context(), cwd(), text)
	if errors.Is(err, session.ErrProjectNotFound) {
		fmt.Printf("%s Project not initialized. Run devctx init first.\n", a.e("❌", "x"))
		return nil
	}
	if errors.Is(err, session.ErrNoActiveSession) {
		fmt.Printf("%s No active session. Run devctx start first.\n", a.e("ℹ️", "i"))
		return nil
	}
	if err != nil {
		return err
	}

	if res.Started {
		fmt.Printf("%s No active session. Starting one...\n", a.e("ℹ️", "i"))
	}
	fmt.Printf("%s Note added: %s\n", a.e("📝", "+"), res.Note.Content)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.manager.Status(cwd())
	if errors.Is(err, session.ErrProjectNotFound) {
		fmt.Printf("%s Project not initialized. Run devctx init first.\n", a.e("❌", "x"))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n%s Project: %s\n", a.e("📁", "*"), res.Project.Name)
	if res.Session != nil {
		fmt.Printf("%s Session: Active (%s)\n", a.e("⚡", "!"), format.Span(res.Duration))
		fmt.Printf("   Notes: %d\n", res.NoteCount)
		fmt.Printf("   Captures: %d\n", res.CaptureCount)
	} else {
		fmt.Printf("%s Session: None\n", a.e("💤", "-"))
		fmt.Printf("   Last active: %s\n", res.LastActive)
	}

	if repo, err := gitio.Open(res.Project.Path); err == nil && repo != nil {
		if stat := repo.DiffStat(10); stat != "" {
			printPanel(fmt.Sprintf("%s Working Tree", a.e("🔀", "~")), stat)
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	listings, err := a.manager.ListProjects()
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		fmt.Printf("%s No projects tracked yet.\n", a.e("ℹ️", "i"))
		fmt.Println("   Run devctx init in a project directory.")
		return nil
	}

	fmt.Printf("\n%s Tracked Projects\n\n", a.e("📁", "*"))
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPATH\tLAST ACTIVE\tSTATUS")
	for _, l := range listings {
		status := "Idle"
		if l.Active {
			status = "Active"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Project.Name, l.Project.Path, l.LastActive, status)
	}
	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	projectName := ""
	if len(args) > 0 {
		projectName = args[0]
	}

	res, err := a.manager.History(cwd(), projectName, historyLimit)
	if errors.Is(err, session.ErrProjectNotFound) {
		if projectName != "" {
			fmt.Printf("%s Project '%s' not found.\n", a.e("❌", "x"), projectName)
		} else {
			fmt.Printf("%s Project not initialized. Run devctx init first.\n", a.e("❌", "x"))
		}
		return nil
	}
	if err != nil {
		return err
	}

	if len(res.Entries) == 0 {
		fmt.Printf("%s No session history for %s.\n", a.e("ℹ️", "i"), res.Project.Name)
		return nil
	}

	fmt.Printf("\n%s Session History: %s\n\n", a.e("📜", "*"), res.Project.Name)
	now := time.Now()
	for _, entry := range res.Entries {
		sess := entry.Session
		var timeStr, duration string
		if sess.EndedAt != nil {
			timeStr = format.TimeAgo(*sess.EndedAt, now)
			duration = format.Duration(sess.StartedAt, *sess.EndedAt)
		} else {
			timeStr = "Active"
			duration = format.Duration(sess.StartedAt, now)
		}
		fmt.Printf("%s (%s)\n", timeStr, duration)
		if sess.Summary != "" {
			fmt.Printf("   %s\n", clip(sess.Summary, 100))
		}
		if entry.NoteCount > 0 {
			fmt.Printf("   %s %d note(s)\n", a.e("📝", "+"), entry.NoteCount)
		}
		fmt.Println()
	}
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.manager.Resume(cmd.Context(), cwd())
	if errors.Is(err, session.ErrProjectNotFound) {
		fmt.Printf("%s Project not initialized. Run devctx init first.\n", a.e("❌", "x"))
		return nil
	}
	if err != nil {
		return err
	}

	printPanel(fmt.Sprintf("%s Project", a.e("📁", "*")),
		fmt.Sprintf("%s\nLast active: %s", res.Project.Name, res.TimeAway))

	if res.LastSession != nil && res.LastSession.Summary != "" {
		printPanel(fmt.Sprintf("%s Last Session", a.e("🔄", "~")), res.LastSession.Summary)
	}

	if len(res.RecentNotes) > 0 {
		var lines []string
		for _, n := range res.RecentNotes {
			lines = append(lines, "• "+n.Content)
		}
		printPanel(fmt.Sprintf("%s Recent Notes", a.e("📝", "+")), strings.Join(lines, "\n"))
	}

	if res.Snapshot != nil {
		info := []string{fmt.Sprintf("Branch: %s", res.Snapshot.Branch)}
		if len(res.Snapshot.ModifiedFiles) > 0 {
			info = append(info, fmt.Sprintf("Modified: %d files", len(res.Snapshot.ModifiedFiles)))
		}
		if res.Snapshot.HasUncommittedChanges {
			info = append(info, fmt.Sprintf("%s Uncommitted changes", a.e("⚠️", "!")))
		}
		printPanel(fmt.Sprintf("%s Git Status", a.e("🔀", "~")), strings.Join(info, "\n"))
	}

	if res.Prompt != "" {
		printPanel(fmt.Sprintf("%s Suggested Next Step", a.e("⏭️", ">")), res.Prompt)
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Printf("%s Generating AI summary...\n", a.e("🤖", "..."))

	res, err := a.manager.MidSummary(cmd.Context(), cwd())
	if errors.Is(err, session.ErrProjectNotFound) {
		fmt.Printf("%s Project not initialized. Run devctx init first.\n", a.e("❌", "x"))
		return nil
	}
	if errors.Is(err, session.ErrNoActiveSession) {
		fmt.Printf("%s No active session. Use devctx resume to see last session.\n", a.e("ℹ️", "i"))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("\n%s Session Summary for %s (%s)\n", a.e("📊", "*"),
		res.Project.Name, format.Span(res.Duration))

	if len(res.Notes) > 0 {
		var lines []string
		for _, n := range res.Notes {
			lines = append(lines, "• "+n)
		}
		printPanel(fmt.Sprintf("%s Notes", a.e("📝", "+")), strings.Join(lines, "\n"))
	}
	if res.GitText != "" {
		printPanel(fmt.Sprintf("%s Git Activity", a.e("🔀", "~")), res.GitText)
	}
	printPanel("Summary", res.Summary)

	if !a.backend.Available(cmd.Context()) {
		fmt.Printf("\n%s Tip: Run devctx doctor to check Ollama setup for AI summaries.\n", a.e("💡", "*"))
	}
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()
	healthy := true

	fmt.Printf("\n%s DevContext Health Check\n\n", a.e("🩺", "*"))

	projects, err := a.store.ListProjects()
	if err != nil {
		fmt.Printf("%s Database: %v\n", a.e("❌", "[ERR]"), err)
		healthy = false
	} else {
		fmt.Printf("%s Database: %d project(s) tracked\n", a.e("✅", "[OK]"), len(projects))
	}

	if _, err := os.Stat(a.cfg.DataDir); err == nil {
		fmt.Printf("%s Data directory: %s\n", a.e("✅", "[OK]"), a.cfg.DataDir)
	} else {
		fmt.Printf("%s Data directory not created yet\n", a.e("⚠️", "[WARN]"))
	}

	if repo, err := gitio.Open(cwd()); err == nil && repo != nil {
		fmt.Printf("%s Git: repository detected\n", a.e("✅", "[OK]"))
	} else {
		fmt.Printf("%s Git: no repository here (git features disabled)\n", a.e("⚠️", "[WARN]"))
	}

	if path, err := exec.LookPath("ollama"); err == nil {
		fmt.Printf("%s Ollama binary: %s\n", a.e("✅", "[OK]"), path)
	} else {
		fmt.Printf("%s Ollama: Not installed\n", a.e("❌", "[ERR]"))
		fmt.Println("         Install from: https://ollama.ai")
		healthy = false
	}

	if a.backend.Available(ctx) {
		fmt.Printf("%s Ollama service: Running\n", a.e("✅", "[OK]"))

		if a.backend.HasModel(ctx) {
			fmt.Printf("%s Model: %s available\n", a.e("✅", "[OK]"), a.cfg.Model)
		} else {
			fmt.Printf("%s Model: %s not found\n", a.e("❌", "[ERR]"), a.cfg.Model)
			fmt.Printf("         Run: ollama pull %s\n", a.cfg.Model)
			healthy = false
		}
	} else {
		fmt.Printf("%s Ollama service: Not running\n", a.e("❌", "[ERR]"))
		fmt.Println("         Run: ollama serve")
		healthy = false
	}

	fmt.Println()
	if healthy {
		fmt.Printf("%s All systems operational!\n", a.e("🎉", "[OK]"))
	} else {
		fmt.Printf("%s Some issues found. AI summaries may be limited.\n", a.e("⚠️", "!"))
	}
	return nil
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	server := mcp.NewServer(a.manager)
	return server.Run(context.Background())
}

func init() {
	initCmd.Flags().StringVarP(&initName, "name", "n", "", "Project name (defaults to directory name)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 5, "Number of sessions to show")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(endCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(mcpServeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
