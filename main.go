// halcyon CLI entry point
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/config"
	"github.com/halcyon-chat/halcyon/internal/docload"
	"github.com/halcyon-chat/halcyon/internal/service"
	"github.com/halcyon-chat/halcyon/internal/store"
	"github.com/halcyon-chat/halcyon/internal/toolhost"
	"github.com/halcyon-chat/halcyon/internal/transport"
	"github.com/halcyon-chat/halcyon/internal/tui"
)

var version = "dev"

func init() {
	if version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
}

func main() {
	versionFlag := flag.Bool("version", false, "Print version and exit")
	vendorFlag := flag.String("vendor", "", "Vendor: openai, claude, gemini, mistral, or ollama")
	modelFlag := flag.String("model", "", "Model name (e.g. gpt-4o, claude-sonnet-4)")
	continueFlag := flag.String("c", "", "Resume a session (latest, or pass a session ID)")
	listFlag := flag.Bool("sessions", false, "List stored sessions and exit")
	flag.Parse()

	logger := config.NewLogger()
	defer logger.Close()

	if *versionFlag {
		fmt.Printf("halcyon %s\n", version)
		return
	}

	prefs, err := config.LoadPreferences()
	if err != nil {
		fatal(err)
	}
	if *vendorFlag != "" {
		prefs.Vendor = *vendorFlag
	}
	if *modelFlag != "" {
		prefs.Model = *modelFlag
	}
	if !config.IsKnownVendor(prefs.Vendor) {
		fatal(fmt.Errorf("unknown vendor %q", prefs.Vendor))
	}

	st, err := store.Open()
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	if *listFlag {
		listSessions(st)
		return
	}

	session, history, err := resolveSession(st, prefs.Model, *continueFlag)
	if err != nil {
		fatal(err)
	}

	apiKey, err := config.APIKey(prefs, prefs.Vendor)
	if err != nil {
		fatal(err)
	}

	// Tool servers come up in the background; the first turn sees whatever
	// has connected by then.
	host := toolhost.NewHost()
	cwd, _ := os.Getwd()
	if toolCfg, cfgErr := toolhost.LoadConfig(cwd); cfgErr != nil {
		fmt.Fprintf(os.Stderr, "halcyon: tool config: %v\n", cfgErr)
	} else if len(toolCfg.Servers) > 0 {
		host.StartAll(context.Background(), toolCfg)
	}
	defer host.StopAll()

	var tr transport.Transport = &transport.Direct{}
	if prefs.RelayURL != "" {
		tr = &transport.Relay{BaseURL: prefs.RelayURL, Token: prefs.RelayToken}
	}

	opts := service.Options{
		Model:        prefs.Model,
		APIKey:       apiKey,
		BaseURL:      prefs.BaseURL(prefs.Vendor),
		System:       prefs.SystemPrompt,
		Temperature:  prefs.Temperature,
		MaxTokens:    prefs.MaxTokens,
		HistoryTurns: prefs.HistoryTurns,
	}
	svc := newService(prefs.Vendor, opts, tr, host)

	m := tui.InitialModel(version, prefs.Model, svc, st, session, history)
	p := tea.NewProgram(m)
	tui.SetProgram(p)

	svc.OnReading = func(content, reasoning string) {
		p.Send(tui.StreamDeltaMsg{Content: content, Reasoning: reasoning})
	}
	svc.OnToolCalls = func(name string) {
		p.Send(tui.ToolStatusMsg{Name: name})
	}
	svc.OnComplete = func(res service.Result) {
		p.Send(tui.TurnDoneMsg{Result: res})
	}

	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}

func newService(vendorName string, opts service.Options, tr transport.Transport, host *toolhost.Host) *service.Service {
	loader := docload.New()
	switch vendorName {
	case "claude":
		return service.NewClaude(opts, tr, host, loader)
	case "gemini":
		return service.NewGemini(opts, tr, host, loader)
	case "mistral":
		return service.NewMistral(opts, tr, host, loader)
	case "ollama":
		return service.NewOllama(opts, tr, host, loader)
	default:
		return service.NewOpenAI(opts, tr, host, loader)
	}
}

// resolveSession creates a fresh session, or reopens one when resuming.
// continueArg is "" for a new session, "latest"/"last" for the most recent
// one, or a session ID.
func resolveSession(st *store.Store, model, continueArg string) (*store.Session, []chat.Message, error) {
	if continueArg == "" {
		s, err := st.CreateSession(model)
		return s, nil, err
	}

	sessions, err := st.ListSessions(0)
	if err != nil {
		return nil, nil, err
	}
	var target *store.Session
	if continueArg == "latest" || continueArg == "last" {
		if len(sessions) == 0 {
			return nil, nil, fmt.Errorf("no sessions to resume")
		}
		target = &sessions[0]
	} else {
		for i := range sessions {
			if sessions[i].ID == continueArg {
				target = &sessions[i]
				break
			}
		}
		if target == nil {
			return nil, nil, fmt.Errorf("session %q not found", continueArg)
		}
	}

	history, err := st.History(target.ID)
	if err != nil {
		return nil, nil, err
	}
	return target, history, nil
}

func listSessions(st *store.Store) {
	sessions, err := st.ListSessions(0)
	if err != nil {
		fatal(err)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return
	}
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s  %s  %s\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04"), s.Model, title)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "halcyon: %v\n", err)
	os.Exit(1)
}
