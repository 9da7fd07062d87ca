package tui

import "github.com/charmbracelet/lipgloss"

var (
	WelcomeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	UserIconStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	AsstIconStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	PromptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("183"))
	InputStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	ThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	ReasonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)

	FooterHead   = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	FooterTokens = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	FooterMeta   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	ErrorLineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	BulletStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("180"))
	HeadingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("222")).Bold(true)
	CodeGutterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	InlineCodeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))

	ToolNameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("147")).Bold(true)
	ToolResultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
)
