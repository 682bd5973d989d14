package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"slopesniper/internal/core"
)

// dashKeys are the dashboard's key bindings, grounded on the teacher's
// key.Binding table in internal/tui/model.go.
type dashKeys struct {
	Quit    key.Binding
	Refresh key.Binding
}

var dashKeyMap = dashKeys{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
	Refresh: key.NewBinding(key.WithKeys("r")),
}

var (
	dashBg     = lipgloss.Color("#0f1c2e")
	dashBorder = lipgloss.Color("#2e7de9")
	dashText   = lipgloss.Color("#a9b1d6")
	dashActive = lipgloss.Color("#7aa2f7")
	dashProfit = lipgloss.Color("#9ece6a")
	dashLoss   = lipgloss.Color("#f7768e")
	dashWarn   = lipgloss.Color("#ff9e64")

	dashFrame = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dashBorder).
			Padding(1, 2).
			Background(dashBg).
			Foreground(dashText)

	dashHeader = lipgloss.NewStyle().Bold(true).Foreground(dashActive)
	dashKey    = lipgloss.NewStyle().Foreground(dashActive).Bold(true)
	dashFooter = lipgloss.NewStyle().Foreground(dashText).Italic(true)
)

// dashboardModel is the bubbletea Model for the live status view,
// adapted from the teacher's TickMsg-driven refresh loop in
// internal/tui/model.go, condensed to the fields this agent tracks.
type dashboardModel struct {
	core *core.Core
	err  error

	walletAddress string
	balanceSOL    string
	strategyName  string
	daemonRunning bool
	daemonPID     int

	totalValue string
	realized   string
	unrealized string

	lastRefresh time.Time
}

type dashTickMsg time.Time

type dashRefreshMsg struct {
	status     *core.Status
	totalValue string
	realized   string
	unrealized string
	pnlErr     error
}

func newDashboardModel(c *core.Core) dashboardModel {
	return dashboardModel{core: c}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return dashTickMsg(t) })
}

func (m dashboardModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		st, err := m.core.GetStatus(ctx)
		if err != nil {
			return dashRefreshMsg{pnlErr: err}
		}
		p, perr := m.core.GetPortfolioPnL(ctx)
		msg := dashRefreshMsg{status: st, pnlErr: perr}
		if perr == nil {
			msg.totalValue = p.TotalValue.StringFixed(2)
			msg.realized = p.TotalRealized.StringFixed(2)
			msg.unrealized = p.TotalUnrealized.StringFixed(2)
		}
		return msg
	}
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, dashKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, dashKeyMap.Refresh):
			return m, m.refreshCmd()
		}
	case dashTickMsg:
		return m, tea.Batch(m.refreshCmd(), tickCmd())
	case dashRefreshMsg:
		m.lastRefresh = time.Now()
		if msg.status != nil {
			m.walletAddress = msg.status.WalletAddress
			m.balanceSOL = msg.status.BalanceSOL.StringFixed(4)
			if msg.status.ActiveStrategy != nil {
				m.strategyName = msg.status.ActiveStrategy.Name
			}
			m.daemonRunning = msg.status.DaemonRunning
			m.daemonPID = msg.status.DaemonPID
		}
		if msg.pnlErr == nil {
			m.totalValue, m.realized, m.unrealized = msg.totalValue, msg.realized, msg.unrealized
		}
		m.err = msg.pnlErr
	}
	return m, nil
}

func (m dashboardModel) View() string {
	header := dashHeader.Render("SLOPESNIPER — live status")

	wallet := orNone(m.walletAddress)
	daemon := daemonLabel(m.daemonRunning, m.daemonPID)

	body := fmt.Sprintf(
		"%s %s\n%s %s SOL\n%s %s\n%s %s\n\n%s %s\n%s %s\n%s %s",
		dashKey.Render("Wallet:"), wallet,
		dashKey.Render("Balance:"), m.balanceSOL,
		dashKey.Render("Strategy:"), orNone(m.strategyName),
		dashKey.Render("Daemon:"), daemon,
		dashKey.Render("Portfolio:"), orNone(m.totalValue),
		dashKey.Render("Realized:"), orNone(m.realized),
		dashKey.Render("Unrealized:"), orNone(m.unrealized),
	)

	if m.err != nil {
		body += "\n\n" + lipgloss.NewStyle().Foreground(dashLoss).Render("error: "+m.err.Error())
	}

	footer := dashFooter.Render(fmt.Sprintf("updated %s — [r]efresh  [q]uit", m.lastRefresh.Format("15:04:05")))

	return dashFrame.Render(header + "\n\n" + body + "\n\n" + footer)
}

func runDashboard(c *core.Core) error {
	p := tea.NewProgram(newDashboardModel(c), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
