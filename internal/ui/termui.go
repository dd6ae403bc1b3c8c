package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/skalibog/bfsa/internal/analysis/aggregator"
	"github.com/skalibog/bfsa/internal/config"
	"github.com/skalibog/bfsa/internal/notify"
	"github.com/skalibog/bfsa/pkg/models"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	mutedColor     = lipgloss.Color("#999999")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1)
	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#ffffff")).
				Background(secondaryColor).
				Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("#222222"))
	footerStyle   = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
)

const maxReasonWidth = 48

// TermUI представляет терминальный интерфейс
type TermUI struct {
	program *tea.Program
}

// reportMsg новый отчет цикла анализа
type reportMsg struct {
	report *aggregator.CycleReport
}

// NewTermUI создает интерфейс. Нажатие R отправляет запрос в trigger.
func NewTermUI(cfg config.UIConfig, trigger chan<- struct{}) *TermUI {
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.RefreshRate > 0 {
		opts = append(opts, tea.WithFPS(max(1, 1000/cfg.RefreshRate)))
	}

	return &TermUI{
		program: tea.NewProgram(NewModel(trigger), opts...),
	}
}

// Start запускает UI и блокирует до выхода пользователя
func (ui *TermUI) Start() error {
	_, err := ui.program.Run()
	return err
}

// Quit закрывает интерфейс
func (ui *TermUI) Quit() {
	ui.program.Quit()
}

// UpdateReport передает в UI результаты очередного цикла
func (ui *TermUI) UpdateReport(report *aggregator.CycleReport) {
	ui.program.Send(reportMsg{report: report})
}

// Model модель bubbletea для таблицы рекомендаций
type Model struct {
	report     *aggregator.CycleReport
	selected   int
	width      int
	height     int
	refreshing bool
	trigger    chan<- struct{}
}

// NewModel создает модель интерфейса
func NewModel(trigger chan<- struct{}) Model {
	return Model{
		width:      120,
		height:     40,
		refreshing: true,
		trigger:    trigger,
	}
}

// Методы для bubbletea
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.selected = max(0, m.selected-1)
		case "down", "j":
			m.selected = min(max(0, m.rows()-1), m.selected+1)
		case "r":
			m.requestRefresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case reportMsg:
		m.report = msg.report
		m.refreshing = false
		m.selected = min(m.selected, max(0, m.rows()-1))
	}

	return m, nil
}

// requestRefresh ставит в очередь внеплановый цикл; повторные нажатия объединяются
func (m *Model) requestRefresh() {
	if m.trigger == nil {
		return
	}
	select {
	case m.trigger <- struct{}{}:
		m.refreshing = true
	default:
	}
}

func (m Model) rows() int {
	if m.report == nil {
		return 0
	}
	return len(m.report.Recommendations)
}

func (m Model) View() string {
	title := titleStyle.Render("BFSA - Binance Futures Scalp Advisor")
	footer := footerStyle.Render("Клавиши: ↑/↓ - навигация, R - обновить, Q - выход")

	sections := []string{title, m.statusLine(), ""}
	if m.report == nil {
		sections = append(sections, sectionStyle.Render("  Ожидание данных..."))
	} else {
		sections = append(sections,
			renderSection("РЕКОМЕНДАЦИИ", renderTable(m.report.Recommendations, m.selected)),
			renderSection("ДЕТАЛИ", renderDetails(m.selectedRecommendation())),
		)
	}
	sections = append(sections, footer)

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) statusLine() string {
	style := lipgloss.NewStyle().Foreground(mutedColor)
	if m.report == nil {
		return style.Render("Первый цикл анализа...")
	}

	status := fmt.Sprintf("Цикл %s | %s | %s | пар: %d, ошибок: %d",
		shortID(m.report.ID),
		m.report.StartedAt.Format("15:04:05"),
		m.report.Duration.Round(time.Millisecond),
		len(m.report.Symbols),
		m.report.Failed)
	if m.refreshing {
		status += " | обновление..."
	}
	return style.Render(status)
}

func (m Model) selectedRecommendation() *models.Recommendation {
	if m.selected < 0 || m.selected >= m.rows() {
		return nil
	}
	return m.report.Recommendations[m.selected]
}

// Table возвращает таблицу рекомендаций без выделения строки (режим без UI)
func Table(recs []*models.Recommendation) string {
	return renderTable(recs, -1)
}

func renderSection(header, content string) string {
	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			sectionHeaderStyle.Render(header),
			content,
		),
	)
}

// Вспомогательные функции
func renderTable(recs []*models.Recommendation, selected int) string {
	if len(recs) == 0 {
		return "  Нет пар для анализа\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  %-14s %14s %12s %7s %9s %14s %14s %-12s %5s  %s\n",
		"ПАРА", "ЦЕНА", "ATR", "ATR%", "ФАНДИНГ", "OI", "CVD", "СИГНАЛ", "RRR", "ПРИЧИНА")

	for i, rec := range recs {
		var line string
		if rec.Failed() {
			line = fmt.Sprintf("%-14s %s", rec.Symbol, lipgloss.NewStyle().Foreground(errorColor).Render("ошибка: "+truncate(rec.Error, maxReasonWidth)))
		} else {
			rr := "-"
			if rec.Levels != nil {
				rr = notify.FormatRatio(rec.Levels.RiskReward)
			}
			line = fmt.Sprintf("%-14s %14s %12s %6.2f%% %8.4f%% %14.2f %14s %s %5s  %s",
				rec.Symbol,
				notify.FormatPrice(rec.Price),
				notify.FormatPrice(rec.ATR),
				rec.ATRPercent*100,
				rec.Funding*100,
				rec.OpenInterest,
				formatCVD(rec.CVD),
				signalStyle(rec.Signal).Width(12).Render(string(rec.Signal)),
				rr,
				truncate(rec.Reason, maxReasonWidth))
		}

		if i == selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}

func renderDetails(rec *models.Recommendation) string {
	if rec == nil {
		return "  Пара не выбрана"
	}
	if rec.Failed() {
		return fmt.Sprintf("  %s\n  Ошибка: %s", rec.Symbol, rec.Error)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  %s  %s\n", rec.Symbol, signalStyle(rec.Signal).Render(string(rec.Signal)))
	fmt.Fprintf(&b, "  Причина: %s\n", rec.Reason)
	if lv := rec.Levels; lv != nil {
		fmt.Fprintf(&b, "  Вход: %s  TP: %s  SL: %s  RRR: %s\n",
			notify.FormatPrice(lv.Entry),
			notify.FormatPrice(lv.TakeProfit),
			notify.FormatPrice(lv.StopLoss),
			notify.FormatRatio(lv.RiskReward))
	} else {
		b.WriteString("  Уровни не рассчитываются для WAIT\n")
	}
	fmt.Fprintf(&b, "  Обновлено: %s", rec.Timestamp.Format("15:04:05"))
	return b.String()
}

func signalStyle(signal models.SignalKind) lipgloss.Style {
	switch signal {
	case models.SignalScalpLong:
		return lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case models.SignalScalpShort:
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(warningColor)
	}
}

func formatCVD(cvd *float64) string {
	if cvd == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *cvd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
