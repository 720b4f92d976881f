package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// messageSender is the outbound slice of the messaging platform: deliver one
// text message to a destination.
type messageSender interface {
	SendMessage(channelID, text string) error
}

// Follow-up windows, in days before today: a reminder for customers who
// bought exactly reminderDaysAgo ago, and a re-engagement list for customers
// whose last window of activity falls between followUpMinDays and
// followUpMaxDays ago.
const (
	reminderDaysAgo  = 4
	followUpMinDays  = 5
	followUpMaxDays  = 10
	topCustomerCount = 3
)

// StartDailyReportScheduler registers the once-daily follow-up job at the
// configured wall-clock time in the business timezone.
func StartDailyReportScheduler(cfg Config, db *sql.DB, sender messageSender) *cron.Cron {
	hour, min, err := parseClock(cfg.ReportTime)
	if err != nil {
		// Validated at startup; keep the daily job alive regardless.
		hour, min = 9, 0
	}

	c := cron.New(cron.WithLocation(cfg.Location))
	spec := fmt.Sprintf("%d %d * * *", min, hour)
	_, err = c.AddFunc(spec, func() {
		log.Println("Running daily follow-up report...")
		if err := SendFollowUpReports(cfg, db, sender); err != nil {
			log.Printf("daily follow-up report error: %v", err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling daily report: %v", err)
		return c
	}
	c.Start()
	log.Printf("Daily follow-up report scheduled at %02d:%02d %s", hour, min, cfg.BusinessTimezone)
	return c
}

// SendFollowUpReports reads the two follow-up windows from the ledger and
// posts the formatted lists to the alert destination.
func SendFollowUpReports(cfg Config, db *sql.DB, sender messageSender) error {
	reminder, err := SalesOnDay(db, DaysAgoDate(reminderDaysAgo, cfg.Location))
	if err != nil {
		return fmt.Errorf("loading %d-day reminder list: %w", reminderDaysAgo, err)
	}
	if len(reminder) > 0 {
		msg := formatCustomerList(
			fmt.Sprintf("📋 *RECORDATORIO (%d DÍAS)*\n_Ofrecer recarga de agua:_", reminderDaysAgo),
			reminder,
		)
		if err := sender.SendMessage(cfg.AlertChannelID, msg); err != nil {
			return fmt.Errorf("sending reminder report: %w", err)
		}
	}

	followUp, err := SalesInRange(db, cfg.Location, followUpMinDays, followUpMaxDays)
	if err != nil {
		return fmt.Errorf("loading %d-%d day follow-up list: %w", followUpMinDays, followUpMaxDays, err)
	}
	if len(followUp) > 0 {
		msg := formatCustomerList(
			fmt.Sprintf("📋 *SEGUIMIENTO (%d-%d DÍAS)*\n_Clientes que no han comprado recientemente:_", followUpMinDays, followUpMaxDays),
			followUp,
		)
		if err := sender.SendMessage(cfg.AlertChannelID, msg); err != nil {
			return fmt.Errorf("sending follow-up report: %w", err)
		}
	}
	return nil
}

func formatCustomerList(header string, customers []Customer) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	for _, c := range customers {
		b.WriteString(fmt.Sprintf("👤 %s\n🔗 https://wa.me/%s\n\n", c.Name, c.Number))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatFinancialSummary renders the four fixed windows plus the month's top
// customers as one reply message.
func FormatFinancialSummary(s FinancialSummaryResult, top []TopCustomer) string {
	var b strings.Builder
	b.WriteString("💰 *RESUMEN FINANCIERO*\n\n")
	b.WriteString(formatPeriod("Hoy", s.Today))
	b.WriteString(formatPeriod("Ayer", s.Yesterday))
	b.WriteString(formatPeriod("Últimos 7 días", s.Week))
	b.WriteString(formatPeriod("Mes actual", s.Month))

	if len(top) > 0 {
		b.WriteString("\n🏆 *TOP CLIENTES DEL MES*\n")
		for i, t := range top {
			b.WriteString(fmt.Sprintf("%d. %s — %d bidones\n", i+1, t.Name, t.TotalQty))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPeriod(label string, p PeriodTotals) string {
	return fmt.Sprintf("*%s:* %d ventas, %d bidones, $%d CLP\n", label, p.Count, p.Qty, p.Total)
}

// WriteMonthlyExport writes the month-to-date sales detail as a CSV file
// under outputDir and returns its path.
func WriteMonthlyExport(db *sql.DB, loc *time.Location, outputDir string) (string, error) {
	records, err := MonthlySalesDetail(db, loc)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("ventas_%s.csv", time.Now().In(loc).Format("200601"))
	path := filepath.Join(outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"fecha", "nombre", "numero", "direccion", "cantidad", "total_clp"}); err != nil {
		return "", err
	}
	for _, r := range records {
		row := []string{r.Date, r.Name, r.Number, r.Address, strconv.Itoa(r.Quantity), strconv.Itoa(r.TotalCLP)}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, nil
}
