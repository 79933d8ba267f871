package reporting

import (
	"fmt"
	"time"

	"callscreen-platform/internal/mailer"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	summarySheet = "Summary"
	callsSheet   = "Calls"
)

// BuildWorkbook renders the period's calls as an xlsx attachment with a
// Summary sheet and a Calls sheet.
func BuildWorkbook(data ReportData) (mailer.Attachment, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return mailer.Attachment{}, fmt.Errorf("workbook: %w", err)
	}
	summary := [][]any{
		{"Report", data.Period.Label},
		{"Period start", data.Period.Start.Format(time.RFC3339)},
		{"Period end", data.Period.End.Format(time.RFC3339)},
		{"Total calls", data.TotalCalls},
		{"Qualified leads", data.QualifiedLeads},
		{"Not qualified", data.NotQualified},
		{"Pending", data.Pending},
		{"Conversion rate (%)", data.ConversionRate},
		{"Successful calls", data.SuccessfulCalls},
		{"Average call duration (s)", data.AverageCallDuration},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return mailer.Attachment{}, err
	}

	if _, err := f.NewSheet(callsSheet); err != nil {
		return mailer.Attachment{}, fmt.Errorf("workbook: %w", err)
	}
	rows := [][]any{{"Created", "Conversation", "Agent", "Name", "Phone", "Status", "Duration (s)", "Successful"}}
	for _, c := range data.Calls {
		rows = append(rows, []any{
			c.CreatedAt.Format(time.RFC3339),
			c.ConversationID,
			c.AgentID,
			c.Name,
			c.Phone,
			c.Qualification,
			c.Duration,
			c.Successful,
		})
	}
	if err := writeRows(f, callsSheet, rows); err != nil {
		return mailer.Attachment{}, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return mailer.Attachment{}, fmt.Errorf("workbook: %w", err)
	}
	return mailer.Attachment{
		Filename:    "call-report-" + data.Period.Start.Format("2006-01-02") + ".xlsx",
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("workbook %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
