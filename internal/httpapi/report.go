package httpapi

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/oguz-kara/pos-app-sub001/internal/domain"
	"github.com/oguz-kara/pos-app-sub001/internal/money"
)

func dailyReportToCSV(report domain.DailyReport) string {
	fixed := func(v interface{ StringFixed(int32) string }) string { return v.StringFixed(money.Places) }
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,date,%s", report.Date),
		fmt.Sprintf("summary,store_id,%s", report.StoreID),
		fmt.Sprintf("summary,closed_by,%s", report.ClosedBy),
		fmt.Sprintf("sales,gross_cash_sales,%s", fixed(report.GrossCashSales)),
		fmt.Sprintf("sales,card_sales,%s", fixed(report.CardSales)),
		fmt.Sprintf("sales,total_gross_sales,%s", fixed(report.TotalGrossSales)),
		fmt.Sprintf("cash,total_refunds,%s", fixed(report.TotalRefunds)),
		fmt.Sprintf("cash,net_expected_cash,%s", fixed(report.NetExpectedCash)),
		fmt.Sprintf("cash,cash_counted,%s", fixed(report.CashCounted)),
		fmt.Sprintf("cash,variance,%s", fixed(report.Variance)),
		fmt.Sprintf("cash,variance_percentage,%s", fixed(report.VariancePercentage)),
		fmt.Sprintf("cash,severity,%s", report.Severity),
	}
	return strings.Join(lines, "\n") + "\n"
}

// html/template escapes every field, including operator notes.
var dailyReportHTMLTmpl = template.Must(template.New("daily-report").Funcs(template.FuncMap{
	"fixed": func(v interface{ StringFixed(int32) string }) string { return v.StringFixed(money.Places) },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Z-Report {{.Date}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
  </style>
</head>
<body>
  <h2>Z-Report {{.Date}}</h2>
  <p>Store: {{.StoreID}} | Closed by: {{.ClosedBy}}</p>
  <table>
    <tr><th>Gross cash sales</th><td class="num">{{fixed .GrossCashSales}}</td></tr>
    <tr><th>Card sales</th><td class="num">{{fixed .CardSales}}</td></tr>
    <tr><th>Total gross sales</th><td class="num">{{fixed .TotalGrossSales}}</td></tr>
    <tr><th>Refunds (cash)</th><td class="num">{{fixed .TotalRefunds}}</td></tr>
    <tr><th>Net expected cash</th><td class="num">{{fixed .NetExpectedCash}}</td></tr>
    <tr><th>Cash counted</th><td class="num">{{fixed .CashCounted}}</td></tr>
    <tr><th>Variance</th><td class="num">{{fixed .Variance}} ({{fixed .VariancePercentage}}%)</td></tr>
    <tr><th>Severity</th><td>{{.Severity}}</td></tr>
  </table>
  {{if .Notes}}<p>Notes: {{.Notes}}</p>{{end}}
</body>
</html>
`))

func dailyReportToPrintableHTML(report domain.DailyReport) string {
	var buf bytes.Buffer
	if err := dailyReportHTMLTmpl.Execute(&buf, report); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
