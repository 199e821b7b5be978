package notification

import (
	"bytes"
	"html/template"
)

// StatusChangeData 状态变更邮件
type StatusChangeData struct {
	Name       string
	URL        string
	OldStatus  string
	NewStatus  string
	Message    string
	Color      string
	StatusText string
	DateTime   string
}

// DailyReportData 每日速报，统计的是前一个自然日
type DailyReportData struct {
	Date          string
	TotalCount    int
	UptimePercent float64
	DownCount     int
	DownColor     string
	Monitors      []ReportRow
}

type ReportRow struct {
	Name        string
	Type        string
	Uptime      string
	AvgResponse string
	Downtime    string
	Status      string
	Color       string
	UptimeColor string
	RowBg       string
}

// 邮件正文：一份公共外壳 + 两个内容块，样式集中在 <style> 中
const emailLayout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body{margin:0;padding:16px;background:#f4f6f8;font:14px/1.5 -apple-system,"Segoe UI",Roboto,Arial,sans-serif;color:#1f2933}
.box{max-width:640px;margin:0 auto;background:#fff;border:1px solid #e4e7eb}
.bar{padding:16px 24px;color:#fff}
.bar h1{margin:0;font-size:20px}
.sec{padding:16px 24px}
.muted{color:#7b8794;font-size:12px}
table{width:100%;border-collapse:collapse}
th,td{padding:6px 8px;border-bottom:1px solid #eef0f2;text-align:left}
td.n{font-family:monospace;text-align:right}
</style>
</head>
<body><div class="box">{{template "content" .}}<div class="sec muted">Uptime Status · data from UptimeRobot</div></div></body>
</html>{{end}}`

const statusChangeTemplate = `{{define "content"}}
<div class="bar" style="background:{{.Color}}"><h1>{{.StatusText}}</h1><span>{{.DateTime}}</span></div>
<div class="sec">
<p><b>{{.Name}}</b><br><a href="{{.URL}}">{{.URL}}</a></p>
<p>{{.OldStatus}} → <b style="color:{{.Color}}">{{.NewStatus}}</b></p>
<pre>{{.Message}}</pre>
</div>{{end}}`

const dailyReportTemplate = `{{define "content"}}
<div class="bar" style="background:#2ecc71"><h1>Uptime Status 每日速报</h1><span>{{.Date}}</span></div>
<div class="sec">
<p>监控总数 <b>{{.TotalCount}}</b> · 系统在线率 <b>{{printf "%.1f" .UptimePercent}}%</b> · 异常服务 <b style="color:{{.DownColor}}">{{.DownCount}}</b></p>
<table>
<tr class="muted"><th>服务名称</th><th>类型</th><th>在线率</th><th>平均延迟</th><th>宕机时长</th><th>状态</th></tr>
{{range .Monitors}}<tr style="background:{{.RowBg}}">
<td>{{.Name}}</td><td class="muted">{{.Type}}</td>
<td class="n" style="color:{{.UptimeColor}}">{{.Uptime}}</td>
<td class="n">{{.AvgResponse}}</td>
<td class="n">{{.Downtime}}</td>
<td style="color:{{.Color}}">{{.Status}}</td>
</tr>{{end}}
</table>
</div>{{end}}`

var (
	statusChangeTmpl = mustEmail("status_change", statusChangeTemplate)
	dailyReportTmpl  = mustEmail("daily_report", dailyReportTemplate)
)

func mustEmail(name, content string) *template.Template {
	t := template.Must(template.New(name).Parse(emailLayout))
	return template.Must(t.Parse(content))
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderStatusChangeEmail renders the status change HTML email
func RenderStatusChangeEmail(data StatusChangeData) (string, error) {
	return render(statusChangeTmpl, data)
}

// RenderDailyReportEmail renders the daily report HTML email
func RenderDailyReportEmail(data DailyReportData) (string, error) {
	return render(dailyReportTmpl, data)
}
