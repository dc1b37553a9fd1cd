package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// equityReport renders the cumulative realized profit over the requested
// number of days (default 30) as an interactive chart.
func (s *Server) equityReport(c *gin.Context) {
	days := 30
	if n, err := strconv.Atoi(c.Query("days")); err == nil && n > 0 {
		days = n
	}
	to := time.Now()
	from := to.AddDate(0, 0, -days)

	rows, err := s.journal.Range(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var (
		labels []string
		points []opts.LineData
		equity float64
	)
	for _, r := range rows {
		equity += r.Profit
		labels = append(labels, r.ClosedAt.Format("01-02 15:04"))
		points = append(points, opts.LineData{Value: equity})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Realized equity", Subtitle: "cumulative profit per closed trade"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(labels).AddSeries("equity", points)

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
