package trend

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth   = "100%"
	chartHeight  = "420px"
	areaOpacity  = 0.2
	emptyPoint   = "-"
	dataZoomEnd  = 100
	chartTitle   = "Coverage trend"
	chartPercent = "%"
)

// BuildLineChart converts the chart model into a configured go-echarts line chart.
func BuildLineChart(model LinesChartModel, theme Theme) *charts.Line {
	cfg := theme.config()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       chartTitle,
			Width:           chartWidth,
			Height:          chartHeight,
			BackgroundColor: cfg.Background,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      chartTitle,
			Left:       "center",
			TitleStyle: &opts.TextStyle{Color: cfg.Text},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{
			Show:      opts.Bool(true),
			Top:       "8%",
			TextStyle: &opts.TextStyle{Color: cfg.TextMuted},
		}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "slider", Start: 0, End: dataZoomEnd},
			opts.DataZoom{Type: "inside"},
		),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Color: cfg.TextMuted},
			AxisLine:  &opts.AxisLine{LineStyle: &opts.LineStyle{Color: cfg.Axis}},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:      "value",
			Name:      chartPercent,
			Min:       model.RangeMin,
			Max:       model.RangeMax,
			AxisLabel: &opts.AxisLabel{Color: cfg.TextMuted},
			AxisLine:  &opts.AxisLine{LineStyle: &opts.LineStyle{Color: cfg.Axis}},
			SplitLine: &opts.SplitLine{
				Show:      opts.Bool(true),
				LineStyle: &opts.LineStyle{Color: cfg.Grid},
			},
		}),
	)

	line.SetXAxis(model.Labels)

	for i, s := range model.Series {
		data := make([]opts.LineData, len(s.Data))
		for j, p := range s.Data {
			if p.Valid {
				data[j] = opts.LineData{Value: p.Value}
			} else {
				data[j] = opts.LineData{Value: emptyPoint}
			}
		}

		color := s.Color
		if color == "" {
			color = cfg.Series[i%len(cfg.Series)]
		}

		seriesOpts := []charts.SeriesOpts{
			charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: color}),
		}

		if s.Filled {
			seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(areaOpacity)}))
		}

		line.AddSeries(s.Name, data, seriesOpts...)
	}

	return line
}

// RenderHTML writes the chart model as a standalone HTML page.
func RenderHTML(w io.Writer, model LinesChartModel, theme Theme) error {
	err := BuildLineChart(model, theme).Render(w)
	if err != nil {
		return fmt.Errorf("render trend chart: %w", err)
	}

	return nil
}
