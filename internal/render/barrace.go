package render

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// barRaceChartID names the chart element and its echarts instance.
const barRaceChartID = "bar_race"

// barRaceStepMs is the delay between years while the race plays.
const barRaceStepMs = 1200

// barFrame is one year of the race, ordered bottom to top.
type barFrame struct {
	Year    int       `json:"year"`
	Markets []string  `json:"markets"`
	Values  []float64 `json:"values"`
}

// barRacePlayer steps the chart through the frames. %MY_ECHARTS% is replaced
// with the chart instance when the page is rendered.
const barRacePlayer = `(function () {
	var chart = %%MY_ECHARTS%%;
	var frames = %s;
	var step = %d;
	var current = 0;
	var timer = null;
	function show(i) {
		current = i;
		var f = frames[i];
		chart.setOption({title: {subtext: String(f.year)}, yAxis: {data: f.markets}, series: [{data: f.values}]});
	}
	function pause() {
		clearInterval(timer);
		timer = null;
	}
	function play() {
		if (timer || frames.length < 2) { return; }
		if (current >= frames.length - 1) { show(0); }
		timer = setInterval(function () {
			if (current >= frames.length - 1) { pause(); return; }
			show(current + 1);
		}, step);
	}
	var controls = document.createElement("div");
	controls.className = "bar-race-controls";
	[["Play", play], ["Pause", pause]].forEach(function (b) {
		var button = document.createElement("button");
		button.textContent = b[0];
		button.onclick = b[1];
		controls.appendChild(button);
	});
	var el = document.getElementById("%s");
	el.parentNode.insertBefore(controls, el);
})();`

// RenderBarRace writes an HTML page with an animated horizontal bar chart:
// one frame per year, the largest market on top, played with Play and Pause
// buttons. Assets load from the echarts CDN.
func RenderBarRace(w io.Writer, r domain.MarketReport) error {
	title := fmt.Sprintf("Taiwan IC (HS 8542) Exports - Top 10 Markets (%d-%d)", r.YearMin, r.YearMax)

	maxBn := 0.0
	for _, row := range r.Trend {
		maxBn = max(maxBn, row.ExportUSD/Billion)
	}
	axisMax := roundBn(max(maxBn, 1e-9) * 1.1)

	years := r.Years()
	frames := make([]barFrame, len(years))
	for i, year := range years {
		frames[i] = yearFrame(year, r.TrendFor(year))
	}
	encoded, err := json.Marshal(frames)
	if err != nil {
		return fmt.Errorf("encode bar race frames: %w", err)
	}

	first := barFrame{}
	if len(frames) > 0 {
		first = frames[0]
	}
	bar := raceBar(title, first, axisMax)
	bar.AddJSFuncStrs(opts.FuncOpts(fmt.Sprintf(barRacePlayer, encoded, barRaceStepMs, barRaceChartID)))

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render bar race: %w", err)
	}
	return nil
}

// WriteBarRace renders the bar race page to path, replacing it.
func WriteBarRace(path string, r domain.MarketReport) error {
	var buf bytes.Buffer
	if err := RenderBarRace(&buf, r); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func yearFrame(year int, rows []domain.MarketExport) barFrame {
	// echarts draws the first category at the bottom once axes are swapped.
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, b domain.MarketExport) int {
		return cmp.Or(cmp.Compare(a.ExportUSD, b.ExportUSD), cmp.Compare(b.Market, a.Market))
	})

	f := barFrame{Year: year, Markets: make([]string, len(rows)), Values: make([]float64, len(rows))}
	for i, row := range rows {
		f.Markets[i] = row.Market
		f.Values[i] = roundBn(row.ExportUSD / Billion)
	}
	return f
}

func raceBar(title string, first barFrame, axisMax float64) *charts.Bar {
	data := make([]opts.BarData, len(first.Values))
	for i, v := range first.Values {
		data[i] = opts.BarData{Name: first.Markets[i], Value: v}
	}
	subtitle := ""
	if first.Year != 0 {
		subtitle = fmt.Sprintf("%d", first.Year)
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			ChartID:   barRaceChartID,
			Width:     "900px",
			Height:    "520px",
		}),
		charts.WithAnimation(true),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Exports (USD, Billions)", Type: "value", Min: 0, Max: axisMax}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Market", Type: "category"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "item"}),
	)
	bar.SetXAxis(first.Markets).AddSeries("Exports", data)
	bar.XYReversal()
	return bar
}

func roundBn(v float64) float64 {
	return math.Round(v*1000) / 1000
}
