package render

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/taiwan-data-etl/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Billion converts USD to billions of USD.
const Billion = 1e9

// Chart file names under the output directory.
const (
	TrendPNGName    = "figures/taiwan_ic_top10_trend_en.png"
	BarRaceHTMLName = "interactive/top10_export_markets_bar_race.html"
)

// TrendTitle is the title shared by the static and interactive charts.
func TrendTitle(r domain.MarketReport) string {
	return fmt.Sprintf("Taiwan IC (HS 8542) Exports - Top 10 Markets Trend (%d-%d)", r.YearMin, r.YearMax)
}

// WriteTrendPNG draws one line per market, Y in billions USD, and saves it
// as a PNG at path.
func WriteTrendPNG(path string, r domain.MarketReport) error {
	p := plot.New()
	p.Title.Text = TrendTitle(r)
	p.Title.TextStyle.Font.Size = vg.Points(18)
	p.Title.Padding = vg.Points(12)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Exports (USD, Billions)"
	p.X.Tick.Marker = yearTicks{}
	p.Add(plotter.NewGrid())

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.Add("Market")

	for i, market := range r.Markets() {
		var xys plotter.XYs
		for _, row := range r.Trend {
			if row.Market == market {
				xys = append(xys, plotter.XY{X: float64(row.Year), Y: row.ExportUSD / Billion})
			}
		}
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("trend line %s: %w", market, err)
		}
		line.Width = vg.Points(2)
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(market, line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := p.Save(12*vg.Inch, 7*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// yearTicks labels every whole year in range.
type yearTicks struct{}

func (yearTicks) Ticks(lo, hi float64) []plot.Tick {
	var ticks []plot.Tick
	for y := math.Ceil(lo); y <= hi; y++ {
		ticks = append(ticks, plot.Tick{Value: y, Label: strconv.Itoa(int(y))})
	}
	return ticks
}
