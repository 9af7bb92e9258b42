// frame-report renders an HTML scatter plot and summary statistics for one
// archived acquisition session.
//
// Usage:
//
//	frame-report -db sensor_frames.db [-session <id>] [-out report.html]
//
// With no -session the most recent session in the archive is used.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/mmwave.report/db"
	"github.com/banshee-data/mmwave.report/internal/units"
)

var (
	dbFile    = flag.String("db", "sensor_frames.db", "Path to the frame archive database")
	session   = flag.String("session", "", "Session ID to report on (default: most recent)")
	out       = flag.String("out", "report.html", "Output HTML file")
	speedUnit = flag.String("units", units.MPS, "Display unit for doppler speeds (one of: "+units.ValidUnitsString()+")")
)

func main() {
	flag.Parse()

	if !units.IsValid(*speedUnit) {
		log.Fatalf("invalid -units %q (valid: %s)", *speedUnit, units.ValidUnitsString())
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open frame archive: %v", err)
	}
	defer database.Close()

	sessionID := *session
	if sessionID == "" {
		sessions, err := database.Sessions()
		if err != nil {
			log.Fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("archive contains no sessions")
		}
		sessionID = sessions[0]
	}

	points, err := database.SessionPoints(sessionID)
	if err != nil {
		log.Fatalf("failed to load points for session %s: %v", sessionID, err)
	}
	if len(points) == 0 {
		log.Fatalf("session %s has no archived detections", sessionID)
	}

	printSummary(sessionID, points)

	if err := renderScatter(sessionID, points, *out); err != nil {
		log.Fatalf("failed to render report: %v", err)
	}
	log.Printf("wrote %s (%d detections)", *out, len(points))
}

func printSummary(sessionID string, points []db.PointRecord) {
	ranges := make([]float64, len(points))
	dopplers := make([]float64, len(points))
	snrs := make([]float64, len(points))
	for i, p := range points {
		ranges[i] = p.Range
		dopplers[i] = units.ConvertSpeed(p.Doppler, *speedUnit)
		snrs[i] = float64(p.SNR)
	}

	fmt.Printf("session %s: %d detections\n", sessionID, len(points))
	fmt.Printf("  range    mean %.2f m, stddev %.2f m\n", stat.Mean(ranges, nil), stat.StdDev(ranges, nil))
	fmt.Printf("  doppler  mean %.2f %s, stddev %.2f %s\n", stat.Mean(dopplers, nil), *speedUnit, stat.StdDev(dopplers, nil), *speedUnit)
	fmt.Printf("  snr      mean %.1f, stddev %.1f\n", stat.Mean(snrs, nil), stat.StdDev(snrs, nil))
}

func renderScatter(sessionID string, points []db.PointRecord, outPath string) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Detected points (top-down)",
			Subtitle: fmt.Sprintf("session %s", sessionID),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x [m]", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y [m]", Type: "value"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	data := make([]opts.ScatterData, 0, len(points))
	for _, p := range points {
		data = append(data, opts.ScatterData{
			Value:      []interface{}{p.X, p.Y},
			SymbolSize: 5,
		})
	}
	scatter.AddSeries("detections", data)

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return scatter.Render(f)
}
