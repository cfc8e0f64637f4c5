package view

import (
	"time"

	"github.com/large-farva/iss-tracker/internal/telemetry"
	"github.com/large-farva/iss-tracker/internal/track"
)

// TableColumns are the header labels, in row field order.
var TableColumns = []string{"Timestamp", "Latitude", "Longitude", "Altitude (km)"}

// TableView lists the whole history, newest first.
type TableView struct {
	out Retainer
	cur latest[telemetry.Table]
}

func NewTableView(out Retainer) *TableView {
	v := &TableView{out: out}
	v.cur.store(0, RenderTable(nil))
	return v
}

// Publish implements track.Sink.
func (v *TableView) Publish(s track.Snapshot) {
	tbl := RenderTable(s.Fixes)
	v.cur.store(s.Seq, tbl)
	emit(v.out, string(telemetry.EventTable), tbl)
}

// Current returns the latest table and its snapshot sequence.
func (v *TableView) Current() (telemetry.Table, uint64) {
	return v.cur.load()
}

// RenderTable sorts fixes newest-first and formats them as rows.
func RenderTable(fixes []track.Fix) telemetry.Table {
	sorted := track.NewestFirst(fixes)
	rows := make([]telemetry.TableRow, len(sorted))
	for i, f := range sorted {
		rows[i] = telemetry.TableRow{
			Timestamp:  f.Time.UTC().Format(time.RFC3339),
			Latitude:   f.Lat,
			Longitude:  f.Lon,
			AltitudeKm: f.AltKm,
		}
	}
	return telemetry.Table{
		Event:   telemetry.NewEvent(telemetry.EventTable, "view"),
		Columns: TableColumns,
		Rows:    rows,
	}
}
