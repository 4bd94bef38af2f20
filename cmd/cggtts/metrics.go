package main

import (
	"errors"

	"github.com/15226124477/cggtts"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var (
	registry = prometheus.NewRegistry()

	filesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cggtts_files_total",
		Help: "Files processed, by command and status.",
	}, []string{"command", "status"})

	tracksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cggtts_tracks_total",
		Help: "Tracks read or written, by command.",
	}, []string{"command"})

	diagnosticsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cggtts_diagnostics_total",
		Help: "Non fatal problems, by kind.",
	}, []string{"kind"})
)

func init() {
	registry.MustRegister(filesTotal, tracksTotal, diagnosticsTotal)
}

var diagnosticKinds = []struct {
	err  error
	name string
}{
	{cggtts.ErrChecksumMismatch, "checksum"},
	{cggtts.ErrUnknownHeaderField, "unknown_field"},
	{cggtts.ErrMalformedHeader, "malformed_header"},
	{cggtts.ErrMalformedTrackLine, "malformed_track"},
	{cggtts.ErrIncompleteTrack, "incomplete_track"},
	{cggtts.ErrFieldAltered, "altered_field"},
}

func diagnosticKind(err error) string {
	for _, k := range diagnosticKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}

func countFile(command string, tracks int, diags cggtts.Diagnostics, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	filesTotal.WithLabelValues(command, status).Inc()
	tracksTotal.WithLabelValues(command).Add(float64(tracks))
	for _, d := range diags {
		diagnosticsTotal.WithLabelValues(diagnosticKind(d)).Inc()
	}
}

// writeMetrics node_exporter textfile 格式
func writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		log.Error(err)
	}
}
