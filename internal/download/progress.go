package download

import "fmt"

// Progress is a single progress report. Increment is the percentage gained
// since the previous report.
type Progress struct {
	Message   string
	Current   int64
	Total     int64
	Increment float64
}

// ProgressFunc receives progress reports. A nil ProgressFunc is valid.
type ProgressFunc func(Progress)

// Report calls fn when it is set.
func (fn ProgressFunc) Report(p Progress) {
	if fn != nil {
		fn(p)
	}
}

// reportStep is the minimum percentage gain between intermediate reports.
const reportStep = 5.0

const completedMessage = "Download completed"

type progressWriter struct {
	sink     ProgressFunc
	total    int64
	current  int64
	reported float64
}

func newProgressWriter(sink ProgressFunc, total int64) *progressWriter {
	pw := &progressWriter{sink: sink, total: total}
	sink.Report(Progress{Message: "Downloading... 0%", Total: total})
	return pw
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	pw.current += int64(len(p))
	if pw.total <= 0 {
		return len(p), nil
	}

	pct := float64(pw.current) * 100 / float64(pw.total)
	if pct > 100 {
		pct = 100
	}
	if pct-pw.reported >= reportStep && pct < 100 {
		pw.sink.Report(Progress{
			Message:   fmt.Sprintf("Downloading... %d%%", int(pct)),
			Current:   pw.current,
			Total:     pw.total,
			Increment: pct - pw.reported,
		})
		pw.reported = pct
	}
	return len(p), nil
}

func (pw *progressWriter) finish() {
	total := pw.total
	if total <= 0 {
		total = pw.current
	}
	pw.sink.Report(Progress{
		Message:   completedMessage,
		Current:   pw.current,
		Total:     total,
		Increment: 100 - pw.reported,
	})
	pw.reported = 100
}
