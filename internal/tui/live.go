package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/recore/internal/dynamo"
)

const (
	barWidth  = 30
	clearLine = "\r\033[K"
)

// LiveRenderer redraws a one-line power readout while a transient runs. It
// is a dynamo.Observer.
type LiveRenderer struct {
	w         io.Writer
	tEnd      float64
	frameRate int
	lastFrame time.Time
	peak      float64
	frames    int
}

func NewLiveRenderer(w io.Writer, tEnd float64, frameRate int) *LiveRenderer {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &LiveRenderer{w: w, tEnd: tEnd, frameRate: frameRate}
}

func (r *LiveRenderer) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) == 0 {
		return
	}
	if x[0] > r.peak {
		r.peak = x[0]
	}
	last := t >= r.tEnd
	if !last && time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()
	r.frames++
	fmt.Fprintf(r.w, "%s%s t=%7.3fs  P=%-12.5g peak=%-12.5g", clearLine, r.bar(t), t, x[0], r.peak)
}

// Done ends the readout line.
func (r *LiveRenderer) Done() {
	if r.frames > 0 {
		fmt.Fprintln(r.w)
	}
}

func (r *LiveRenderer) bar(t float64) string {
	frac := 1.0
	if r.tEnd > 0 {
		frac = clamp(t/r.tEnd, 0, 1)
	}
	filled := int(frac * barWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}
