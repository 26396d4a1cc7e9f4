package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Indicator is a loading indicator shown while a blocking call runs
type Indicator struct {
	out       io.Writer
	message   string
	interval  time.Duration
	mu        sync.Mutex
	startTime time.Time
	stop      chan struct{}
	done      chan struct{}
}

// New creates an indicator that renders message to out
func New(out io.Writer, message string) *Indicator {
	return &Indicator{
		out:      out,
		message:  message,
		interval: 100 * time.Millisecond,
	}
}

// Start shows the indicator until Stop is called
func (ind *Indicator) Start() {
	ind.mu.Lock()
	defer ind.mu.Unlock()

	if ind.stop != nil {
		return
	}
	ind.startTime = time.Now()
	ind.stop = make(chan struct{})
	ind.done = make(chan struct{})

	go ind.loop(ind.stop, ind.done)
}

// Stop hides the indicator and clears its line
func (ind *Indicator) Stop() {
	ind.mu.Lock()
	stop, done := ind.stop, ind.done
	ind.stop, ind.done = nil, nil
	ind.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (ind *Indicator) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(ind.interval)
	defer ticker.Stop()

	i := 0
	ind.render(i)
	for {
		select {
		case <-stop:
			fmt.Fprint(ind.out, "\r\033[K")
			return
		case <-ticker.C:
			i++
			ind.render(i)
		}
	}
}

func (ind *Indicator) render(i int) {
	fmt.Fprintf(ind.out, "\r%s %s (%s)",
		frames[i%len(frames)],
		ind.message,
		formatDuration(time.Since(ind.startTime)),
	)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
