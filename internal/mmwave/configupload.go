package mmwave

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/mmwave.report/internal/monitoring"
	"github.com/banshee-data/mmwave.report/internal/serialio"
	"github.com/banshee-data/mmwave.report/internal/timeutil"
)

// ackReadLimit caps a single acknowledgement read.
const ackReadLimit = 1024

// clock is replaceable in tests so the acknowledgement wait does not sleep
// for real.
var clock timeutil.Clock = timeutil.RealClock{}

// UploadConfig streams a sensor configuration script to the command port one
// line at a time. Blank lines and lines starting with '%' are comments and
// are skipped. After each command the sensor answers on the same port; the
// upload waits until the response contains "Done" or "Skipped" before moving
// on, sleeping ackPoll between availability checks and giving up after
// ackTimeout. Any transport failure aborts the upload.
func UploadConfig(t serialio.Transport, script io.Reader, ackTimeout, ackPoll time.Duration) error {
	scanner := bufio.NewScanner(script)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "%") {
			continue
		}

		if _, err := t.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("failed to send config line %q: %w", line, err)
		}
		if err := awaitAck(t, line, ackTimeout, ackPoll); err != nil {
			return err
		}
		monitoring.Logf("sensor acknowledged config line %q", line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read config script: %w", err)
	}
	return nil
}

// awaitAck accumulates the sensor's response to one command until it contains
// an acknowledgement token or the deadline passes.
func awaitAck(t serialio.Transport, line string, timeout, pollInterval time.Duration) error {
	deadline := clock.Now().Add(timeout)
	var response strings.Builder

	for {
		resp := response.String()
		if strings.Contains(resp, "Done") || strings.Contains(resp, "Skipped") {
			return nil
		}
		if clock.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for acknowledgement of %q (got %q)", timeout, line, resp)
		}

		available, err := t.Available()
		if err != nil {
			return fmt.Errorf("failed to poll for acknowledgement of %q: %w", line, err)
		}
		if available == 0 {
			clock.Sleep(pollInterval)
			continue
		}
		if available > ackReadLimit {
			available = ackReadLimit
		}
		chunk, err := t.ReadUpTo(available)
		if err != nil {
			return fmt.Errorf("failed to read acknowledgement of %q: %w", line, err)
		}
		response.Write(chunk)
	}
}
