// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the Prometheus collectors for the playback controller.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mpvctl_player_state",
		Help: "Current playback state (1 for the active state, 0 otherwise)",
	}, []string{"state"}) // state=stopped|playing|paused

	playerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_player_operations_total",
		Help: "Controller operations by name and outcome",
	}, []string{"op", "outcome"}) // outcome=ok|failed

	playerLaunches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_player_launch_total",
		Help: "Player process launches by result",
	}, []string{"result"}) // result=ok|not_found|spawn_error|early_exit

	playerEndOfStream = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_player_end_of_stream_total",
		Help: "End-of-stream detections by action taken",
	}, []string{"action"}) // action=loop|stop

	playerReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mpvctl_player_unexpected_exit_total",
		Help: "Player processes that exited without a stop request",
	})

	ipcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_ipc_requests_total",
		Help: "IPC requests to the player by command and result",
	}, []string{"command", "result"}) // result=ok|no_socket|dial|write|read|decode|error

	ipcDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mpvctl_ipc_request_duration_seconds",
		Help:    "IPC round-trip latency",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"command"})

	procTerminate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_proc_terminate_total",
		Help: "Termination signals sent to the player process group",
	}, []string{"signal", "result"}) // signal=QUIT|SIGTERM|SIGKILL

	procWait = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_proc_wait_total",
		Help: "Player process exit observations by outcome",
	}, []string{"outcome"})

	outputResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mpvctl_output_resolution_total",
		Help: "Output resolutions by the probe that decided them",
	}, []string{"source"}) // source=manual|tvservice|sysfs|generic|none
)

var allStates = []string{"stopped", "playing", "paused"}

// SetPlayerState marks state as the only active state.
func SetPlayerState(state string) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		playerState.WithLabelValues(s).Set(v)
	}
}

// RecordOperation counts a controller operation.
func RecordOperation(op string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	playerOperations.WithLabelValues(op, outcome).Inc()
}

// IncLaunch counts a launch attempt by result.
func IncLaunch(result string) {
	playerLaunches.WithLabelValues(result).Inc()
}

// IncEndOfStream counts an end-of-stream detection.
func IncEndOfStream(action string) {
	playerEndOfStream.WithLabelValues(action).Inc()
}

// IncUnexpectedExit counts a player process found dead by the liveness check.
func IncUnexpectedExit() {
	playerReaped.Inc()
}

// ObserveIPC records one IPC round trip.
func ObserveIPC(command, result string, d time.Duration) {
	ipcRequests.WithLabelValues(command, result).Inc()
	ipcDuration.WithLabelValues(command).Observe(d.Seconds())
}

// IncProcTerminate counts a termination signal.
func IncProcTerminate(signal, result string) {
	procTerminate.WithLabelValues(signal, result).Inc()
}

// IncProcWait counts a process exit observation.
func IncProcWait(outcome string) {
	procWait.WithLabelValues(outcome).Inc()
}

// IncOutputResolution counts which probe decided the output profile.
func IncOutputResolution(source string) {
	outputResolutions.WithLabelValues(source).Inc()
}
