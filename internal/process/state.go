package process

// State is the lifecycle state of the tracked server process.
type State int

const (
	// StateIdle means no process is tracked.
	StateIdle State = iota
	// StateSpawned means the process started and its pipes are open.
	StateSpawned
	// StateAwaitingHandshake means initialize was sent and no answer arrived yet.
	StateAwaitingHandshake
	// StateReady means the server answered initialize.
	StateReady
	// StateFailed means spawning or the handshake failed.
	StateFailed
	// StateTimedOut means the handshake budget ran out.
	StateTimedOut
	// StateExited means a ready server terminated.
	StateExited
)

func (s State) String() string {
	names := []string{"idle", "spawned", "awaiting-handshake", "ready", "failed", "timed-out", "exited"}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}
