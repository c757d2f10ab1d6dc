// Package childprocess spawns native executables with a configurable
// descriptor table and returns a handle that owns the child's lifecycle.
//
// A descriptor table (Stdio) lists, in child descriptor order, how each
// descriptor is connected: inherited from the parent, piped, ignored, mapped
// to a specific parent descriptor or file, or used as the IPC channel. At
// most one entry may be the IPC channel. When present, the child is told
// where to find it through NODE_CHANNEL_FD.
//
//	child, err := childprocess.Spawn("./echoer", nil, childprocess.SpawnOptions{
//	    Stdio: childprocess.Stdio{childprocess.FD(0), childprocess.FD(1), childprocess.FD(2), childprocess.IPC},
//	})
//	if err != nil {
//	    return err // invalid options only
//	}
//	go func() {
//	    for err := range child.Errors() {
//	        log.Println(err) // includes start failures
//	    }
//	}()
//	_ = child.Send(map[string]string{"cmd": "ping"})
//	msg := <-child.Messages()
//
// # Lifecycle
//
// A ChildProcess moves through Connecting, Connected, Disconnecting,
// Disconnected and Exited. Process exit and channel teardown are observed
// independently: Exited() fires when the process is reaped, Disconnected()
// when the channel is closed by either side. The handle reaches StateExited,
// and Done() is closed, once both have happened.
//
// Start failures are not returned by Spawn. They are delivered on Errors()
// as a *SpawnError, after which the handle is disconnected and done without
// ever reporting an exit.
package childprocess
