// Package ipc implements the out-of-band message channel shared by a parent
// and a forked native child.
//
// The channel is a connected stream socket. Each message is one JSON document
// terminated by a newline. A child finds its end of the channel through the
// NODE_CHANNEL_FD environment variable, which holds the descriptor number:
//
//	ch, err := ipc.Open()
//	if err != nil {
//	    return err
//	}
//	defer ch.Close()
//
//	return ipc.Serve(ctx, ch, func(m ipc.Message) {
//	    if m.Cmd() == "ping" {
//	        _ = ch.Send(map[string]string{"cmd": "pong"})
//	    }
//	})
//
// Documents whose "cmd" field starts with NODE_ are reserved for the channel
// itself and are reported by Message.IsInternal.
package ipc
