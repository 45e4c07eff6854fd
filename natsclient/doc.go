// Package natsclient manages the node's NATS connection.
//
// The Client wraps nats.Conn with connection lifecycle handling:
// status tracking through the reconnect callbacks, structured logging
// of connectivity changes, and a drain-based Close so in-flight
// requests finish before shutdown. Both the node (serving requests)
// and the remote client (issuing them) connect through this package.
//
// Basic usage:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("emerge-node"))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	reply, err := client.Request(ctx, "emerge.rpc.hello", nil)
package natsclient
