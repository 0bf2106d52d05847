// Package lighthouse is a client for the lighthouse pixel display service.
//
// A Connection authenticates over a websocket, uploads display frames and
// streams input events back from the device. A Multiplexer drives one
// Connection from a capacity-1 FrameQueue fed by a producer, delivering
// input events to an InputHandler.
//
//	conn, err := lighthouse.Dial(ctx, lighthouse.DefaultURL, creds, lighthouse.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	if err := conn.RequestEventStream(ctx); err != nil {
//	    return err
//	}
//
//	queue := lighthouse.NewFrameQueue()
//	go produce(ctx, queue)
//
//	mux := lighthouse.NewMultiplexer(conn, queue, handler, logger)
//	return mux.Run(ctx)
package lighthouse
