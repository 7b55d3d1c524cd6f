// Package client provides a Go SDK for the admin API: enqueue a task,
// pause a queue for a duration, read queue status, and stream events
// over WebSocket. There is no explicit resume call; a paused queue
// resumes once its pause duration has elapsed.
//
// # Basic Usage
//
//	c, err := client.New("http://localhost:8081")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	taskID, err := c.Enqueue(ctx, "emails", map[string]interface{}{
//	    "to":      "user@example.com",
//	    "subject": "Hello",
//	})
//
// # WebSocket Events
//
//	err := c.ConnectWebSocket(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.CloseWebSocket()
//
//	for event := range c.Events() {
//	    fmt.Printf("Event: %s\n", event.Type)
//	}
//
// # Configuration
//
//	c, err := client.New("http://localhost:8081",
//	    client.WithAPIKey("your-api-key"),
//	    client.WithTimeout(30 * time.Second),
//	)
package client
