// Package ws implements the WebSocket hub that keeps dashboards current.
//
// On connect a client immediately receives a "snapshot" message listing the
// datasets held by the server. After that it receives a "dataset.processed"
// message whenever a dataset is uploaded, and a fresh snapshot on every
// tick of Run.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot" | "dataset.processed",
//	  "data":  { ... }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The server mounts the hub at /ws/stream.
package ws
