package chat

// Transport delivers one event to one physical connection. The
// websocket layer implements it; tests substitute a recorder. Send
// errors mean the connection is gone or backed up and are never fatal
// to a broadcast.
type Transport interface {
	Send(connID, event string, payload interface{}) error
}
