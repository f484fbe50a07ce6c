// Package ws implements the WebSocket stream at /ws/stream. Connected
// browser clients receive a JSON summary of every instantiated digest
// cache (key, entry count, last refresh time) on a fixed interval, so an
// open digest page can surface new activity without polling.
package ws
