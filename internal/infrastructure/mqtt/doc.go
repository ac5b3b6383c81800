// Package mqtt connects the audio bridge to the site broker.
//
// The bridge publishes what it sees and answers probe requests:
//
//	graylogic/state/audio/{device}        retained device status
//	graylogic/request/audio/{device}      probe or status request, carries request_id
//	graylogic/response/audio/{request_id} reply to a request
//	graylogic/health/audio                retained online/offline, also the LWT
//
// Subscriptions are remembered and restored after paho reconnects.
// Handlers run on paho's goroutines; a panicking handler is logged and
// does not take the connection down.
package mqtt
