// Package config reads the audio bridge's YAML configuration.
//
// Load starts from Default, decodes the file over it, applies GRAYLOGIC_*
// environment overrides and validates the result. Secrets such as
// GRAYLOGIC_JWT_SECRET, GRAYLOGIC_MQTT_PASSWORD and GRAYLOGIC_INFLUXDB_TOKEN
// are best kept out of the file.
//
// The devices list declares the audio endpoints the bridge resolves against
// the PipeWire graph:
//
//	devices:
//	  - id: speakers
//	    type: output
//	    node_id: 42
//	    stream_properties:
//	      media.role: Music
//	  - id: default-mic
//	    type: input       # no node_id: the system default source
package config
