// Package imu decodes the inertial sensor stream spoken by robot serial boards.
package imu

// The device streams single byte frame markers, some of them followed by a
// fixed payload of little-endian IEEE-754 float32 values:
//
//	'I'   enter (or stay in) inertial mode, no payload
//	'a'   accelerometer, 3 floats
//	'g'   gyroscope, 3 floats
//	'm'   magnetometer, 3 floats
//	'\n'  ignored everywhere
//
// When a port is opened the device announces itself by sending pi as a
// float32 (DB 0F 49 40), optionally preceded by 'I' and newlines. The value
// verifies the byte order and the float width of the peer before any
// reading is trusted.
//
// There are no checksums and no resynchronization. Any byte which is not
// expected in the current state ends the session.
//
// Producer: device firmware
// Consumer: Link goroutine, which feeds a Machine one byte at a time.
