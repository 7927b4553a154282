// Package classify turns raw device state into occupancy engine events.
//
// Classification is a replaceable policy that lives outside the engine: the
// engine only understands TRIGGER, HOLD and RELEASE, and it is this
// package's job to decide which of those a sensor reading means.
//
// Each bound device has a Kind:
//
//	motion    rising edge → TRIGGER          falling edge → nothing
//	presence  rising edge → HOLD             falling edge → RELEASE
//	media     rising edge → HOLD             falling edge → RELEASE
//	contact   any edge    → TRIGGER
//
// The Classifier remembers the last value seen per device so repeated
// readings (off→off, on→on) produce no events. The first reading of a device
// counts as an edge from "off".
package classify
