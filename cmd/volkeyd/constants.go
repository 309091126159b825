package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_VOLUMEDOWN = 114
	KEY_VOLUMEUP   = 115
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Built-in defaults, used when neither the config file nor the command line
// names a device.
const (
	defaultInputDevice  = "/dev/input/by-id/usb-ASUS_Xonar_U7-event-if04"
	defaultMixerName    = "Xonar U7"            // ALSA card name
	defaultMixerControl = "PCM Playback Volume" // ALSA mixer control name
	defaultStep         = 1

	defaultStateWSPath = "/ws"
)

// Notification queue between the volume loop and the websocket broadcaster.
const notifyQueueSize = 16
