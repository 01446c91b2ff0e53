// Package rtpmjpeg contains a RTP/M-JPEG depayloader.
package rtpmjpeg

const (
	rtpClockRate = 90000
	maxDimension = 2040
)
