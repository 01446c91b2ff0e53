// Package format contains RTP format definitions and depayloaders.
package format

import (
	"strings"
)

func getCodecAndClock(rtpMap string) (string, string) {
	parts2 := strings.SplitN(rtpMap, "/", 2)
	if len(parts2) != 2 {
		return "", ""
	}

	return strings.ToLower(parts2[0]), parts2[1]
}

func decodeFMTP(enc string) map[string]string {
	if enc == "" {
		return nil
	}

	ret := make(map[string]string)

	for _, kv := range strings.Split(enc, ";") {
		kv = strings.Trim(kv, " ")

		if len(kv) == 0 {
			continue
		}

		tmp := strings.SplitN(kv, "=", 2)
		if len(tmp) != 2 {
			continue
		}

		ret[strings.ToLower(tmp[0])] = tmp[1]
	}

	return ret
}

type unmarshalContext struct {
	mediaType   string
	payloadType uint8
	clock       string
	codec       string
	rtpMap      string
	fmtp        map[string]string
}

// Format is a media format.
// It defines the payload type of RTP packets and how to decode them.
type Format interface {
	unmarshal(ctx *unmarshalContext) error

	// Codec returns the codec name.
	Codec() string

	// ClockRate returns the clock rate.
	ClockRate() int

	// PayloadType returns the payload type.
	PayloadType() uint8

	// RTPMap returns the rtpmap attribute.
	RTPMap() string

	// FMTP returns the fmtp attribute.
	FMTP() map[string]string
}

// Unmarshal decodes a format from SDP attributes of a media section.
func Unmarshal(mediaType string, payloadType uint8, rtpMap string, fmtpEnc string) (Format, error) {
	fmtp := decodeFMTP(fmtpEnc)
	codec, clock := getCodecAndClock(rtpMap)

	format := func() Format {
		switch {
		/*
		* dynamic payload types
		**/

		// video

		case codec == "h265" && clock == "90000" && payloadType >= 96 && payloadType <= 127:
			return &H265{}

		case codec == "h264" && clock == "90000" && payloadType >= 96 && payloadType <= 127:
			return &H264{}

		case codec == "jpeg" && clock == "90000":
			return &MJPEG{}

		case codec == "mp2t" && clock == "90000":
			return &MPEGTS{}

		// audio

		case codec == "mpeg4-generic" && payloadType >= 96 && payloadType <= 127:
			return &MPEG4Audio{}

		case (codec == "pcma" || codec == "pcmu") && clock == "8000":
			return &G711{}

		case (codec == "amr" || codec == "amr-wb") && payloadType >= 96 && payloadType <= 127:
			return &AMR{}

		/*
		* static payload types, mapped by the RTP A/V profile table
		* without consulting rtpmap
		**/

		// video

		case payloadType == 26:
			return &MJPEG{}

		case payloadType == 33:
			return &MPEGTS{}

		// audio

		case payloadType == 0, payloadType == 8:
			return &G711{}
		}

		return &Generic{}
	}()

	err := format.unmarshal(&unmarshalContext{
		mediaType:   mediaType,
		payloadType: payloadType,
		clock:       clock,
		codec:       codec,
		rtpMap:      rtpMap,
		fmtp:        fmtp,
	})
	if err != nil {
		return nil, err
	}

	return format, nil
}
